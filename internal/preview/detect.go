// Package preview manages ephemeral containerised previews of generated
// apps: project type detection, container definition synthesis, lifecycle,
// port allocation, the commit-driven reload watcher and its event bus.
package preview

import (
	"encoding/json"
	"path"
	"strings"

	"appforge/internal/logging"

	"golang.org/x/net/html"
)

// ProjectType classifies how a file set should be containerised.
type ProjectType string

const (
	TypePythonService ProjectType = "python-service"
	TypeReactSPA      ProjectType = "react-spa"
	TypeNodeService   ProjectType = "node-service"
	TypeStaticSite    ProjectType = "static-site"
	TypeUnknown       ProjectType = "unknown"
)

// Detect classifies a project by file signature: a backend dependency
// manifest wins, then a frontend package manifest (react or not), then a
// top-level HTML entry alone.
func Detect(files map[string]string) ProjectType {
	if p := findByBase(files, "requirements.txt"); p != "" {
		return TypePythonService
	}

	if p := findByBase(files, "package.json"); p != "" {
		if packageDependsOnReact(files[p]) {
			return TypeReactSPA
		}
		return TypeNodeService
	}

	for p, content := range files {
		if path.Base(p) == "index.html" && !strings.Contains(p, "/") && isHTMLDocument(content) {
			return TypeStaticSite
		}
	}

	logging.PreviewDebug("no project signature in %d files", len(files))
	return TypeUnknown
}

// findByBase returns the shallowest path whose basename matches.
func findByBase(files map[string]string, base string) string {
	best := ""
	for p := range files {
		if path.Base(p) != base {
			continue
		}
		if best == "" || strings.Count(p, "/") < strings.Count(best, "/") {
			best = p
		}
	}
	return best
}

func packageDependsOnReact(content string) bool {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return false
	}
	_, inDeps := pkg.Dependencies["react"]
	_, inDev := pkg.DevDependencies["react"]
	return inDeps || inDev
}

// isHTMLDocument requires an explicit document shape (html.Parse wraps any
// fragment in <html>, so the source must carry its own doctype or <html>
// tag) and a body with at least one element.
func isHTMLDocument(content string) bool {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "<!doctype html") && !strings.Contains(lower, "<html") {
		return false
	}
	node, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return false
	}
	var hasBodyElement bool
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			if n.Data == "body" {
				inBody = true
			} else if inBody {
				hasBodyElement = true
				return
			}
		}
		for c := n.FirstChild; c != nil && !hasBodyElement; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(node, false)
	return hasBodyElement
}
