// Package astpatch produces structure-preserving minimal edits for
// iterative changes. Files in a supported language are parsed into their
// top-level function and class definitions with tree-sitter; single-site
// changes become targeted add/replace patches, everything else degrades to
// a full replacement.
package astpatch

import (
	"context"
	"path/filepath"
	"strings"

	"appforge/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// PatchKind is the tagged variant of a Patch.
type PatchKind string

const (
	FullReplace     PatchKind = "full_replace"
	FunctionAdd     PatchKind = "function_add"
	FunctionReplace PatchKind = "function_replace"
	ClassAdd        PatchKind = "class_add"
	ClassReplace    PatchKind = "class_replace"
)

// Patch is a minimal structure-aware description of a file change.
// NewContent always carries the complete target content so application can
// fall back to a full replacement.
type Patch struct {
	Kind       PatchKind `json:"kind"`
	Name       string    `json:"name,omitempty"`
	Source     string    `json:"source,omitempty"`
	NewContent string    `json:"new_content"`
}

// definition is one top-level function or class in a parsed file.
type definition struct {
	kind  string // "function" or "class"
	name  string
	start uint32
	end   uint32
}

func (d definition) source(content string) string {
	return content[d.start:d.end]
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return python.GetLanguage()
	case ".js", ".jsx":
		return javascript.GetLanguage()
	case ".ts", ".tsx":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// Supported reports whether the patcher has a bundled parser for the file.
func Supported(path string) bool {
	return languageFor(path) != nil
}

// parseDefs extracts top-level definitions. ok is false on a parse error in
// the input (ERROR or MISSING nodes anywhere in the tree).
func parseDefs(content string, lang *sitter.Language) (defs []definition, ok bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, false
	}

	src := []byte(content)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if d, found := definitionOf(child, src); found {
			defs = append(defs, d)
		}
	}
	return defs, true
}

// definitionOf recognizes a top-level function or class node, looking
// through Python decorated_definition and JS/TS export_statement wrappers.
// The reported span covers the whole wrapper so decorators move with their
// definition.
func definitionOf(node *sitter.Node, src []byte) (definition, bool) {
	inner := node
	switch node.Type() {
	case "decorated_definition":
		inner = node.ChildByFieldName("definition")
	case "export_statement":
		inner = node.ChildByFieldName("declaration")
	}
	if inner == nil {
		return definition{}, false
	}

	var kind string
	switch inner.Type() {
	case "function_definition", "function_declaration":
		kind = "function"
	case "class_definition", "class_declaration":
		kind = "class"
	default:
		return definition{}, false
	}

	nameNode := inner.ChildByFieldName("name")
	if nameNode == nil {
		return definition{}, false
	}

	return definition{
		kind:  kind,
		name:  nameNode.Content(src),
		start: node.StartByte(),
		end:   node.EndByte(),
	}, true
}

// GeneratePatch analyses old and new content and returns the minimal patch.
// Any parse error, multi-site change, or application mismatch yields
// full_replace; a generated targeted patch is guaranteed to reproduce
// newContent exactly when applied to oldContent.
func GeneratePatch(oldContent, newContent, path string) Patch {
	full := Patch{Kind: FullReplace, NewContent: newContent}

	lang := languageFor(path)
	if lang == nil {
		logging.PatchDebug("%s: unsupported language, full_replace", path)
		return full
	}

	oldDefs, oldOK := parseDefs(oldContent, lang)
	newDefs, newOK := parseDefs(newContent, lang)
	if !oldOK || !newOK {
		logging.PatchDebug("%s: parse error (old_ok=%v new_ok=%v), full_replace", path, oldOK, newOK)
		return full
	}

	oldByName := make(map[string]definition, len(oldDefs))
	for _, d := range oldDefs {
		oldByName[d.name] = d
	}
	newByName := make(map[string]definition, len(newDefs))
	for _, d := range newDefs {
		newByName[d.name] = d
	}

	var added, removed []definition
	var changed []definition // new-side definition for same-name source changes
	for _, d := range newDefs {
		prev, exists := oldByName[d.name]
		switch {
		case !exists:
			added = append(added, d)
		case prev.source(oldContent) != d.source(newContent):
			changed = append(changed, d)
		}
	}
	for _, d := range oldDefs {
		if _, exists := newByName[d.name]; !exists {
			removed = append(removed, d)
		}
	}

	var candidate Patch
	switch {
	case len(added) == 1 && len(removed) == 0 && len(changed) == 0:
		d := added[0]
		candidate = Patch{
			Kind:       addKind(d.kind),
			Name:       d.name,
			Source:     d.source(newContent),
			NewContent: newContent,
		}
	case len(added) == 0 && len(removed) == 0 && len(changed) == 1:
		d := changed[0]
		candidate = Patch{
			Kind:       replaceKind(d.kind),
			Name:       d.name,
			Source:     d.source(newContent),
			NewContent: newContent,
		}
	default:
		logging.PatchDebug("%s: %d added, %d removed, %d changed, full_replace",
			path, len(added), len(removed), len(changed))
		return full
	}

	// A targeted patch must reproduce the new content byte-for-byte;
	// changes outside the target (imports, module level code) disqualify it.
	if applied, err := applyStrict(oldContent, path, candidate); err != nil || applied != newContent {
		logging.PatchDebug("%s: candidate %s(%s) does not reproduce target, full_replace",
			path, candidate.Kind, candidate.Name)
		return full
	}

	logging.Patch("%s: %s target=%s", path, candidate.Kind, candidate.Name)
	return candidate
}

func addKind(defKind string) PatchKind {
	if defKind == "class" {
		return ClassAdd
	}
	return FunctionAdd
}

func replaceKind(defKind string) PatchKind {
	if defKind == "class" {
		return ClassReplace
	}
	return FunctionReplace
}
