package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonSyntaxValidator parses backend sources with the bundled tree-sitter
// grammar and reports ERROR/MISSING nodes as Error issues.
type PythonSyntaxValidator struct{}

func (v *PythonSyntaxValidator) Name() string         { return "python-syntax" }
func (v *PythonSyntaxValidator) Extensions() []string { return []string{".py"} }

func (v *PythonSyntaxValidator) Validate(ctx context.Context, files map[string]string) Result {
	res := Result{Passed: true}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	paths := sortedPaths(files)
	for _, path := range paths {
		if ctx.Err() != nil {
			return res
		}
		content := []byte(files[path])
		tree, err := parser.ParseCtx(ctx, nil, content)
		if err != nil {
			res.Passed = false
			res.Issues = append(res.Issues, Issue{
				Validator: v.Name(),
				Severity:  SeverityError,
				File:      path,
				Message:   fmt.Sprintf("parse failed: %v", err),
			})
			continue
		}

		root := tree.RootNode()
		if root.HasError() {
			if node := firstErrorNode(root); node != nil {
				res.Passed = false
				res.Issues = append(res.Issues, Issue{
					Validator: v.Name(),
					Severity:  SeverityError,
					File:      path,
					Line:      int(node.StartPoint().Row) + 1,
					Column:    int(node.StartPoint().Column) + 1,
					Message:   "syntax error",
				})
			}
		}
		tree.Close()
	}
	return res
}

// firstErrorNode finds the shallowest ERROR or MISSING node.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

// JSONValidator checks structural validity of JSON files.
type JSONValidator struct{}

func (v *JSONValidator) Name() string         { return "json-structure" }
func (v *JSONValidator) Extensions() []string { return []string{".json"} }

func (v *JSONValidator) Validate(ctx context.Context, files map[string]string) Result {
	res := Result{Passed: true}
	for _, path := range sortedPaths(files) {
		if ctx.Err() != nil {
			return res
		}
		var parsed interface{}
		if err := json.Unmarshal([]byte(files[path]), &parsed); err != nil {
			res.Passed = false
			res.Issues = append(res.Issues, Issue{
				Validator: v.Name(),
				Severity:  SeverityError,
				File:      path,
				Line:      jsonErrorLine(files[path], err),
				Message:   err.Error(),
			})
		}
	}
	return res
}

func jsonErrorLine(content string, err error) int {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return 0
	}
	return 1 + strings.Count(content[:min(int(syntaxErr.Offset), len(content))], "\n")
}

func sortedPaths(files map[string]string) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
