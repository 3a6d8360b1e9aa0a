package astpatch

import (
	"strings"

	"appforge/internal/faults"
	"appforge/internal/logging"
)

// Apply applies the patch to oldContent. Any application failure falls back
// to the full replacement carried in the patch, so Apply always yields the
// intended target content.
func Apply(oldContent, path string, p Patch) string {
	if p.Kind == FullReplace {
		return p.NewContent
	}
	out, err := applyStrict(oldContent, path, p)
	if err != nil {
		logging.Patch("%s: %s(%s) inapplicable (%v), falling back to full_replace",
			path, p.Kind, p.Name, err)
		return p.NewContent
	}
	return out
}

// applyStrict applies a targeted patch without the fallback.
func applyStrict(oldContent, path string, p Patch) (string, error) {
	switch p.Kind {
	case FullReplace:
		return p.NewContent, nil

	case FunctionAdd, ClassAdd:
		return appendDefinition(oldContent, p.Source), nil

	case FunctionReplace, ClassReplace:
		lang := languageFor(path)
		if lang == nil {
			return "", faults.Wrap(faults.ErrPatchInapplicable, "unsupported language for %s", path)
		}
		defs, ok := parseDefs(oldContent, lang)
		if !ok {
			return "", faults.Wrap(faults.ErrPatchInapplicable, "old content does not parse")
		}
		for _, d := range defs {
			if d.name == p.Name {
				return oldContent[:d.start] + p.Source + oldContent[d.end:], nil
			}
		}
		return "", faults.Wrap(faults.ErrPatchInapplicable, "definition %q not found", p.Name)

	default:
		return "", faults.Wrap(faults.ErrPatchInapplicable, "unknown patch kind %q", p.Kind)
	}
}

// appendDefinition appends source after the existing content with a
// blank-line separator.
func appendDefinition(oldContent, source string) string {
	trimmed := strings.TrimRight(oldContent, "\n")
	if trimmed == "" {
		return source
	}
	out := trimmed + "\n\n" + source
	if strings.HasSuffix(oldContent, "\n") {
		out += "\n"
	}
	return out
}
