package vfs

import (
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FileDiff is one path's change between a commit and the current tree.
type FileDiff struct {
	Path       string     `json:"path"`
	Status     FileStatus `json:"status"`
	OldContent string     `json:"old_content,omitempty"`
	NewContent string     `json:"new_content,omitempty"`
	Unified    string     `json:"unified,omitempty"`
}

var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0 // accuracy over speed for code diffs
	return d
}()

// GetDiff compares the snapshot of fromCommit against the current tree.
// An empty fromCommit diffs against the empty tree (everything Added).
func (v *VFS) GetDiff(fromCommit string) ([]FileDiff, error) {
	old := map[string]string{}
	if fromCommit != "" {
		snapshot, ok := v.CommitSnapshot(fromCommit)
		if !ok {
			return nil, fmt.Errorf("commit not found: %s", fromCommit)
		}
		old = snapshot
	}
	current := v.Files()

	paths := make(map[string]bool, len(old)+len(current))
	for p := range old {
		paths[p] = true
	}
	for p := range current {
		paths[p] = true
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	var out []FileDiff
	for _, path := range sorted {
		oldContent, inOld := old[path]
		newContent, inNew := current[path]

		switch {
		case inOld && !inNew:
			out = append(out, FileDiff{Path: path, Status: StatusDeleted, OldContent: oldContent})
		case !inOld && inNew:
			out = append(out, FileDiff{
				Path: path, Status: StatusAdded, NewContent: newContent,
				Unified: renderDiff("", newContent),
			})
		case oldContent != newContent:
			out = append(out, FileDiff{
				Path: path, Status: StatusModified,
				OldContent: oldContent, NewContent: newContent,
				Unified: renderDiff(oldContent, newContent),
			})
		}
	}
	return out, nil
}

func renderDiff(old, new string) string {
	diffs := dmp.DiffMain(old, new, true)
	dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// ApplyDiff applies diff records onto a base snapshot, yielding the target
// tree. Used to check diff soundness and by external consumers replaying
// changes.
func ApplyDiff(base map[string]string, diffs []FileDiff) map[string]string {
	out := make(map[string]string, len(base))
	for p, c := range base {
		out[p] = c
	}
	for _, d := range diffs {
		switch d.Status {
		case StatusDeleted:
			delete(out, d.Path)
		default:
			out[d.Path] = d.NewContent
		}
	}
	return out
}
