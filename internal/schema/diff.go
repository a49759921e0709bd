package schema

// FileDiff classifies every path across two snapshots. Derived, never
// persisted.
type FileDiff struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether the diff carries no changes.
func (d FileDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Removed) == 0
}

// DiffSchema compares two snapshots by path and hash. Because snapshot files
// are sorted by path, output lists are deterministic for identical inputs.
func DiffSchema(old, current SchemaSnapshot) FileDiff {
	oldHashes := make(map[string]string, len(old.Files))
	for _, f := range old.Files {
		oldHashes[f.Path] = f.Hash
	}
	currentPaths := make(map[string]struct{}, len(current.Files))

	var diff FileDiff
	for _, f := range current.Files {
		currentPaths[f.Path] = struct{}{}
		oldHash, ok := oldHashes[f.Path]
		switch {
		case !ok:
			diff.Added = append(diff.Added, f.Path)
		case oldHash != f.Hash:
			diff.Modified = append(diff.Modified, f.Path)
		}
	}

	for _, f := range old.Files {
		if _, ok := currentPaths[f.Path]; !ok {
			diff.Removed = append(diff.Removed, f.Path)
		}
	}

	return diff
}
