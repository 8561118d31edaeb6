package monitor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ChangedSubjects walks a data source and returns the first-level
// directories holding files modified after since. An empty result means a
// re-audit can be skipped.
func ChangedSubjects(root string, since time.Time) ([]string, error) {
	changed := make(map[string]struct{})
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.ModTime().After(since) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		changed[top] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for changes: %w", root, err)
	}

	subjects := make([]string, 0, len(changed))
	for s := range changed {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}
