package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/qctools/mrqc/internal/audit"
)

// WriteSubjectLists writes one text file per non-compliant sequence into
// dir, listing the deviating subject ids one per line. Returns the written
// paths. Sequence names become slugs so scanner naming like
// "gre_field_mapping_ATTR_P" or names with spaces produce safe filenames.
func WriteSubjectLists(dir string, nc *audit.NonCompliantSet, seqIDs []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating subject list directory: %w", err)
	}

	var paths []string
	for _, seqID := range seqIDs {
		subjects := nc.SubjectIDs(seqID)
		if len(subjects) == 0 {
			continue
		}
		path := filepath.Join(dir, Slug(seqID)+"_subjects.txt")
		body := strings.Join(subjects, "\n") + "\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("writing subject list for %s: %w", seqID, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Slug turns a sequence name into a filesystem-safe token: accents
// stripped, lowercased, runs of non-alphanumerics collapsed to single
// hyphens.
func Slug(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
