package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/qctools/mrqc/internal/audit"
)

// Status captures the non-compliance state after one monitor run, so the
// next run can report what is new.
type Status struct {
	Dataset     string              `json:"dataset"`
	GeneratedAt time.Time           `json:"generated_at"`
	RunID       string              `json:"run_id"`
	// NonCompliant maps sequence id to its deviating subjects.
	NonCompliant map[string][]string `json:"non_compliant"`
}

// NewStatus builds the status of an audit run.
func NewStatus(name, runID string, res *audit.HorizontalResult) *Status {
	s := &Status{
		Dataset:      name,
		GeneratedAt:  time.Now().UTC(),
		RunID:        runID,
		NonCompliant: make(map[string][]string),
	}
	for _, seqID := range res.SequenceIDs() {
		if subs := res.NC.SubjectIDs(seqID); len(subs) > 0 {
			s.NonCompliant[seqID] = subs
		}
	}
	return s
}

// StatusPath returns the status file location for a dataset name.
func StatusPath(dir, name string) string {
	return filepath.Join(dir, name+"_status.json")
}

// Write stores the status as indented JSON.
func (s *Status) Write(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing status: %w", err)
	}
	return nil
}

// LoadStatus reads a previously written status file. A missing file yields
// a nil status without error: the first monitor run has no history.
func LoadStatus(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading status: %w", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}
	return &s, nil
}

// Diff returns the subjects that are non-compliant now but were not in the
// previous status, keyed by sequence id. A nil previous status makes every
// current deviation fresh.
func (s *Status) Diff(prev *Status) map[string][]string {
	fresh := make(map[string][]string)
	for seqID, subs := range s.NonCompliant {
		known := make(map[string]struct{})
		if prev != nil {
			for _, sub := range prev.NonCompliant[seqID] {
				known[sub] = struct{}{}
			}
		}
		var added []string
		for _, sub := range subs {
			if _, ok := known[sub]; !ok {
				added = append(added, sub)
			}
		}
		if len(added) > 0 {
			sort.Strings(added)
			fresh[seqID] = added
		}
	}
	return fresh
}
