package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/qctools/mrqc/internal/audit"
)

// WriteScores writes the per-sequence compliance scores as indented JSON.
func WriteScores(path string, res *audit.HorizontalResult) error {
	data, err := json.MarshalIndent(res.Scores(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating scores directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing scores: %w", err)
	}
	return nil
}
