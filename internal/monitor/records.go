// Package monitor keeps a dataset under continuous audit: it remembers
// past runs in a records log, detects new acquisitions, re-audits and
// reports what changed.
package monitor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecords indicates an empty or absent records log.
var ErrNoRecords = errors.New("no audit records")

// Record is one line of the records log: a completed audit run and the
// artifacts it produced.
type Record struct {
	Timestamp  time.Time
	RunID      string
	ReportPath string
	CachePath  string
}

// NewRecord stamps a fresh record for the current run.
func NewRecord(reportPath, cachePath string) Record {
	return Record{
		Timestamp:  time.Now().UTC(),
		RunID:      uuid.New().String(),
		ReportPath: reportPath,
		CachePath:  cachePath,
	}
}

var recordsHeader = []string{"timestamp", "run_id", "report_path", "cache_path"}

// RecordsPath returns the records log location for a dataset name.
func RecordsPath(dir, name string) string {
	return filepath.Join(dir, name+"_records.csv")
}

// Append writes a record to the log, creating it with a header line first.
func Append(path string, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating records directory: %w", err)
	}
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening records log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(recordsHeader); err != nil {
			return fmt.Errorf("writing records header: %w", err)
		}
	}
	// nanosecond precision so a file written moments before the record
	// never looks newer than it on the next change scan
	row := []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.RunID,
		rec.ReportPath,
		rec.CachePath,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Read returns every record in the log, oldest first.
func Read(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoRecords, path)
		}
		return nil, fmt.Errorf("opening records log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var records []Record
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading records log: %w", err)
		}
		if first {
			first = false
			continue // header
		}
		if len(row) != len(recordsHeader) {
			return nil, fmt.Errorf("malformed record with %d fields in %s", len(row), path)
		}
		ts, err := time.Parse(time.RFC3339Nano, row[0])
		if err != nil {
			return nil, fmt.Errorf("malformed record timestamp %q: %w", row[0], err)
		}
		records = append(records, Record{
			Timestamp:  ts,
			RunID:      row[1],
			ReportPath: row[2],
			CachePath:  row[3],
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRecords, path)
	}
	return records, nil
}

// Last returns the most recent record.
func Last(path string) (Record, error) {
	records, err := Read(path)
	if err != nil {
		return Record{}, err
	}
	return records[len(records)-1], nil
}
