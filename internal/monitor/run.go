package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/qctools/mrqc/internal/audit"
	"github.com/qctools/mrqc/internal/config"
	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/protocol"
	"github.com/qctools/mrqc/internal/report"
)

// renderSnapshot is swapped out in tests that cannot launch a browser.
var renderSnapshot = report.Snapshot

// RunOptions configure one monitor pass over a dataset.
type RunOptions struct {
	Name   string
	Source string
	Style  dataset.Style
	OutDir string

	Config   *config.Config
	Decimals int

	// Force re-audits even when nothing under Source changed.
	Force bool
	// Snapshot renders the report to PNG for the alert attachment. The
	// config's report.snapshot knob enables it as well.
	Snapshot bool
	// Alert enables mailing fresh deviations when set.
	Alert *AlertConfig

	Read   dataset.ReadOptions
	Logger *zap.Logger
}

// RunResult describes what a monitor pass did.
type RunResult struct {
	// Skipped is true when nothing changed since the last run.
	Skipped bool

	ReportPath string
	ScoresPath string
	CachePath  string
	Record     Record

	Horizontal *audit.HorizontalResult
	// Fresh lists deviating subjects that the previous run did not know,
	// keyed by sequence id.
	Fresh map[string][]string
}

// Run executes one monitor pass: detect changes, rescan, merge with the
// cached dataset, re-audit, refresh the artifacts and alert on new
// deviations. Guarded by a file lock so overlapping invocations (cron,
// manual runs) cannot interleave.
func Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	lock, err := Acquire(filepath.Join(opts.OutDir, opts.Name+".lock"))
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	recordsPath := RecordsPath(opts.OutDir, opts.Name)
	last, err := Last(recordsPath)
	hasHistory := err == nil
	if err != nil && !errors.Is(err, ErrNoRecords) {
		return nil, err
	}

	if hasHistory && !opts.Force {
		changed, err := ChangedSubjects(opts.Source, last.Timestamp)
		if err != nil {
			return nil, err
		}
		if len(changed) == 0 {
			log.Info("no changes since last run",
				zap.String("dataset", opts.Name),
				zap.Time("last_run", last.Timestamp))
			return &RunResult{Skipped: true, Record: last}, nil
		}
		log.Info("changes detected", zap.Strings("subjects", changed))
	}

	ds, err := scanAndMerge(ctx, opts, last, hasHistory, log)
	if err != nil {
		return nil, err
	}

	var ref *protocol.Protocol
	if cfg.Horizontal.ReferenceProtocol != "" {
		ref, err = protocol.LoadFile(cfg.Horizontal.ReferenceProtocol)
		if err != nil {
			// fall back to inference rather than aborting the pass
			log.Error("loading reference protocol, falling back to inference", zap.Error(err))
			ref = nil
		}
	}

	hres := audit.Horizontal(ds, audit.HorizontalOptions{
		Parameters: cfg.Horizontal.Parameters,
		StratifyBy: cfg.Horizontal.StratifyBy,
		Tolerance:  cfg.Horizontal.Tolerance,
		Decimals:   opts.Decimals,
		Reference:  ref,
	})
	var vres *audit.VerticalResult
	if !cfg.Report.SkipVertical {
		vres = audit.Vertical(ds, audit.VerticalOptions{
			Parameters: cfg.Vertical.Parameters,
			Pairs:      pairArray(cfg.Vertical.Pairs),
			Tolerance:  cfg.Horizontal.Tolerance,
			Decimals:   opts.Decimals,
		})
	}

	result := &RunResult{
		ReportPath: filepath.Join(opts.OutDir, opts.Name+"_report.html"),
		ScoresPath: filepath.Join(opts.OutDir, opts.Name+"_scores.json"),
		CachePath:  filepath.Join(opts.OutDir, opts.Name+".mrqc.gz"),
		Horizontal: hres,
	}

	if err := report.WriteHTML(result.ReportPath, &report.Data{
		Name:           opts.Name,
		Horizontal:     hres,
		Vertical:       vres,
		SkipHorizontal: cfg.Report.SkipHorizontal,
		SkipVertical:   cfg.Report.SkipVertical,
	}); err != nil {
		return nil, err
	}
	if err := report.WriteScores(result.ScoresPath, hres); err != nil {
		return nil, err
	}
	if _, err := report.WriteSubjectLists(
		filepath.Join(opts.OutDir, opts.Name+"_subjects"), hres.NC, hres.SequenceIDs()); err != nil {
		return nil, err
	}
	if err := ds.Save(result.CachePath); err != nil {
		return nil, err
	}

	result.Record = NewRecord(result.ReportPath, result.CachePath)
	if err := Append(recordsPath, result.Record); err != nil {
		return nil, err
	}

	statusPath := StatusPath(opts.OutDir, opts.Name)
	prev, err := LoadStatus(statusPath)
	if err != nil {
		return nil, err
	}
	status := NewStatus(opts.Name, result.Record.RunID, hres)
	if err := status.Write(statusPath); err != nil {
		return nil, err
	}
	result.Fresh = status.Diff(prev)

	if len(result.Fresh) > 0 && opts.Alert != nil {
		attachment := ""
		if opts.Snapshot || cfg.Report.Snapshot {
			png := filepath.Join(opts.OutDir, opts.Name+"_report.png")
			if err := renderSnapshot(ctx, result.ReportPath, png); err != nil {
				log.Error("snapshotting report", zap.Error(err))
			} else {
				attachment = png
			}
		}
		if err := SendAlert(*opts.Alert, opts.Name, result.Fresh, attachment); err != nil {
			log.Error("sending alert", zap.Error(err))
		}
	}
	return result, nil
}

// scanAndMerge rescans the source and folds the result into the cached
// dataset of the previous run, so subjects that left the disk stay audited.
func scanAndMerge(ctx context.Context, opts RunOptions, last Record, hasHistory bool, log *zap.Logger) (*dataset.Dataset, error) {
	reader, err := dataset.NewReader(opts.Style)
	if err != nil {
		return nil, err
	}
	readOpts := opts.Read
	readOpts.Name = opts.Name
	scanned, err := reader.Read(ctx, opts.Source, readOpts)
	if err != nil {
		return nil, err
	}

	if !hasHistory || last.CachePath == "" {
		return scanned, nil
	}
	cached, err := dataset.Load(last.CachePath)
	if err != nil {
		log.Warn("cached dataset unreadable, rescanned from scratch",
			zap.String("cache", last.CachePath), zap.Error(err))
		return scanned, nil
	}
	cached.Merge(scanned)
	return cached, nil
}

func pairArray(pairs [][]string) [][2]string {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		if len(p) == 2 {
			out = append(out, [2]string{p[0], p[1]})
		}
	}
	return out
}
