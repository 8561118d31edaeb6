package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/qctools/mrqc/internal/audit"
	"github.com/qctools/mrqc/internal/config"
	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/protocol"
	"github.com/qctools/mrqc/internal/report"
	"github.com/qctools/mrqc/internal/tui"
)

var auditFlags struct {
	source         string
	style          string
	name           string
	outDir         string
	configPath     string
	refPath        string
	cachePath      string
	tolerance      float64
	decimals       int
	workers        int
	includePhantom bool
	skipHorizontal bool
	skipVertical   bool
	skipCharts     bool
}

var auditCmd = &cobra.Command{
	Use:     "audit",
	Short:   "Audit a dataset and write the compliance report",
	GroupID: GroupAudit,
	Example: `  mrqc audit -d /data/study -s bids -o /qa/study
  mrqc audit -d /data/study -s dicom --ref protocol.yaml --tolerance 0.01`,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringVarP(&auditFlags.source, "data-source", "d", "", "path to the dataset to audit")
	f.StringVarP(&auditFlags.style, "style", "s", "dicom", "dataset layout: dicom, bids or xnat")
	f.StringVarP(&auditFlags.name, "name", "n", "", "dataset name (default: source directory name)")
	f.StringVarP(&auditFlags.outDir, "output", "o", ".", "output directory for report, scores and cache")
	f.StringVar(&auditFlags.configPath, "config", "", "audit configuration file (TOML)")
	f.StringVar(&auditFlags.refPath, "ref", "", "reference protocol file (YAML or JSON)")
	f.StringVar(&auditFlags.cachePath, "cache", "", "dataset cache to reuse or create")
	f.Float64Var(&auditFlags.tolerance, "tolerance", 0, "relative tolerance for numeric parameters")
	f.IntVar(&auditFlags.decimals, "decimals", 3, "decimal places for numeric comparison")
	f.IntVar(&auditFlags.workers, "workers", 0, "parse concurrency (default: number of CPUs)")
	f.BoolVar(&auditFlags.includePhantom, "include-phantom", false, "keep phantom and localizer series")
	f.BoolVar(&auditFlags.skipHorizontal, "skip-horizontal", false, "leave the horizontal section out of the report")
	f.BoolVar(&auditFlags.skipVertical, "skip-vertical", false, "skip the vertical audit")
	f.BoolVar(&auditFlags.skipCharts, "skip-charts", false, "leave the deviation charts out of the report")
	_ = auditCmd.MarkFlagRequired("data-source")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadAuditConfig()
	if err != nil {
		return err
	}

	name := auditFlags.name
	if name == "" {
		name = datasetNameFromSource(auditFlags.source)
	}

	ds, err := obtainDataset(cmd.Context(), name)
	if err != nil {
		return err
	}
	logger.Info("dataset ready",
		zap.String("name", ds.Name),
		zap.Int("sequences", len(ds.SequenceIDs())))

	var ref *protocol.Protocol
	if cfg.Horizontal.ReferenceProtocol != "" {
		ref, err = protocol.LoadFile(cfg.Horizontal.ReferenceProtocol)
		if err != nil {
			return fmt.Errorf("loading reference protocol: %w", err)
		}
	}

	hres := audit.Horizontal(ds, audit.HorizontalOptions{
		Parameters: cfg.Horizontal.Parameters,
		StratifyBy: cfg.Horizontal.StratifyBy,
		Tolerance:  cfg.Horizontal.Tolerance,
		Decimals:   auditFlags.decimals,
		Reference:  ref,
	})
	var vres *audit.VerticalResult
	if !cfg.Report.SkipVertical {
		vres = audit.Vertical(ds, audit.VerticalOptions{
			Parameters: cfg.Vertical.Parameters,
			Pairs:      configuredPairs(cfg),
			Tolerance:  cfg.Horizontal.Tolerance,
			Decimals:   auditFlags.decimals,
		})
	}

	reportPath := filepath.Join(auditFlags.outDir, name+"_report.html")
	if err := report.WriteHTML(reportPath, &report.Data{
		Name:           name,
		Horizontal:     hres,
		Vertical:       vres,
		SkipHorizontal: cfg.Report.SkipHorizontal,
		SkipVertical:   cfg.Report.SkipVertical,
		SkipCharts:     auditFlags.skipCharts,
	}); err != nil {
		return err
	}

	scoresPath := filepath.Join(auditFlags.outDir, name+"_scores.json")
	if err := report.WriteScores(scoresPath, hres); err != nil {
		return err
	}
	if _, err := report.WriteSubjectLists(
		filepath.Join(auditFlags.outDir, name+"_subjects"), hres.NC, hres.SequenceIDs()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Summary(hres))
	fmt.Fprintf(cmd.OutOrStdout(), "report:  %s\nscores:  %s\n", reportPath, scoresPath)
	return nil
}

// loadAuditConfig reads the configuration file and folds the command line
// overrides into it.
func loadAuditConfig() (*config.Config, error) {
	cfg := config.Default()
	if auditFlags.configPath != "" {
		var err error
		cfg, err = config.Load(auditFlags.configPath)
		if err != nil {
			return nil, err
		}
	}
	if auditFlags.refPath != "" {
		cfg.Horizontal.ReferenceProtocol = auditFlags.refPath
	}
	if auditFlags.tolerance > 0 {
		cfg.Horizontal.Tolerance = auditFlags.tolerance
	}
	if auditFlags.skipHorizontal {
		cfg.Report.SkipHorizontal = true
	}
	if auditFlags.skipVertical {
		cfg.Report.SkipVertical = true
	}
	return cfg, nil
}

// obtainDataset loads the cached dataset when available, otherwise scans
// the source, with a progress bar when attached to a terminal.
func obtainDataset(ctx context.Context, name string) (*dataset.Dataset, error) {
	if auditFlags.cachePath != "" {
		if _, err := os.Stat(auditFlags.cachePath); err == nil {
			ds, err := dataset.Load(auditFlags.cachePath)
			if err == nil {
				logger.Info("loaded cached dataset", zap.String("cache", auditFlags.cachePath))
				return ds, nil
			}
			logger.Warn("cached dataset unreadable, rescanning", zap.Error(err))
		}
	}
	if auditFlags.source == "" {
		return nil, fmt.Errorf("a data source is required")
	}

	style := dataset.Style(auditFlags.style)
	reader, err := dataset.NewReader(style)
	if err != nil {
		return nil, err
	}
	opts := dataset.ReadOptions{
		Name:           name,
		IncludePhantom: auditFlags.includePhantom,
		Workers:        auditFlags.workers,
	}

	var ds *dataset.Dataset
	if term.IsTerminal(int(os.Stdout.Fd())) {
		err = tui.RunScan(name, func(onProgress func(done, total int)) error {
			opts.Progress = onProgress
			var scanErr error
			ds, scanErr = reader.Read(ctx, auditFlags.source, opts)
			return scanErr
		})
	} else {
		ds, err = reader.Read(ctx, auditFlags.source, opts)
	}
	if err != nil {
		return nil, err
	}

	if auditFlags.cachePath != "" {
		if err := ds.Save(auditFlags.cachePath); err != nil {
			logger.Warn("saving dataset cache", zap.Error(err))
		}
	}
	return ds, nil
}

func datasetNameFromSource(source string) string {
	return filepath.Base(filepath.Clean(source))
}

func configuredPairs(cfg *config.Config) [][2]string {
	out := make([][2]string, 0, len(cfg.Vertical.Pairs))
	for _, p := range cfg.Vertical.Pairs {
		if len(p) == 2 {
			out = append(out, [2]string{p[0], p[1]})
		}
	}
	return out
}
