package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qctools/mrqc/internal/config"
	"github.com/qctools/mrqc/internal/dataset"
	"github.com/qctools/mrqc/internal/monitor"
)

var monitorFlags struct {
	source     string
	style      string
	name       string
	outDir     string
	configPath string
	decimals   int
	workers    int
	force      bool
	snapshot   bool

	smtpHost string
	smtpPort int
	smtpUser string
	smtpPass string
	mailFrom string
	mailTo   []string
}

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "Re-audit a dataset when new acquisitions arrive",
	GroupID: GroupAudit,
	Long: `monitor keeps a dataset under continuous audit. Each invocation checks
whether anything below the data source changed since the last recorded run,
rescans and re-audits when it did, and appends a record of the run. Fresh
deviations can be mailed out, optionally with a PNG snapshot of the report
attached.

A file lock in the output directory keeps overlapping invocations (cron,
manual runs) from interleaving.`,
	Example: `  mrqc monitor -d /data/study -s dicom -n study -o /qa/study
  mrqc monitor -d /data/study -s bids -o /qa/study --mail-to qa@example.org --smtp-host mail.example.org`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVarP(&monitorFlags.source, "data-source", "d", "", "path to the dataset to monitor")
	f.StringVarP(&monitorFlags.style, "style", "s", "dicom", "dataset layout: dicom, bids or xnat")
	f.StringVarP(&monitorFlags.name, "name", "n", "", "dataset name (default: source directory name)")
	f.StringVarP(&monitorFlags.outDir, "output", "o", ".", "output directory for artifacts and records")
	f.StringVar(&monitorFlags.configPath, "config", "", "audit configuration file (TOML)")
	f.IntVar(&monitorFlags.decimals, "decimals", 3, "decimal places for numeric comparison")
	f.IntVar(&monitorFlags.workers, "workers", 0, "parse concurrency (default: number of CPUs)")
	f.BoolVar(&monitorFlags.force, "force", false, "re-audit even when nothing changed")
	f.BoolVar(&monitorFlags.snapshot, "snapshot", false, "attach a PNG snapshot of the report to alerts")

	f.StringVar(&monitorFlags.smtpHost, "smtp-host", "", "SMTP host for alerts")
	f.IntVar(&monitorFlags.smtpPort, "smtp-port", 25, "SMTP port")
	f.StringVar(&monitorFlags.smtpUser, "smtp-user", "", "SMTP username")
	f.StringVar(&monitorFlags.smtpPass, "smtp-pass", "", "SMTP password")
	f.StringVar(&monitorFlags.mailFrom, "mail-from", "", "alert sender address")
	f.StringSliceVar(&monitorFlags.mailTo, "mail-to", nil, "alert recipients")
	_ = monitorCmd.MarkFlagRequired("data-source")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if monitorFlags.configPath != "" {
		var err error
		cfg, err = config.Load(monitorFlags.configPath)
		if err != nil {
			return err
		}
	}

	name := monitorFlags.name
	if name == "" {
		name = datasetNameFromSource(monitorFlags.source)
	}

	var alert *monitor.AlertConfig
	if len(monitorFlags.mailTo) > 0 {
		alert = &monitor.AlertConfig{
			Host:     monitorFlags.smtpHost,
			Port:     monitorFlags.smtpPort,
			Username: monitorFlags.smtpUser,
			Password: monitorFlags.smtpPass,
			From:     monitorFlags.mailFrom,
			To:       monitorFlags.mailTo,
		}
	}

	res, err := monitor.Run(cmd.Context(), monitor.RunOptions{
		Name:     name,
		Source:   monitorFlags.source,
		Style:    dataset.Style(monitorFlags.style),
		OutDir:   monitorFlags.outDir,
		Config:   cfg,
		Decimals: monitorFlags.decimals,
		Force:    monitorFlags.force,
		Snapshot: monitorFlags.snapshot,
		Alert:    alert,
		Read:     dataset.ReadOptions{Workers: monitorFlags.workers},
		Logger:   logger,
	})
	if err != nil {
		if errors.Is(err, monitor.ErrLocked) {
			return fmt.Errorf("%s is already being monitored, try again later", name)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(out, "%s: no changes since %s, nothing to do\n",
			name, res.Record.Timestamp.Format("2006-01-02 15:04"))
		return nil
	}
	fmt.Fprintf(out, "report:  %s\nscores:  %s\n", res.ReportPath, res.ScoresPath)
	if len(res.Fresh) == 0 {
		fmt.Fprintln(out, "no new deviations")
		return nil
	}
	for seqID, subjects := range res.Fresh {
		fmt.Fprintf(out, "new deviations in %s: %v\n", seqID, subjects)
	}
	return nil
}
