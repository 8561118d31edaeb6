package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qctools/mrqc/internal/report"
)

var snapshotFlags struct {
	reportPath string
	output     string
}

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Short:   "Render an HTML compliance report to PNG",
	GroupID: GroupAudit,
	Long: `snapshot loads a previously generated compliance report in a headless
browser and captures it as a PNG, e.g. for embedding in a mail or a slide.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := snapshotFlags.output
		if out == "" {
			out = strings.TrimSuffix(snapshotFlags.reportPath, ".html") + ".png"
		}
		if err := report.Snapshot(cmd.Context(), snapshotFlags.reportPath, out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "snapshot: %s\n", out)
		return nil
	},
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotFlags.reportPath, "report", "", "path to the HTML report")
	f.StringVarP(&snapshotFlags.output, "output", "o", "", "PNG output path (default: report path with .png)")
	_ = snapshotCmd.MarkFlagRequired("report")

	rootCmd.AddCommand(snapshotCmd)
}
