// Package cmd provides the CLI commands of the mrqc tool.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mrqc",
	Short: "mrqc - MRI protocol compliance auditor",
	Long: `mrqc audits the acquisition parameters of an MRI dataset against a
reference protocol.

It reads DICOM, BIDS or XNAT data, infers or loads the reference protocol,
partitions every sequence into compliant, non-compliant or undetermined,
and renders an HTML compliance report with per-parameter drill-downs.`,
	SilenceUsage:      true,
	PersistentPreRunE: persistentPreRun,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// persistentPreRun initializes the logger before every command.
func persistentPreRun(cmd *cobra.Command, args []string) error {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	var err error
	logger, err = config.Build()
	if err != nil {
		return err
	}
	return nil
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		// error already printed by cobra
		return 1
	}
	return 0
}

// Command group IDs - used by subcommands to organize help output
const (
	GroupAudit = "audit"
	GroupDiag  = "diag"
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupAudit, Title: "Auditing:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupDiag)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
