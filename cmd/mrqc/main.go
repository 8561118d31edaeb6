/*
mrqc audits MRI datasets for protocol compliance.

It reads a dataset in DICOM, BIDS or XNAT layout, checks every acquired
sequence against a reference protocol (inferred by majority vote or loaded
from a file), and writes an HTML compliance report plus a JSON file of
per-sequence compliance scores.

Usage:

	mrqc <command> [arguments]

Common commands:

	mrqc audit      Audit a dataset and write the compliance report
	mrqc monitor    Re-audit a dataset when new acquisitions arrive
	mrqc snapshot   Render an HTML compliance report to PNG
	mrqc version    Print the mrqc version

Run "mrqc help <command>" for details on a command.
*/
package main

import (
	"os"

	"github.com/qctools/mrqc/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
