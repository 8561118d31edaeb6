package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/qctools/mrqc/internal/audit"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true)
	compliantStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	nonCompliantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	undeterminedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	seqStyle          = lipgloss.NewStyle().Width(32)
)

// Summary renders a per-sequence verdict block for the terminal.
func Summary(res *audit.HorizontalResult) string {
	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render(fmt.Sprintf("%s: %d sequences audited", res.Complete.Name, len(res.SequenceIDs()))))
	b.WriteByte('\n')

	for _, row := range buildRows(res) {
		var verdict string
		switch row.Status {
		case StatusCompliant:
			verdict = compliantStyle.Render("compliant")
		case StatusNonCompliant:
			verdict = nonCompliantStyle.Render(fmt.Sprintf("non-compliant (%.2f%% of %d subjects)",
				row.PercentNonCompliant, row.Subjects))
		default:
			verdict = undeterminedStyle.Render("undetermined")
		}
		fmt.Fprintf(&b, "  %s %s\n", seqStyle.Render(row.SeqID), verdict)
		if len(row.TiedParams) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", seqStyle.Render(""),
				undeterminedStyle.Render("no clear majority for "+strings.Join(row.TiedParams, ", ")))
		}
	}
	return b.String()
}
