// Package report renders audit results: the HTML compliance report, the
// JSON score file, non-compliant subject lists and the terminal summary.
package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qctools/mrqc/internal/audit"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Data is the context the report template renders.
type Data struct {
	Name        string
	GeneratedAt time.Time

	Horizontal *audit.HorizontalResult
	Vertical   *audit.VerticalResult

	// Section flags. A skipped section is left out of the document.
	SkipHorizontal bool
	SkipVertical   bool
	SkipCharts     bool

	// Charts holds the pre-rendered SVG deviation charts.
	Charts []Chart

	// Rows and Reference are derived from Horizontal before rendering.
	Rows      []SummaryRow
	Reference []ReferenceRow
}

// SummaryRow is one line of the per-sequence summary table.
type SummaryRow struct {
	SeqID               string
	Subjects            int
	Status              string
	PercentCompliant    float64
	PercentNonCompliant float64
	TiedParams          []string
}

// ParamValue is one expected parameter of the reference protocol.
type ParamValue struct {
	Name  string
	Value string
}

// ReferenceRow lists the reference expectations of one sequence.
type ReferenceRow struct {
	SeqID  string
	Params []ParamValue
}

const (
	StatusCompliant    = "Compliant"
	StatusNonCompliant = "Non-compliant"
	StatusUndetermined = "Undetermined"
)

// buildRows derives the summary table from the horizontal partitions.
func buildRows(res *audit.HorizontalResult) []SummaryRow {
	var rows []SummaryRow
	for _, seqID := range res.SequenceIDs() {
		row := SummaryRow{
			SeqID:      seqID,
			Subjects:   res.SubjectCount(seqID),
			TiedParams: res.Ties[seqID],
		}
		switch {
		case len(res.Undetermined.SubjectIDs(seqID)) > 0:
			row.Status = StatusUndetermined
		case len(res.NonCompliant.SubjectIDs(seqID)) > 0:
			row.Status = StatusNonCompliant
			row.PercentCompliant = res.PercentCompliant(seqID)
			row.PercentNonCompliant = res.PercentNonCompliant(seqID)
		default:
			row.Status = StatusCompliant
			row.PercentCompliant = res.PercentCompliant(seqID)
		}
		rows = append(rows, row)
	}
	return rows
}

// buildReference flattens the reference protocol for the template.
func buildReference(res *audit.HorizontalResult) []ReferenceRow {
	if res.Reference == nil {
		return nil
	}
	var rows []ReferenceRow
	for _, seqID := range res.Reference.SequenceIDs() {
		seq, ok := res.Reference.Sequence(seqID)
		if !ok {
			continue
		}
		row := ReferenceRow{SeqID: seqID}
		for _, name := range seq.ParamNames() {
			v, _ := seq.Get(name)
			row.Params = append(row.Params, ParamValue{Name: name, Value: v.String()})
		}
		rows = append(rows, row)
	}
	return rows
}

// loadTemplates parses the embedded report templates.
func loadTemplates() (*template.Template, error) {
	tmpl := template.New("report").Funcs(template.FuncMap{
		"pct":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"join": func(items []string) string { return strings.Join(items, ", ") },
	})
	tmpl, err := tmpl.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing report templates: %w", err)
	}
	return tmpl, nil
}

// WriteHTML renders the compliance report to path.
func WriteHTML(path string, data *Data) error {
	tmpl, err := loadTemplates()
	if err != nil {
		return err
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	if data.Horizontal != nil {
		data.Rows = buildRows(data.Horizontal)
		data.Reference = buildReference(data.Horizontal)
		if !data.SkipCharts && len(data.Charts) == 0 {
			data.Charts = DeviationCharts(data.Horizontal)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := tmpl.ExecuteTemplate(f, "report.html.tmpl", data); err != nil {
		f.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
