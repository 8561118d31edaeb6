package report

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/qctools/mrqc/internal/audit"
)

// Chart is one inline SVG figure of the report.
type Chart struct {
	Title string
	SVG   template.HTML
}

const (
	chartBarWidth   = 56
	chartBarGap     = 18
	chartBarArea    = 150
	chartAxisHeight = 70
	chartPadding    = 30
)

// DeviationCharts builds one bar chart per deviating parameter, showing how
// many subjects of each sequence carry a deviating value.
func DeviationCharts(res *audit.HorizontalResult) []Chart {
	var charts []Chart
	for _, param := range res.NC.Parameters() {
		seqIDs := res.NC.Sequences(param)
		counts := make([]int, len(seqIDs))
		maxCount := 1
		for i, id := range seqIDs {
			seen := make(map[string]struct{})
			for _, o := range res.NC.Observations(param, id) {
				seen[o.Subject] = struct{}{}
			}
			counts[i] = len(seen)
			if counts[i] > maxCount {
				maxCount = counts[i]
			}
		}
		charts = append(charts, Chart{
			Title: param,
			SVG:   barChart(seqIDs, counts, maxCount),
		})
	}
	return charts
}

// barChart renders a vertical bar chart as inline SVG.
func barChart(labels []string, counts []int, maxCount int) template.HTML {
	width := chartPadding*2 + len(labels)*(chartBarWidth+chartBarGap)
	height := chartBarArea + chartAxisHeight

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img">`,
		width, height, width, height)
	fmt.Fprintf(&b, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#94a3b8"/>`,
		chartPadding/2, chartBarArea, width-chartPadding/2, chartBarArea)

	for i, label := range labels {
		barHeight := counts[i] * chartBarArea / maxCount
		x := chartPadding + i*(chartBarWidth+chartBarGap)
		y := chartBarArea - barHeight
		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" fill="#f87171"/>`,
			x, y, chartBarWidth, barHeight)
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="middle" font-size="12">%d</text>`,
			x+chartBarWidth/2, y-4, counts[i])
		fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end" font-size="11" transform="rotate(-40 %d %d)">%s</text>`,
			x+chartBarWidth/2, chartBarArea+14, x+chartBarWidth/2, chartBarArea+14,
			template.HTMLEscapeString(truncateLabel(label)))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String())
}

func truncateLabel(s string) string {
	const max = 24
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
