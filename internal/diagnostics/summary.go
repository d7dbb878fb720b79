package diagnostics

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/qrdar/internal/survey"
)

// statusOrder fixes the bar order of the status chart.
var statusOrder = []string{
	survey.StatusOK,
	survey.StatusAmbiguous,
	survey.StatusNoCandidates,
	survey.StatusNoTransform,
	survey.StatusError,
}

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// WriteSummaryHTML renders a page with the target positions coloured by
// decode confidence and the count of targets per status.
func WriteSummaryHTML(w io.Writer, title string, records []survey.Record) error {
	counts := map[string]int{}
	points := make([]opts.ScatterData, 0, len(records))
	for _, rec := range records {
		status := rec.Status()
		counts[status]++

		conf := 0.0
		code := "-"
		if rec.Result != nil {
			conf = rec.Result.Confidence
			code = fmt.Sprint(rec.Result.Code)
			if rec.Result.Ambiguous {
				code = fmt.Sprint(rec.Result.Candidates)
			}
		}
		c := rec.Target.Centroid
		points = append(points, opts.ScatterData{
			Name:  fmt.Sprintf("target %d: %s %s", rec.Target.ID, status, code),
			Value: []interface{}{c[0], c[1], conf},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Targets", Subtitle: fmt.Sprintf("%s targets=%d", title, len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Min:        0,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("confidence", points, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	bars := make([]opts.BarData, len(statusOrder))
	for i, s := range statusOrder {
		bars[i] = opts.BarData{Value: counts[s]}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Status"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(statusOrder).
		AddSeries("targets", bars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(scatter, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
