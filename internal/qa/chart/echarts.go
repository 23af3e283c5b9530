package chart

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Options controls the echarts rendering of a spec.
type Options struct {
	Width  int
	Height int

	// Rich enables legend, data labels, tooltip and toolbox.
	Rich bool
}

// DashboardOptions is used by the interactive dashboard.
var DashboardOptions = Options{Width: 900, Height: 500, Rich: true}

// Renderable is a go-echarts chart which renders itself as a HTML page.
type Renderable interface {
	components.Charter
	Render(w io.Writer) error
}

// NewEcharts converts the spec to a go-echarts chart.
func NewEcharts(s *Spec, o Options) Renderable {
	global := globalOptions(s, o)
	switch s.Type {
	case TypePie:
		return newPie(s, o, global)
	case TypeLine:
		return newLine(s, o, global)
	default:
		return newBar(s, o, global)
	}
}

// WriteHTML renders a single chart as a standalone HTML page.
func WriteHTML(w io.Writer, s *Spec, o Options) error {
	if s.Empty() {
		return errors.Errorf("chart %q has no data", s.ID)
	}
	return NewEcharts(s, o).Render(w)
}

// NewDashboardPage creates the page holding all report charts.
func NewDashboardPage(specs []*Spec) *components.Page {
	page := components.NewPage()
	page.PageTitle = "QA Report Dashboard"
	for _, s := range specs {
		if s.Empty() {
			continue
		}
		page.AddCharts(NewEcharts(s, DashboardOptions))
	}
	return page
}

// SaveDashboard creates the HTML dashboard file in a given path.
func SaveDashboard(path string, specs []*Spec) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create dashboard file %s", path)
	}
	defer f.Close()

	if err := NewDashboardPage(specs).Render(f); err != nil {
		return errors.Wrapf(err, "unable to render dashboard %s", path)
	}
	log.Debugf("Chart/Dashboard/Saved %d charts to %s", len(specs), path)
	return nil
}

func globalOptions(s *Spec, o Options) []charts.GlobalOpts {
	global := []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: s.Title,
			Width:     fmt.Sprintf("%dpx", o.Width),
			Height:    fmt.Sprintf("%dpx", o.Height),
			ChartID:   s.ID,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    s.Title,
			Subtitle: s.Subtitle,
		}),
	}
	if !o.Rich {
		return append(global, charts.WithLegendOpts(opts.Legend{Show: false}))
	}
	return append(global,
		charts.WithLegendOpts(opts.Legend{Show: true, Bottom: "0"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: true,
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: true, Type: "png", Title: "save"},
			},
		}),
	)
}

func newPie(s *Spec, o Options, global []charts.GlobalOpts) Renderable {
	pie := charts.NewPie()
	pie.SetGlobalOptions(global...)

	series := s.Series[0]
	items := make([]opts.PieData, 0, len(s.Labels))
	for idx, label := range s.Labels {
		item := opts.PieData{Name: label, Value: valueAt(series.Values, idx)}
		if idx < len(s.Palette) {
			item.ItemStyle = &opts.ItemStyle{Color: s.Palette[idx]}
		}
		items = append(items, item)
	}
	pie.AddSeries(series.Name, items)
	if o.Rich {
		pie.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: true, Formatter: "{b}: {c}"}))
	}
	return pie
}

func newLine(s *Spec, o Options, global []charts.GlobalOpts) Renderable {
	line := charts.NewLine()
	line.SetGlobalOptions(global...)
	line.SetXAxis(s.Labels)
	for _, series := range s.Series {
		data := make([]opts.LineData, 0, len(s.Labels))
		for idx := range s.Labels {
			data = append(data, opts.LineData{Value: valueAt(series.Values, idx)})
		}
		line.AddSeries(series.Name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: series.Color}))
	}
	if o.Rich {
		line.SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{Smooth: false, ShowSymbol: true, SymbolSize: 8, Symbol: "circle"}),
			charts.WithLabelOpts(opts.Label{Show: true}),
		)
	}
	return line
}

func newBar(s *Spec, o Options, global []charts.GlobalOpts) Renderable {
	bar := charts.NewBar()
	bar.SetGlobalOptions(global...)
	bar.SetXAxis(s.Labels)
	for _, series := range s.Series {
		data := make([]opts.BarData, 0, len(s.Labels))
		for idx := range s.Labels {
			data = append(data, opts.BarData{Value: valueAt(series.Values, idx)})
		}
		seriesOpts := []charts.SeriesOpts{charts.WithItemStyleOpts(opts.ItemStyle{Color: series.Color})}
		if s.Type == TypeStackedBar {
			seriesOpts = append(seriesOpts, charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
		}
		bar.AddSeries(series.Name, data, seriesOpts...)
	}
	if o.Rich {
		bar.SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: true}))
	}
	if s.Type == TypeHorizontalBar {
		bar.XYReversal()
	}
	return bar
}

func valueAt(values []float64, idx int) float64 {
	if idx < len(values) {
		return values[idx]
	}
	return 0
}
