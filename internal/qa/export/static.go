package export

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/qa-tracking/qa-report-tool/internal/qa/chart"
)

// StaticRasterizer draws charts to PNG with go-chart, without a browser.
// Horizontal and stacked bars are drawn as plain bars, lines with a single
// point as a bar.
type StaticRasterizer struct{}

type pngRenderer interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

func (StaticRasterizer) Rasterize(ctx context.Context, s *chart.Spec, o chart.Options) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Empty() {
		return nil, errors.Errorf("chart %q has no data", s.ID)
	}

	var r pngRenderer
	switch {
	case s.Type == chart.TypePie:
		r = staticPie(s, o)
	case s.Type == chart.TypeLine && len(s.Labels) > 1:
		r = staticLine(s, o)
	default:
		r = staticBar(s, o)
	}

	var buf bytes.Buffer
	if err := r.Render(gochart.PNG, &buf); err != nil {
		return nil, errors.Wrapf(err, "unable to draw chart %s", s.ID)
	}
	return buf.Bytes(), nil
}

func staticPie(s *chart.Spec, o chart.Options) pngRenderer {
	values := make([]gochart.Value, 0, len(s.Labels))
	for idx, label := range s.Labels {
		v := valueAt(s.Series[0].Values, idx)
		if v <= 0 {
			continue
		}
		item := gochart.Value{Label: label, Value: v}
		if idx < len(s.Palette) {
			item.Style = gochart.Style{FillColor: hexColor(s.Palette[idx])}
		}
		values = append(values, item)
	}
	return gochart.PieChart{
		Title:  s.Title,
		Width:  o.Width,
		Height: o.Height,
		Values: values,
	}
}

func staticBar(s *chart.Spec, o chart.Options) pngRenderer {
	series := s.Series[0]
	bars := make([]gochart.Value, 0, len(s.Labels))
	for idx, label := range s.Labels {
		bar := gochart.Value{Label: label, Value: valueAt(series.Values, idx)}
		if series.Color != "" {
			bar.Style = gochart.Style{FillColor: hexColor(series.Color), StrokeColor: hexColor(series.Color)}
		}
		bars = append(bars, bar)
	}
	barWidth := 40
	if n := len(bars); n > 0 && o.Width/(n*2) < barWidth {
		barWidth = max(o.Width/(n*2), 4)
	}
	return gochart.BarChart{
		Title:      s.Title,
		Width:      o.Width,
		Height:     o.Height,
		BarWidth:   barWidth,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		YAxis:      gochart.YAxis{Range: yRange(series.Values)},
		Bars:       bars,
	}
}

func staticLine(s *chart.Spec, o chart.Options) pngRenderer {
	ticks := make([]gochart.Tick, 0, len(s.Labels))
	xs := make([]float64, 0, len(s.Labels))
	for idx, label := range s.Labels {
		ticks = append(ticks, gochart.Tick{Value: float64(idx), Label: label})
		xs = append(xs, float64(idx))
	}
	all := []float64{}
	series := make([]gochart.Series, 0, len(s.Series))
	for _, sr := range s.Series {
		ys := make([]float64, 0, len(xs))
		for idx := range xs {
			ys = append(ys, valueAt(sr.Values, idx))
		}
		all = append(all, ys...)
		style := gochart.Style{StrokeWidth: 2}
		if sr.Color != "" {
			style.StrokeColor = hexColor(sr.Color)
		}
		series = append(series, gochart.ContinuousSeries{Name: sr.Name, Style: style, XValues: xs, YValues: ys})
	}
	graph := gochart.Chart{
		Title:      s.Title,
		Width:      o.Width,
		Height:     o.Height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		XAxis:      gochart.XAxis{Ticks: ticks},
		YAxis:      gochart.YAxis{Range: yRange(all)},
		Series:     series,
	}
	return graph
}

// yRange starts the axis at zero, with some headroom over the maximum.
func yRange(values []float64) *gochart.ContinuousRange {
	top := 0.0
	for _, v := range values {
		top = max(top, v)
	}
	if top <= 0 {
		top = 1
	}
	return &gochart.ContinuousRange{Min: 0, Max: top * 1.1}
}

func hexColor(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func valueAt(values []float64, idx int) float64 {
	if idx < len(values) {
		return values[idx]
	}
	return 0
}
