// Package export rasterizes report charts and writes the PDF report.
//
// Each chart is rasterized by trying the strategies in priority order: the
// first one producing a large enough image wins. When every strategy fails
// the chart image is left out of the PDF, the narrative still prints.
package export

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/qa-tracking/qa-report-tool/internal/qa/chart"
)

// Defaults of the Exporter.
const (
	DefaultMinBytes = 1024
	DefaultTimeout  = 20 * time.Second
)

// ErrAllStrategiesFailed is returned in the chain of errors when no strategy
// could rasterize a chart.
var ErrAllStrategiesFailed = errors.New("all rasterization strategies failed")

// Renderer names the backend used by a strategy.
type Renderer string

const (
	RendererBrowser Renderer = "browser"
	RendererStatic  Renderer = "static"
)

// Strategy is one attempt to turn a chart into an image.
type Strategy struct {
	Name     string
	Renderer Renderer
	Width    int
	Height   int

	// Rich enables legend, labels and toolbox on the browser rendering.
	Rich bool

	// MaxPoints keeps the first series and the first points only, when set.
	MaxPoints int

	// Placeholder replaces the chart with a synthetic titled bar.
	Placeholder bool
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "full", Renderer: RendererBrowser, Width: 700, Height: 450, Rich: true},
		{Name: "minimal", Renderer: RendererBrowser, Width: 600, Height: 400},
		{Name: "simplified", Renderer: RendererStatic, Width: 500, Height: 350, MaxPoints: 10},
		{Name: "placeholder", Renderer: RendererStatic, Width: 400, Height: 300, Placeholder: true},
	}
}

// Prepare returns the spec the strategy renders.
func (st Strategy) Prepare(s *chart.Spec) *chart.Spec {
	switch {
	case st.Placeholder:
		return chart.Placeholder(s)
	case st.MaxPoints > 0:
		return s.Simplify(st.MaxPoints)
	}
	return s
}

// Options returns the rendering options of the strategy.
func (st Strategy) Options() chart.Options {
	return chart.Options{Width: st.Width, Height: st.Height, Rich: st.Rich}
}

// Rasterizer renders a chart spec to a PNG image.
type Rasterizer interface {
	Rasterize(ctx context.Context, s *chart.Spec, o chart.Options) ([]byte, error)
}

// Image is a rasterized chart.
type Image struct {
	Data     []byte
	Strategy string
	Width    int
	Height   int
}

// Exporter runs the strategy cascade.
type Exporter struct {
	Strategies  []Strategy
	Rasterizers map[Renderer]Rasterizer
	MinBytes    int
	Timeout     time.Duration
}

// NewExporter creates an exporter with the default strategies.
func NewExporter(rasterizers map[Renderer]Rasterizer) *Exporter {
	return &Exporter{
		Strategies:  DefaultStrategies(),
		Rasterizers: rasterizers,
		MinBytes:    DefaultMinBytes,
		Timeout:     DefaultTimeout,
	}
}

// Rasterize tries each strategy in order and returns the first image with
// at least MinBytes. The error combines ErrAllStrategiesFailed with the
// error of each strategy.
func (e *Exporter) Rasterize(ctx context.Context, s *chart.Spec) (*Image, error) {
	var errs error
	for _, st := range e.Strategies {
		data, err := e.attempt(ctx, st, s)
		if err == nil {
			log.Debugf("Export/Rasterize/%s: strategy %s succeeded with %d bytes", s.ID, st.Name, len(data))
			return &Image{Data: data, Strategy: st.Name, Width: st.Width, Height: st.Height}, nil
		}
		log.Debugf("Export/Rasterize/%s: strategy %s failed: %v", s.ID, st.Name, err)
		errs = multierr.Append(errs, errors.Wrapf(err, "strategy %s", st.Name))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, multierr.Combine(ErrAllStrategiesFailed, errs)
}

func (e *Exporter) attempt(parent context.Context, st Strategy, s *chart.Spec) ([]byte, error) {
	r, ok := e.Rasterizers[st.Renderer]
	if !ok || r == nil {
		return nil, errors.Errorf("no rasterizer for renderer %s", st.Renderer)
	}
	spec := st.Prepare(s)
	if spec.Empty() {
		return nil, errors.New("nothing to plot")
	}

	ctx := parent
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, e.Timeout)
		defer cancel()
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := r.Rasterize(ctx, spec, st.Options())
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "rasterization timed out")
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.data) < e.MinBytes {
			return nil, errors.Errorf("image too small: %d bytes, minimum is %d", len(res.data), e.MinBytes)
		}
		return res.data, nil
	}
}
