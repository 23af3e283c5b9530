package export

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qa-tracking/qa-report-tool/internal/qa/chart"
)

// ErrBrowserNotFound is returned when no browser binary is set and none is
// installed. The launcher never downloads one.
var ErrBrowserNotFound = errors.New("no browser found, set browser-bin to enable the browser strategies")

// BrowserRasterizer takes a screenshot of the echarts rendering in a headless
// browser. The browser is launched on first use and reused until Close. A
// failed launch is not retried.
type BrowserRasterizer struct {
	// Bin is the browser binary, empty to look for an installed one.
	Bin string

	// Settle is the time the page must stay stable before the screenshot.
	Settle time.Duration

	mu        sync.Mutex
	browser   *rod.Browser
	launchErr error

	lookPath func() (string, bool)
	launch   func(bin string) (string, error)
}

func NewBrowserRasterizer(bin string) *BrowserRasterizer {
	return &BrowserRasterizer{
		Bin:      bin,
		Settle:   500 * time.Millisecond,
		lookPath: launcher.LookPath,
		launch: func(bin string) (string, error) {
			return launcher.New().Bin(bin).Headless(true).Launch()
		},
	}
}

func (b *BrowserRasterizer) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}
	if b.launchErr != nil {
		return nil, b.launchErr
	}
	browser, err := b.start()
	if err != nil {
		b.launchErr = err
		log.Warnf("Export/Browser: %v, browser strategies disabled", err)
		return nil, err
	}
	b.browser = browser
	return browser, nil
}

func (b *BrowserRasterizer) start() (*rod.Browser, error) {
	bin := b.Bin
	if bin == "" {
		found, ok := b.lookPath()
		if !ok {
			return nil, ErrBrowserNotFound
		}
		bin = found
	}
	controlURL, err := b.launch(bin)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to launch the browser %s", bin)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, errors.Wrap(err, "unable to connect to the browser")
	}
	log.Debugf("Export/Browser/Connected: %s", controlURL)
	return browser, nil
}

// Rasterize renders the chart page and screenshots the viewport.
func (b *BrowserRasterizer) Rasterize(ctx context.Context, s *chart.Spec, o chart.Options) ([]byte, error) {
	var html bytes.Buffer
	if err := chart.WriteHTML(&html, s, o); err != nil {
		return nil, err
	}

	browser, err := b.connect()
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errors.Wrap(err, "unable to open a page")
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             o.Width,
		Height:            o.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, errors.Wrap(err, "unable to set the viewport")
	}
	if err := page.SetDocumentContent(html.String()); err != nil {
		return nil, errors.Wrap(err, "unable to load the chart page")
	}
	if err := page.WaitLoad(); err != nil {
		return nil, errors.Wrap(err, "chart page did not load")
	}
	if err := page.WaitStable(b.Settle); err != nil {
		return nil, errors.Wrap(err, "chart page did not settle")
	}
	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to take the screenshot")
	}
	return data, nil
}

// Close shuts the browser down, when it was launched.
func (b *BrowserRasterizer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}
