// Package source loads the raw rows of the QA tracking sheet from local
// files, Google Sheets or a published CSV export.
package source

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Source fetches the raw table, one slice of cells per row. Callers must not
// modify the returned rows, they can be shared by a cache.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([][]string, error)
}

// Fallback reads from Primary, and from Secondary when the primary fails.
type Fallback struct {
	Primary   Source
	Secondary Source
}

func (f *Fallback) Name() string {
	return f.Primary.Name()
}

func (f *Fallback) Fetch(ctx context.Context) ([][]string, error) {
	rows, err := f.Primary.Fetch(ctx)
	if err == nil {
		return rows, nil
	}
	if f.Secondary == nil {
		return nil, err
	}
	log.WithError(err).Warnf("Unable to read from %s, using %s", f.Primary.Name(), f.Secondary.Name())
	return f.Secondary.Fetch(ctx)
}

// Invalidate drops the cached rows of both sources.
func (f *Fallback) Invalidate() {
	Invalidate(f.Primary)
	Invalidate(f.Secondary)
}

// Invalidate drops the rows kept in memory by src. It reports whether src
// keeps any.
func Invalidate(src Source) bool {
	c, ok := src.(interface{ Invalidate() })
	if ok {
		c.Invalidate()
	}
	return ok
}

// Options selects the sources of the tracking sheet.
type Options struct {
	// Input is a local file. Used alone, or as fallback of a remote source.
	Input string
	Sheet string

	SheetsID          string
	SheetsRange       string
	SheetsCredentials string

	URL string

	CacheTTL time.Duration
}

// New builds the source described by the options. Remote sources are
// cached, and fall back to the local file when one is given.
func New(ctx context.Context, o Options) (Source, error) {
	var remote Source
	switch {
	case o.SheetsID != "":
		opts := []option.ClientOption{}
		if o.SheetsCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(o.SheetsCredentials))
		}
		sheetsSrc, err := NewSheetsSource(ctx, o.SheetsID, o.SheetsRange, opts...)
		if err != nil {
			if o.Input == "" {
				return nil, err
			}
			log.WithError(err).Warnf("Google Sheets source unavailable, using %s", o.Input)
		} else {
			remote = sheetsSrc
		}
	case o.URL != "":
		remote = NewURLSource(o.URL)
	}

	var local Source
	if o.Input != "" {
		local = &FileSource{Path: o.Input, Sheet: o.Sheet}
	}

	switch {
	case remote != nil && local != nil:
		return &Fallback{Primary: NewCached(remote, o.CacheTTL), Secondary: local}, nil
	case remote != nil:
		return NewCached(remote, o.CacheTTL), nil
	case local != nil:
		return local, nil
	}
	return nil, errors.New("no input source: set a file, a spreadsheet ID or a CSV URL")
}
