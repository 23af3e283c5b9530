package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"google.golang.org/api/option"
)

const sampleCSV = "Data,Status,Motivo\n01/03/2025,APROVADA,\n02/03/2025,REJEITADA,UI bug\n"

var sampleRows = [][]string{
	{"Data", "Status", "Motivo"},
	{"01/03/2025", "APROVADA", ""},
	{"02/03/2025", "REJEITADA", "UI bug"},
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func xzCompress(t *testing.T, data string) []byte {
	t.Helper()
	var buf strings.Builder
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return []byte(buf.String())
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{name: "comma", input: sampleCSV, want: sampleRows},
		{name: "semicolon", input: "Data;Status\n01/03/2025;APROVADA\n", want: [][]string{{"Data", "Status"}, {"01/03/2025", "APROVADA"}}},
		{name: "bom and ragged rows", input: "\xef\xbb\xbfData,Status\n01/03/2025\n", want: [][]string{{"Data", "Status"}, {"01/03/2025"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestFileSource(t *testing.T) {
	xlsxPath := filepath.Join(t.TempDir(), "tracking.xlsx")
	require.NoError(t, SaveXLSX(xlsxPath, "Testes", sampleRows))

	tests := []struct {
		name string
		src  *FileSource
	}{
		{name: "csv", src: &FileSource{Path: writeFile(t, "tracking.csv", []byte(sampleCSV))}},
		{name: "compressed csv", src: &FileSource{Path: writeFile(t, "tracking.csv.xz", xzCompress(t, sampleCSV))}},
		{name: "xlsx first sheet", src: &FileSource{Path: xlsxPath}},
		{name: "xlsx named sheet", src: &FileSource{Path: xlsxPath, Sheet: "Testes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := tt.src.Fetch(context.Background())
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, sampleRows[0], rows[0])
			assert.Equal(t, "UI bug", rows[2][2])
		})
	}
}

func TestFileSourceErrors(t *testing.T) {
	_, err := (&FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}).Fetch(context.Background())
	assert.Error(t, err)

	_, err = (&FileSource{Path: writeFile(t, "tracking.json", []byte("{}"))}).Fetch(context.Background())
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestURLSource(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	src := NewURLSource(srv.URL + "/export?format=csv")
	src.Client.RetryWaitMin = time.Millisecond
	src.Client.RetryWaitMax = 5 * time.Millisecond
	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestURLSourceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewURLSource(srv.URL)
	_, err := src.Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestSheetsSource(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"range": "Testes!A1:Z3",
			"majorDimension": "ROWS",
			"values": [["Data", "Status", "Erros"], ["01/03/2025", "APROVADA", 2]]
		}`))
	}))
	defer srv.Close()

	src, err := NewSheetsSource(context.Background(), "sheet-id", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	assert.Equal(t, DefaultSheetsRange, src.Range)

	rows, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Data", "Status", "Erros"}, {"01/03/2025", "APROVADA", "2"}}, rows)
	assert.Contains(t, path, "/spreadsheets/sheet-id/values/")
}

func TestNewSheetsSourceRequiresID(t *testing.T) {
	_, err := NewSheetsSource(context.Background(), "", "")
	assert.Error(t, err)
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	err   error
	delay time.Duration
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(ctx context.Context) ([][]string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return sampleRows, nil
}

func (c *countingSource) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestCached(t *testing.T) {
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	src := &countingSource{}
	cached := NewCached(src, time.Minute)
	cached.now = func() time.Time { return clock }
	ctx := context.Background()

	_, err := cached.Fetch(ctx)
	require.NoError(t, err)
	_, err = cached.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.count(), "second fetch inside the TTL is served from memory")

	clock = clock.Add(time.Minute)
	_, err = cached.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.count(), "expired entry reads the source")

	cached.Invalidate()
	_, err = cached.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, src.count(), "invalidated entry reads the source")
}

func TestCachedCollapsesConcurrentFetches(t *testing.T) {
	src := &countingSource{delay: 50 * time.Millisecond}
	cached := NewCached(src, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := cached.Fetch(context.Background())
			assert.NoError(t, err)
			assert.Len(t, rows, 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, src.count())
}

func TestCachedDoesNotStoreErrors(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	cached := NewCached(src, time.Minute)
	_, err := cached.Fetch(context.Background())
	assert.Error(t, err)
	_, err = cached.Fetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, src.count())
}

func TestFallback(t *testing.T) {
	primary := &countingSource{err: errors.New("offline")}
	secondary := &FileSource{Path: writeFile(t, "tracking.csv", []byte(sampleCSV))}

	rows, err := (&Fallback{Primary: primary, Secondary: secondary}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)

	_, err = (&Fallback{Primary: primary}).Fetch(context.Background())
	assert.ErrorContains(t, err, "offline")
}

func TestNew(t *testing.T) {
	input := writeFile(t, "tracking.csv", []byte(sampleCSV))
	tests := []struct {
		name    string
		opts    Options
		check   func(t *testing.T, src Source)
		wantErr bool
	}{
		{
			name: "local file",
			opts: Options{Input: input},
			check: func(t *testing.T, src Source) {
				assert.IsType(t, &FileSource{}, src)
			},
		},
		{
			name: "url is cached",
			opts: Options{URL: "http://localhost/export.csv"},
			check: func(t *testing.T, src Source) {
				require.IsType(t, &Cached{}, src)
				assert.Equal(t, DefaultCacheTTL, src.(*Cached).TTL)
			},
		},
		{
			name: "url with local fallback",
			opts: Options{URL: "http://localhost/export.csv", Input: input, CacheTTL: time.Second},
			check: func(t *testing.T, src Source) {
				require.IsType(t, &Fallback{}, src)
				assert.IsType(t, &FileSource{}, src.(*Fallback).Secondary)
			},
		},
		{name: "nothing", opts: Options{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := New(context.Background(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, src)
		})
	}
}
