package source

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

// URLSource downloads a CSV export, like the "publish to the web" CSV link
// of a Google spreadsheet.
type URLSource struct {
	URL    string
	Client *retryablehttp.Client
}

// NewURLSource creates the source with a retrying client logging at warn
// level.
func NewURLSource(url string) *URLSource {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	retryLogger := log.New()
	retryLogger.SetLevel(log.WarnLevel)
	client.Logger = retryLogger
	return &URLSource{URL: url, Client: client}
}

func (u *URLSource) Name() string {
	return u.URL
}

func (u *URLSource) Fetch(ctx context.Context) ([][]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := u.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error requesting %s", u.URL)
	}
	defer resp.Body.Close()

	log.Debug("Source/URL/Response code: ", resp.Status)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("error requesting %s: %s", u.URL, resp.Status)
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(strings.ToLower(req.URL.Path), ".xz") {
		xr, err := xz.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decompress %s", u.URL)
		}
		body = xr
	}
	return ReadCSV(body)
}
