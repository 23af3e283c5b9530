package source

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DefaultSheetsRange covers the tracking sheet columns of the first worksheet.
const DefaultSheetsRange = "A1:Z"

// SheetsSource reads a range of a Google spreadsheet with the Sheets API.
type SheetsSource struct {
	SpreadsheetID string
	Range         string

	svc *sheets.Service
}

// NewSheetsSource creates the Sheets API client. Use option.WithCredentialsFile
// to authenticate with a service account.
func NewSheetsSource(ctx context.Context, spreadsheetID, rng string, opts ...option.ClientOption) (*SheetsSource, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	scoped := append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	svc, err := sheets.NewService(ctx, scoped...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the Google Sheets client")
	}
	if rng == "" {
		rng = DefaultSheetsRange
	}
	return &SheetsSource{SpreadsheetID: spreadsheetID, Range: rng, svc: svc}, nil
}

func (s *SheetsSource) Name() string {
	return fmt.Sprintf("sheets:%s/%s", s.SpreadsheetID, s.Range)
}

// Fetch reads the formatted values, as seen in the spreadsheet UI.
func (s *SheetsSource) Fetch(ctx context.Context) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.SpreadsheetID, s.Range).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read spreadsheet %s", s.SpreadsheetID)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, values := range resp.Values {
		row := make([]string, len(values))
		for idx, v := range values {
			if v != nil {
				row[idx] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	log.Debugf("Source/Sheets/Read %d rows from %s", len(rows), s.Name())
	return rows, nil
}
