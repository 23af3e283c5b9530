package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
	"github.com/xuri/excelize/v2"
)

// FileSource reads a local .xlsx or .csv file, optionally .xz compressed.
type FileSource struct {
	Path string

	// Sheet is the worksheet to read from spreadsheets, the first one when empty.
	Sheet string
}

func (f *FileSource) Name() string {
	return f.Path
}

func (f *FileSource) Fetch(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fd, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", f.Path)
	}
	defer fd.Close()

	name := f.Path
	var r io.Reader = fd
	if strings.EqualFold(filepath.Ext(name), ".xz") {
		xr, err := xz.NewReader(bufio.NewReader(fd))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decompress %s", f.Path)
		}
		r = xr
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r, f.Sheet)
	case ".csv", ".txt":
		return ReadCSV(r)
	default:
		return nil, errors.Errorf("unsupported file type %q: %s", ext, f.Path)
	}
}

// ReadXLSX reads all rows of a worksheet, the first one when sheet is empty.
func ReadXLSX(r io.Reader, sheet string) ([][]string, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read spreadsheet")
	}
	defer book.Close()

	if sheet == "" {
		sheets := book.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("spreadsheet has no worksheets")
		}
		sheet = sheets[0]
	}
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read worksheet %q", sheet)
	}
	log.Debugf("Source/XLSX/Read %d rows from sheet %q", len(rows), sheet)
	return rows, nil
}

// ReadCSV reads comma or semicolon separated values. The delimiter is
// guessed from the first line.
func ReadCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read CSV")
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = guessDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse CSV")
	}
	return rows, nil
}

func guessDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

// SaveXLSX writes the rows to a new spreadsheet.
func SaveXLSX(path, sheet string, rows [][]string) error {
	book := excelize.NewFile()
	defer book.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrapf(err, "unable to name worksheet %q", sheet)
	}
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for col, v := range row {
			values[col] = v
		}
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "unable to write row %d", idx+1)
		}
	}
	if err := book.SaveAs(path); err != nil {
		return errors.Wrapf(err, "unable to save %s", path)
	}
	return nil
}
