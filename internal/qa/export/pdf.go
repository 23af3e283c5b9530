package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// KeyValue is one line of the executive summary.
type KeyValue struct {
	Key   string
	Value string
}

// Table is a simple grid of text. Widths are in millimeters, the last
// column takes the remaining space when Widths is short.
type Table struct {
	Headers []string
	Rows    [][]string
	Widths  []float64
}

// ChartImage is a chart section of the PDF. Image is nil when the chart
// could not be rasterized.
type ChartImage struct {
	ID      string
	Title   string
	Caption string
	Image   *Image
}

// PDFReport is the content of the PDF, already formatted as text.
type PDFReport struct {
	Title       string
	Subtitle    string
	GeneratedAt time.Time

	Summary             []KeyValue
	Insights            []string
	Warnings            []string
	Teams               *Table
	Charts              []ChartImage
	Delivered           *Table
	ReadyForPublication *Table
}

const (
	pdfMargin     = 15.0
	pdfLineHeight = 6.0
	pdfFont       = "Helvetica"
)

// SavePDF writes the PDF report to a file.
func SavePDF(path string, r *PDFReport) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create PDF file %s", path)
	}
	defer f.Close()
	return WritePDF(f, r)
}

// WritePDF renders the A4 report: title page, executive summary, insights,
// team breakdown, charts, delivered and ready for publication listings.
func WritePDF(w io.Writer, r *PDFReport) error {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now()
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetTitle(r.Title, true)

	doc := &pdfDoc{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	stamp := r.GeneratedAt.Format("2006-01-02 15:04")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Generated %s - page %d/{nb}", stamp, pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	doc.titlePage(r)

	pdf.AddPage()
	doc.heading("Executive summary")
	doc.keyValues(r.Summary)
	if len(r.Warnings) > 0 {
		doc.subheading("Warnings")
		doc.bullets(r.Warnings)
	}

	doc.heading("Insights")
	if len(r.Insights) == 0 {
		doc.text("No insights for the selected data.")
	}
	doc.bullets(r.Insights)

	doc.heading("Team breakdown")
	doc.table(r.Teams, "No team data available.")

	if len(r.Charts) > 0 {
		pdf.AddPage()
		doc.heading("Charts")
		for _, c := range r.Charts {
			doc.chart(c)
		}
	}

	pdf.AddPage()
	doc.heading("Delivered tasks")
	doc.table(r.Delivered, "No delivered tasks.")
	doc.heading("Ready for publication")
	doc.table(r.ReadyForPublication, "No tasks ready for publication.")

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "unable to write the PDF")
	}
	return nil
}

type pdfDoc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *pdfDoc) contentWidth() float64 {
	width, _ := d.pdf.GetPageSize()
	return width - 2*pdfMargin
}

func (d *pdfDoc) titlePage(r *PDFReport) {
	d.pdf.AddPage()
	d.pdf.SetY(90)
	d.pdf.SetFont(pdfFont, "B", 24)
	d.pdf.MultiCell(0, 12, d.tr(r.Title), "", "C", false)
	if r.Subtitle != "" {
		d.pdf.Ln(4)
		d.pdf.SetFont(pdfFont, "", 14)
		d.pdf.MultiCell(0, 8, d.tr(r.Subtitle), "", "C", false)
	}
	d.pdf.Ln(8)
	d.pdf.SetFont(pdfFont, "", 11)
	d.pdf.CellFormat(0, 8, r.GeneratedAt.Format("January 2, 2006"), "", 1, "C", false, 0, "")
}

func (d *pdfDoc) heading(title string) {
	d.pdf.Ln(4)
	d.pdf.SetFont(pdfFont, "B", 16)
	d.pdf.CellFormat(0, 10, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.Ln(2)
}

func (d *pdfDoc) subheading(title string) {
	d.pdf.Ln(2)
	d.pdf.SetFont(pdfFont, "B", 12)
	d.pdf.CellFormat(0, 8, d.tr(title), "", 1, "L", false, 0, "")
}

func (d *pdfDoc) text(s string) {
	d.pdf.SetFont(pdfFont, "", 10)
	d.pdf.MultiCell(0, pdfLineHeight, d.tr(s), "", "L", false)
}

func (d *pdfDoc) bullets(items []string) {
	d.pdf.SetFont(pdfFont, "", 10)
	for _, item := range items {
		d.pdf.CellFormat(5, pdfLineHeight, "-", "", 0, "L", false, 0, "")
		d.pdf.MultiCell(0, pdfLineHeight, d.tr(item), "", "L", false)
	}
}

func (d *pdfDoc) keyValues(items []KeyValue) {
	for _, kv := range items {
		d.pdf.SetFont(pdfFont, "B", 10)
		d.pdf.CellFormat(70, pdfLineHeight, d.tr(kv.Key), "", 0, "L", false, 0, "")
		d.pdf.SetFont(pdfFont, "", 10)
		d.pdf.CellFormat(0, pdfLineHeight, d.tr(kv.Value), "", 1, "L", false, 0, "")
	}
}

func (d *pdfDoc) table(t *Table, empty string) {
	if t == nil || len(t.Rows) == 0 {
		d.text(empty)
		return
	}
	widths := d.columnWidths(t)

	header := func() {
		d.pdf.SetFont(pdfFont, "B", 9)
		d.pdf.SetFillColor(230, 230, 230)
		for idx, h := range t.Headers {
			d.pdf.CellFormat(widths[idx], 7, d.tr(h), "1", 0, "L", true, 0, "")
		}
		d.pdf.Ln(-1)
	}
	header()
	d.pdf.SetFont(pdfFont, "", 9)
	_, pageHeight := d.pdf.GetPageSize()
	for _, row := range t.Rows {
		if d.pdf.GetY()+7 > pageHeight-25 {
			d.pdf.AddPage()
			header()
			d.pdf.SetFont(pdfFont, "", 9)
		}
		for idx := range t.Headers {
			cell := ""
			if idx < len(row) {
				cell = d.fit(row[idx], widths[idx]-2)
			}
			d.pdf.CellFormat(widths[idx], 7, cell, "1", 0, "L", false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

func (d *pdfDoc) columnWidths(t *Table) []float64 {
	total := d.contentWidth()
	widths := make([]float64, len(t.Headers))
	used := 0.0
	for idx := range widths {
		if idx < len(t.Widths) {
			widths[idx] = t.Widths[idx]
			used += t.Widths[idx]
		}
	}
	free := 0
	for _, w := range widths {
		if w == 0 {
			free++
		}
	}
	if free > 0 {
		share := (total - used) / float64(free)
		for idx, w := range widths {
			if w == 0 {
				widths[idx] = share
			}
		}
	}
	return widths
}

// fit truncates the UTF-8 text to the cell width and returns it translated
// to the font encoding. Runes are dropped before translation.
func (d *pdfDoc) fit(s string, width float64) string {
	if out := d.tr(s); d.pdf.GetStringWidth(out) <= width {
		return out
	}
	runes := []rune(s)
	for len(runes) > 0 && d.pdf.GetStringWidth(d.tr(string(runes)+"...")) > width {
		runes = runes[:len(runes)-1]
	}
	return d.tr(string(runes) + "...")
}

func (d *pdfDoc) chart(c ChartImage) {
	_, pageHeight := d.pdf.GetPageSize()
	if c.Image == nil {
		if d.pdf.GetY()+20 > pageHeight-25 {
			d.pdf.AddPage()
		}
		d.subheading(c.Title)
		if c.Caption != "" {
			d.text(c.Caption)
		}
		d.text("Chart image not available.")
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(c.Image.Data))
	if err != nil {
		log.Warnf("Export/PDF/Chart %s: invalid image, skipping: %v", c.ID, err)
		d.subheading(c.Title)
		d.text("Chart image not available.")
		return
	}
	width := d.contentWidth()
	if px := float64(cfg.Width) * 25.4 / 96; px < width {
		width = px
	}
	height := width * float64(cfg.Height) / float64(cfg.Width)
	if d.pdf.GetY()+height+20 > pageHeight-25 {
		d.pdf.AddPage()
	}

	d.subheading(c.Title)
	name := "chart-" + c.ID
	d.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(c.Image.Data))
	x := pdfMargin + (d.contentWidth()-width)/2
	d.pdf.ImageOptions(name, x, d.pdf.GetY(), width, height, true, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	if c.Caption != "" {
		d.pdf.SetFont(pdfFont, "I", 9)
		d.pdf.MultiCell(0, 5, d.tr(c.Caption), "", "C", false)
	}
	d.pdf.Ln(4)
}
