package invoice

import (
	"bytes"
	_ "embed"
	"fmt"
	"unicode"

	"github.com/go-pdf/fpdf"
)

// DejaVu Sans covers Latin and Arabic, so tenant names render in either script.
//
//go:embed fonts/DejaVuSans.ttf
var dejaVuSans []byte

const fontFamily = "DejaVu"

// row is one labelled line on the invoice.
type row struct {
	Label string
	Value string
}

// renderPDF lays out the invoice on a single A4 page. Values containing
// right-to-left script are set RTL and aligned right.
// TODO: shape Arabic into presentation forms (U+FE70 block) before drawing;
// letters currently render in their isolated form.
func renderPDF(title string, rows []row) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreator("AcademyPay", true)
	pdf.SetTitle(title, true)
	pdf.AddUTF8FontFromBytes(fontFamily, "", dejaVuSans)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "", 18)
	writeValue(pdf, title, 12)
	pdf.Ln(4)

	pdf.SetFont(fontFamily, "", 11)
	for _, r := range rows {
		pdf.CellFormat(40, 7, r.Label, "", 0, "L", false, 0, "")
		writeValue(pdf, r.Value, 7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(pdf *fpdf.Fpdf, text string, height float64) {
	if !hasRTL(text) {
		pdf.CellFormat(0, height, text, "", 1, "L", false, 0, "")
		return
	}
	pdf.RTL()
	pdf.CellFormat(0, height, text, "", 1, "R", false, 0, "")
	pdf.LTR()
}

func hasRTL(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Arabic, unicode.Hebrew) {
			return true
		}
	}
	return false
}
