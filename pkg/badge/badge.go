// Package badge lays out printable camper badges.
package badge

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const qrImage = "qr"

// PDF renders an A4 page with "Camper: <name>" above the QR image. Names are
// transcoded to the core font's code page; unmappable runes are dropped.
func PDF(name string, qrPNG []byte) ([]byte, error) {
	if len(qrPNG) == 0 {
		return nil, errors.New("qr image must not be empty")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Camper badge", true)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.Text(10, 10, tr("Camper: "+name))

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(qrImage, opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions(qrImage, 10, 20, 80, 80, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}
	return buf.Bytes(), nil
}
