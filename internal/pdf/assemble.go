// Package pdf assembles a report bundle into a single portable document.
//
// Assemble is a pure transform of its inputs; it holds no state and can be
// called from any goroutine.
package pdf

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	// Maximum image box per page, in mm (A4 with 20mm margins leaves
	// 170x257; keep headroom for the footer).
	maxImageWidth  = 160.0
	maxImageHeight = 220.0
)

// Assemble writes a PDF with a title header, the body text, and one image
// per page, scaled to fit. Images that are missing or undecodable are
// replaced with a short note instead of failing the whole document.
func Assemble(path, title, text string, imagePaths []string) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFooterFunc(func() {
		doc.SetY(-15)
		doc.SetFont("Helvetica", "", 9)
		doc.CellFormat(0, 10, fmt.Sprintf("Page %d", doc.PageNo()), "", 0, "R", false, 0, "")
	})

	doc.AddPage()
	if title == "" {
		title = "Report"
	}
	doc.SetFont("Helvetica", "B", 18)
	doc.MultiCell(0, 9, tr(title), "", "C", false)
	doc.Ln(4)
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 5, "Generated: "+time.Now().UTC().Format(time.RFC3339)+" UTC", "", 1, "L", false, 0, "")
	doc.Ln(6)

	if text != "" {
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 5, tr(text), "", "L", false)
	}

	for _, img := range imagePaths {
		doc.AddPage()
		w, h, err := imageSize(img)
		if err != nil {
			doc.SetFont("Helvetica", "I", 10)
			doc.MultiCell(0, 5, tr(fmt.Sprintf("Missing image: %s", filepath.Base(img))), "", "L", false)
			continue
		}

		ratio := maxImageWidth / w
		if r := maxImageHeight / h; r < ratio {
			ratio = r
		}
		drawW := w * ratio
		drawH := h * ratio

		pageW, pageH := doc.GetPageSize()
		x := (pageW - drawW) / 2
		y := (pageH - drawH) / 2
		doc.ImageOptions(img, x, y, drawW, drawH, false, fpdf.ImageOptions{}, 0, "")
	}

	if err := doc.OutputFileAndClose(path); err != nil {
		// Never leave a half-written document behind.
		_ = os.Remove(path)
		return fmt.Errorf("assemble pdf: %w", err)
	}
	return nil
}

// imageSize returns the pixel dimensions of a decodable image. Validating
// here keeps one bad image from poisoning the fpdf error state for the rest
// of the document.
func imageSize(path string) (w, h float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("image %s: empty dimensions", filepath.Base(path))
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}
