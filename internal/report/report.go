// Package report renders the indicator outputs as a one-page-per-indicator
// PDF: a size breakdown followed by the top metros by z-score.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"

	"econstats-engine/internal/indicators"
)

const FileName = "Indicators.pdf"

type Section struct {
	Indicator indicators.Indicator
	Rows      []indicators.Scored
}

// Top returns up to n rows ordered by z-score, highest first. Ties keep
// CBSA order.
func Top(rows []indicators.Scored, n int) []indicators.Scored {
	out := append([]indicators.Scored(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Z != out[j].Z {
			return out[i].Z > out[j].Z
		}
		return out[i].CBSA < out[j].CBSA
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CountBySize tallies rows per metro size class.
func CountBySize(rows []indicators.Scored) map[indicators.Size]int {
	m := map[indicators.Size]int{}
	for _, r := range rows {
		m[r.Size]++
	}
	return m
}

// Generate writes the PDF to w.
func Generate(w io.Writer, sections []Section, top int, at time.Time) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("{nb}")

	for _, s := range sections {
		pdf.AddPage()
		drawSection(pdf, s, top, at)
	}
	if len(sections) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 8, "No indicators were computed.", "", 1, "L", false, 0, "")
	}
	return pdf.Output(w)
}

func drawSection(pdf *fpdf.Fpdf, s Section, top int, at time.Time) {
	pageW, _ := pdf.GetPageSize()
	marginL, marginT, marginR, _ := pdf.GetMargins()
	contentW := pageW - marginL - marginR

	// header bar
	pdf.SetFillColor(30, 30, 30)
	pdf.Rect(marginL, marginT, contentW, 10, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetXY(marginL+2, marginT+1.5)
	pdf.CellFormat(contentW-40, 7, s.Indicator.Name, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 7, "Page "+fmt.Sprint(pdf.PageNo())+" of {nb}", "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetXY(marginL, marginT+13)
	pdf.SetFont("Helvetica", "I", 8.5)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%d metropolitan areas. Generated %s.", len(s.Rows), at.Format("2006-01-02 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// size breakdown
	counts := CountBySize(s.Rows)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 8.5)
	pdf.CellFormat(contentW, 6, "METROS BY SIZE", "1", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, size := range []indicators.Size{indicators.Small, indicators.Medium, indicators.Large} {
		pdf.CellFormat(contentW/2, 6, string(size), "LB", 0, "L", false, 0, "")
		pdf.CellFormat(contentW/2, 6, fmt.Sprint(counts[size]), "RB", 1, "R", false, 0, "")
	}
	pdf.Ln(5)

	// top table
	rows := Top(s.Rows, top)
	rankW, codeW, sizeW := contentW*0.1, contentW*0.25, contentW*0.2
	valW := (contentW - rankW - codeW - sizeW) / 2
	zW := contentW - rankW - codeW - sizeW - valW

	pdf.SetFillColor(30, 30, 30)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 8.5)
	pdf.CellFormat(rankW, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(codeW, 7, "CBSA", "1", 0, "L", true, 0, "")
	pdf.CellFormat(sizeW, 7, "Size", "1", 0, "L", true, 0, "")
	pdf.CellFormat(valW, 7, s.Indicator.Column, "1", 0, "R", true, 0, "")
	pdf.CellFormat(zW, 7, "z-score", "1", 1, "R", true, 0, "")
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 9)
	for i, r := range rows {
		fill := i%2 == 1
		pdf.SetFillColor(248, 248, 248)
		pdf.CellFormat(rankW, 6, fmt.Sprint(i+1), "1", 0, "C", fill, 0, "")
		pdf.CellFormat(codeW, 6, r.CBSA, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(sizeW, 6, string(r.Size), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(valW, 6, fmt.Sprintf("%.2f", r.V), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(zW, 6, fmt.Sprintf("%+.2f", r.Z), "1", 1, "R", fill, 0, "")
	}
}

// WriteFile renders the report into dir/Indicators.pdf.
func WriteFile(dir string, sections []Section, top int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := Generate(f, sections, top, time.Now()); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("render report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, os.Rename(tmp, path)
}
