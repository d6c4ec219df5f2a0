package documents

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ComplianceReport renders every tracked document of one employee as a PDF table.
func (s *Service) ComplianceReport(ctx context.Context, userID string) ([]byte, error) {
	if err := requireUUID("user id", userID); err != nil {
		return nil, err
	}
	rows, err := s.Store.ReportRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	return renderComplianceReport(userID, s.today(), rows)
}

func renderComplianceReport(userID string, generated time.Time, rows []ReportRow) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "HR document compliance")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", userID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Generated: %s", generated.Format(dateLayout)))
	pdf.Ln(10)

	widths := []float64{20, 30, 55, 30, 25, 15}
	headers := []string{"Folder", "Code", "Document", "Status", "Valid until", "Ver."}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(rows) == 0 {
		pdf.CellFormat(sum(widths), 7, "No documents tracked", "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, r := range rows {
		validUntil := "-"
		if r.ValidUntil != nil {
			validUntil = r.ValidUntil.Format(dateLayout)
		}
		version := "-"
		if r.CurrentVersion != nil {
			version = fmt.Sprintf("%d", *r.CurrentVersion)
		}
		cells := []string{r.FolderCode, r.TypeCode, tr(r.TypeName), r.Status, validUntil, version}
		for i, c := range cells {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render compliance report: %w", err)
	}
	return buf.Bytes(), nil
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
