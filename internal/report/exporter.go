package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/models"
)

// RequestRow bundles one request with its destinations for export.
type RequestRow struct {
	Request      *models.LetterRequest
	Destinations []*models.SubmissionDestination
}

// Exporter writes a fulfillment status workbook.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a report exporter.
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

var requestHeaders = []string{
	"Access Code", "Student", "Student Email", "Status", "Deadline",
	"Destinations", "Delivered", "Created",
}

var destinationHeaders = []string{
	"Access Code", "Student", "Method", "Status", "Institution",
	"Program", "Recipient", "Sent At", "Confirmed At", "Failure Reason",
}

// Export writes the workbook to outputPath: a Requests sheet with one row
// per request and a Destinations sheet with one row per destination.
func (e *Exporter) Export(rows []RequestRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	const requestSheet = "Requests"
	const destinationSheet = "Destinations"

	f.SetSheetName(f.GetSheetName(0), requestSheet)
	if _, err := f.NewSheet(destinationSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	for col, h := range requestHeaders {
		e.setCell(f, requestSheet, cellRef(col, 1), h)
	}
	for col, h := range destinationHeaders {
		e.setCell(f, destinationSheet, cellRef(col, 1), h)
	}

	destRow := 2
	for i, row := range rows {
		req := row.Request
		delivered := 0
		for _, d := range row.Destinations {
			if d.Delivered() {
				delivered++
			}
		}

		deadline := ""
		if req.Deadline != nil {
			deadline = req.Deadline.Format("2006-01-02")
		}

		r := i + 2
		e.setCell(f, requestSheet, cellRef(0, r), req.AccessCode)
		e.setCell(f, requestSheet, cellRef(1, r), req.StudentName)
		e.setCell(f, requestSheet, cellRef(2, r), req.StudentEmail)
		e.setCell(f, requestSheet, cellRef(3, r), req.Status)
		e.setCell(f, requestSheet, cellRef(4, r), deadline)
		e.setCell(f, requestSheet, cellRef(5, r), fmt.Sprintf("%d", len(row.Destinations)))
		e.setCell(f, requestSheet, cellRef(6, r), fmt.Sprintf("%d", delivered))
		e.setCell(f, requestSheet, cellRef(7, r), req.CreatedAt.Format("2006-01-02"))

		for _, d := range row.Destinations {
			sentAt := ""
			if d.SentAt != nil {
				sentAt = d.SentAt.Format("2006-01-02 15:04")
			}
			confirmedAt := ""
			if d.ConfirmedAt != nil {
				confirmedAt = d.ConfirmedAt.Format("2006-01-02 15:04")
			}

			e.setCell(f, destinationSheet, cellRef(0, destRow), req.AccessCode)
			e.setCell(f, destinationSheet, cellRef(1, destRow), req.StudentName)
			e.setCell(f, destinationSheet, cellRef(2, destRow), d.Method)
			e.setCell(f, destinationSheet, cellRef(3, destRow), d.Status)
			e.setCell(f, destinationSheet, cellRef(4, destRow), d.InstitutionName)
			e.setCell(f, destinationSheet, cellRef(5, destRow), d.ProgramName)
			e.setCell(f, destinationSheet, cellRef(6, destRow), d.RecipientEmail)
			e.setCell(f, destinationSheet, cellRef(7, destRow), sentAt)
			e.setCell(f, destinationSheet, cellRef(8, destRow), confirmedAt)
			e.setCell(f, destinationSheet, cellRef(9, destRow), d.FailureReason)
			destRow++
		}
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}

	e.logger.Info("Status report exported",
		zap.String("output_path", outputPath),
		zap.Int("requests", len(rows)))
	return nil
}

// cellRef converts zero-based column and one-based row to an A1 reference.
func cellRef(col, row int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return fmt.Sprintf("A%d", row)
	}
	return fmt.Sprintf("%s%d", name, row)
}

func (e *Exporter) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
