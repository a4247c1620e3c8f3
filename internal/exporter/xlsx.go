package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"leadpulse/internal/pipeline"
)

const sheetName = "Leads"

// WriteXLSX renders the leads as an Excel workbook with a styled header
// row and an auto-filter, ordered the same way as the CSV export.
func WriteXLSX(w io.Writer, leads []pipeline.Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("remove default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, name := range Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.AutoFilter(sheetName, "A1:"+lastHeader, nil); err != nil {
		return fmt.Errorf("set auto-filter: %w", err)
	}

	for rowIdx, l := range sortForExport(leads) {
		values := []any{
			l.FirstName, l.LastName, l.Company, l.JobTitle, l.Location,
			l.Email, l.Phone, l.ProfileURL, l.Website,
			l.HitScore, l.IsHit,
			l.ActivitySummary, l.ConversionAngle,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
