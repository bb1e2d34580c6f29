package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/case-inquiry/internal/core/domain"
)

const sheetName = "Results"

var xlsxHeader = []string{"#", "Kind", "Question ID", "Question", "Answer", "Sources", "Confidence", "Mode"}

// WriteXLSX renders results as a single-sheet workbook with one row per result.
func WriteXLSX(w io.Writer, results []domain.InquiryResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return fmt.Errorf("create body style: %w", err)
	}

	for col, title := range xlsxHeader {
		if err := setCell(f, col+1, 1, title); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", "H1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range results {
		row := i + 2
		values := []any{i + 1, string(r.Kind), r.QuestionID, r.Question, r.Answer, r.CitationText, r.Confidence, string(r.Mode)}
		for col, v := range values {
			if err := setCell(f, col+1, row, v); err != nil {
				return err
			}
		}
	}
	if len(results) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(xlsxHeader), len(results)+1)
		if err := f.SetCellStyle(sheetName, "A2", last, wrap); err != nil {
			return fmt.Errorf("style rows: %w", err)
		}
	}

	widths := map[string]float64{"D": 40, "E": 80, "F": 40}
	for col, width := range widths {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}
