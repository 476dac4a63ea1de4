package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const flaggedDaysSheet = "FlaggedDays"

type ExcelWriter struct{}

func (w *ExcelWriter) Write(path string, report UnmatchedReport) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)
	if err := file.SetSheetName(sheet, "Unmatched"); err != nil {
		return fmt.Errorf("rename excel sheet: %w", err)
	}
	sheet = "Unmatched"

	if err := writeExcelRow(file, sheet, 1, reportHeaders); err != nil {
		return err
	}
	for i, record := range report.Records() {
		if err := writeExcelRow(file, sheet, i+2, reportRow(record)); err != nil {
			return err
		}
	}

	if _, err := file.NewSheet(flaggedDaysSheet); err != nil {
		return fmt.Errorf("create excel sheet %s: %w", flaggedDaysSheet, err)
	}
	if err := writeExcelRow(file, flaggedDaysSheet, 1, []string{"Day"}); err != nil {
		return err
	}
	for i, day := range report.FlaggedDays {
		if err := writeExcelRow(file, flaggedDaysSheet, i+2, []string{day.String()}); err != nil {
			return err
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save excel output %s: %w", path, err)
	}

	return nil
}

func writeExcelRow(file *excelize.File, sheet string, row int, values []string) error {
	for col, value := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		if err := file.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set excel value %s: %w", cell, err)
		}
	}
	return nil
}
