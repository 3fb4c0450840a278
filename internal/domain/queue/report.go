package queue

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetStatus = "Status"
	sheetWait   = "Wait Times"
	sheetDaily  = "Daily Trends"
)

// WriteStatisticsWorkbook renders stats as an xlsx workbook with one sheet
// per series.
func WriteStatisticsWorkbook(w io.Writer, stats *Statistics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetStatus); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetWait, sheetDaily} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	statusRows := make([][]interface{}, 0, len(stats.StatusDistribution))
	for _, sc := range stats.StatusDistribution {
		statusRows = append(statusRows, []interface{}{string(sc.Status), sc.Count})
	}
	waitRows := make([][]interface{}, 0, len(stats.AverageWaitTimes))
	for _, pw := range stats.AverageWaitTimes {
		waitRows = append(waitRows, []interface{}{int(pw.Priority), pw.Priority.String(), pw.AvgWaitMinutes})
	}
	dailyRows := make([][]interface{}, 0, len(stats.DailyTrends))
	for _, dc := range stats.DailyTrends {
		dailyRows = append(dailyRows, []interface{}{dc.Date, dc.QueueCount})
	}

	sheets := []struct {
		name    string
		headers []interface{}
		rows    [][]interface{}
	}{
		{sheetStatus, []interface{}{"Status", "Count"}, statusRows},
		{sheetWait, []interface{}{"Priority", "Label", "Avg Wait (min)"}, waitRows},
		{sheetDaily, []interface{}{"Date", "Queue Count"}, dailyRows},
	}
	for _, sh := range sheets {
		if err := writeTable(f, sh.name, header, sh.headers, sh.rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTable(f *excelize.File, sheet string, style int, headers []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
