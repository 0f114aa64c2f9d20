// Package export renders booking listings as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"shareit/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Bookings"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "02.01.2006 15:04"
	headerRow   = 3
)

var columns = []struct {
	title string
	width float64
}{
	{"ID", 8},
	{"Item", 28},
	{"Booker", 22},
	{"Email", 28},
	{"Start", 18},
	{"End", 18},
	{"Status", 12},
}

var statusColors = map[models.BookingStatus]string{
	models.StatusWaiting:  "#FFEB9C",
	models.StatusApproved: "#C6EFCE",
	models.StatusRejected: "#FFC7CE",
	models.StatusCanceled: "#D9D9D9",
}

// FileName builds the download name of an owner's export.
func FileName(ownerID int64, state models.BookingState, at time.Time) string {
	return fmt.Sprintf("bookings_%d_%s_%s.xlsx", ownerID, state, at.Format("20060102_150405"))
}

// WriteBookings writes one sheet listing bookings in the given order.
func WriteBookings(w io.Writer, state models.BookingState, bookings []*models.Booking, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("error renaming sheet: %w", err)
	}

	// Заголовок выгрузки
	title := fmt.Sprintf("Bookings (%s), generated %s", state, generatedAt.UTC().Format(dateLayout))
	_ = f.SetCellValue(SheetName, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(SheetName, "A1", lastCol+"1")
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetCellStyle(SheetName, "A1", "A1", titleStyle)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(SheetName, cell, c.title)
		_ = f.SetCellStyle(SheetName, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(SheetName, name, name, c.width)
	}

	styles := make(map[models.BookingStatus]int, len(statusColors))
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}

	for i, b := range bookings {
		row := headerRow + 1 + i
		values := []interface{}{b.ID, "", "", "", b.Start.UTC().Format(dateLayout), b.End.UTC().Format(dateLayout), string(b.Status)}
		if b.Item != nil {
			values[1] = b.Item.Name
		}
		if b.Booker != nil {
			values[2] = b.Booker.Name
			values[3] = b.Booker.Email
		}

		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(len(columns), row)
			_ = f.SetCellStyle(SheetName, statusCell, statusCell, style)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
