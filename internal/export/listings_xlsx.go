// Package export renders listings as spreadsheets for the admin dashboard.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"kostBack/internal/models"
)

const (
	SheetName   = "Listings"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var Headers = []string{
	"ID", "Nama Kost", "Ukuran", "Total Kamar", "Kamar Tersedia",
	"Harga / Bulan", "Harga / 3 Bulan", "Harga / 6 Bulan", "Harga / 12 Bulan",
	"Alamat", "Kota", "Provinsi",
	"Fasilitas Kamar", "Fasilitas Bersama", "Peraturan",
	"Foto Kost", "Foto Luar Kamar", "Foto Dalam Kamar",
}

var columnWidths = []float64{8, 28, 12, 12, 14, 16, 16, 16, 16, 40, 18, 18, 36, 36, 36, 40, 40, 40}

// WriteListings writes one row per listing. imageURL turns a stored
// filename into the link placed in the photo columns; nil keeps the name.
func WriteListings(w io.Writer, listings []models.Listing, imageURL func(string) string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return err
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
			return err
		}
	}

	if imageURL == nil {
		imageURL = func(name string) string { return name }
	}
	for i, l := range listings {
		row := i + 2
		values := []any{
			l.ID, l.Name, l.Size, string(l.TotalRooms), string(l.AvailableRooms),
			string(l.PriceMonthly), string(l.Price3Months), string(l.Price6Months), string(l.Price12Months),
			l.Address, l.City, l.Province,
			joinList(l.RoomFacilities), joinList(l.SharedFacilities), joinList(l.Rules),
			photoCell(l.Exterior, imageURL), photoCell(l.OutsideRoom, imageURL), photoCell(l.InsideRoom, imageURL),
		}
		for col, v := range values {
			if v == "" {
				continue
			}
			if err := setCellValue(f, col+1, row, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCellValue(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(SheetName, cell, value)
}

func joinList(l models.StringList) string {
	return strings.Join(l, ", ")
}

func photoCell(name *string, imageURL func(string) string) string {
	if name == nil || *name == "" {
		return ""
	}
	return imageURL(*name)
}
