package service

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const residentSheet = "Penduduk"

// ResidentExportHeader 导出表头
var ResidentExportHeader = []string{
	"NIK",
	"Nama Lengkap",
	"Tempat Lahir",
	"Tanggal Lahir",
	"Jenis Kelamin",
	"Alamat",
	"RT",
	"RW",
	"Dusun",
	"Agama",
	"Status Perkawinan",
	"Pekerjaan",
	"Status",
}

var residentColumnWidths = []float64{20, 30, 18, 14, 14, 40, 6, 6, 18, 12, 18, 20, 12}

func residentRow(item ResidentItem) []any {
	return []any{
		item.NIK,
		item.FullName,
		item.BirthPlace,
		item.BirthDate,
		item.Sex,
		item.Address,
		item.RT,
		item.RW,
		item.Hamlet,
		item.Religion,
		item.MaritalStatus,
		item.Occupation,
		item.Status,
	}
}

// writeResidentWorkbook 生成居民名册 Excel；NIK 按文本写入，避免被当作数字截断
func writeResidentWorkbook(items []ResidentItem, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(residentSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(residentSheet)
	if err != nil {
		return fmt.Errorf("failed to get sheet index: %w", err)
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
		return fmt.Errorf("failed to create header style: %w", err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		return fmt.Errorf("failed to create text style: %w", err)
	}

	for col, header := range ResidentExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(residentSheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(residentSheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(residentSheet, name, name, residentColumnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, item := range items {
		row := i + 2
		for col, value := range residentRow(item) {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if col == 0 {
				if err := f.SetCellStyle(residentSheet, cell, cell, textStyle); err != nil {
					return fmt.Errorf("failed to set nik style: %w", err)
				}
				if err := f.SetCellStr(residentSheet, cell, item.NIK); err != nil {
					return fmt.Errorf("failed to set cell %s: %w", cell, err)
				}
				continue
			}
			if err := f.SetCellValue(residentSheet, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
