package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"countwatch/internal/models"
)

// ScanReportHeader 扫描记录导出表头
var ScanReportHeader = []string{
	"Time",
	"Resident",
	"Room",
	"Device",
	"Device Address",
	"Verification",
	"Status",
}

// GenerateScanReport 生成扫描记录导出 Excel 文件
// logs 按存储顺序（newest-first）写入；住员已被删除的记录跳过，
// 设备已被移除的记录保留并标记设备未知。
func GenerateScanReport(logs []models.ScanLog, residents []models.Resident, devices []models.DeviceConfig) ([]byte, error) {
	residentByID := make(map[string]models.Resident, len(residents))
	for _, r := range residents {
		residentByID[r.ResidentID] = r
	}
	deviceByID := make(map[int]models.DeviceConfig, len(devices))
	for _, d := range devices {
		deviceByID[d.DeviceID] = d
	}

	f := excelize.NewFile()
	// WriteTo 需要文件保持打开，这里不 defer Close

	sheetName := "Scan Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ScanReportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{20, 25, 10, 25, 18, 15, 12}
	for col, width := range columnWidths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resolve column name: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	row := 2
	for _, log := range logs {
		resident, ok := residentByID[log.ResidentID]
		if !ok {
			continue
		}

		deviceName := "Unknown device"
		deviceAddr := ""
		if d, ok := deviceByID[log.DeviceID]; ok {
			deviceName = d.Name
			deviceAddr = fmt.Sprintf("%s:%d", d.IPAddress, d.Port)
		}

		values := []any{
			log.Timestamp.Format("02.01.2006 15:04:05"),
			resident.FirstName + " " + resident.LastName,
			resident.RoomNumber,
			deviceName,
			deviceAddr,
			log.VerifyType,
			log.Status,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
		row++
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}
