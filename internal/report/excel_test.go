package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"countwatch/internal/models"
)

func TestGenerateScanReport(t *testing.T) {
	residents := []models.Resident{
		{ResidentID: "r1", FirstName: "James", LastName: "Smith", RoomNumber: 7},
	}
	devices := []models.DeviceConfig{
		{DeviceID: 1, Name: "Main gate turnstile 1", IPAddress: "192.168.1.10", Port: 4370},
	}
	logs := []models.ScanLog{
		{
			LogID:      "l1",
			ResidentID: "r1",
			DeviceID:   1,
			Timestamp:  time.Date(2026, 3, 10, 12, 30, 45, 0, time.UTC),
			Status:     models.ScanStatusSuccess,
			VerifyType: models.VerifyFace,
		},
	}

	data, err := GenerateScanReport(logs, residents, devices)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Scan Report")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ScanReportHeader, rows[0])
	assert.Equal(t, "10.03.2026 12:30:45", rows[1][0])
	assert.Equal(t, "James Smith", rows[1][1])
	assert.Equal(t, "7", rows[1][2])
	assert.Equal(t, "Main gate turnstile 1", rows[1][3])
	assert.Equal(t, "192.168.1.10:4370", rows[1][4])
	assert.Equal(t, models.VerifyFace, rows[1][5])
	assert.Equal(t, models.ScanStatusSuccess, rows[1][6])
}

func TestGenerateScanReport_SkipsDeletedResidents(t *testing.T) {
	residents := []models.Resident{
		{ResidentID: "r1", FirstName: "James", LastName: "Smith", RoomNumber: 7},
	}
	logs := []models.ScanLog{
		{LogID: "l1", ResidentID: "r1", DeviceID: 1, Timestamp: time.Now(), Status: models.ScanStatusSuccess},
		{LogID: "l2", ResidentID: "gone", DeviceID: 1, Timestamp: time.Now(), Status: models.ScanStatusSuccess},
	}

	data, err := GenerateScanReport(logs, residents, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Scan Report")
	require.NoError(t, err)
	// 表头 + 仅 r1 一行，已删除住员的记录被跳过
	require.Len(t, rows, 2)
	assert.Equal(t, "James Smith", rows[1][1])
}

func TestGenerateScanReport_UnknownDevice(t *testing.T) {
	residents := []models.Resident{
		{ResidentID: "r1", FirstName: "James", LastName: "Smith", RoomNumber: 7},
	}
	logs := []models.ScanLog{
		{LogID: "l1", ResidentID: "r1", DeviceID: 42, Timestamp: time.Now(), Status: models.ScanStatusSuccess},
	}

	data, err := GenerateScanReport(logs, residents, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Scan Report")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Unknown device", rows[1][3])
}

func TestGenerateScanReport_EmptyLogs(t *testing.T) {
	data, err := GenerateScanReport(nil, nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Scan Report")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
