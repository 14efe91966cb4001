package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"countwatch/internal/device"
	"countwatch/internal/httpapi"
	"countwatch/internal/models"
	"countwatch/internal/state"
	"countwatch/internal/store"
)

// apiResult 统一应答包的测试侧解码形态
type apiResult struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type stubLink struct {
	mu         sync.Mutex
	connectErr error
	state      string
}

func (l *stubLink) Connect(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connectErr != nil {
		l.state = models.DeviceError
		return l.connectErr
	}
	l.state = models.DeviceConnected
	return nil
}

func (l *stubLink) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = models.DeviceDisconnected
}

func (l *stubLink) FetchEnrolledUsers(_ context.Context) ([]models.EnrolledUser, error) {
	return []models.EnrolledUser{
		{DeviceUserID: "1000", BiometricRegistered: true},
		{DeviceUserID: "1001", BiometricRegistered: true},
	}, nil
}

func (l *stubLink) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func newTestRouter(t *testing.T, link *stubLink) (*httpapi.Router, *state.Coordinator) {
	t.Helper()

	roster := store.NewRosterStore()
	logs := store.NewScanLogStore()
	settings := models.Settings{
		Schedules: []models.CountSchedule{
			{ScheduleID: 1, Name: "Morning count", StartTime: "07:00", EndTime: "08:00"},
		},
		Devices: []models.DeviceConfig{
			{DeviceID: 1, Name: "Main gate turnstile 1", IPAddress: "192.168.1.10", Port: 4370, Type: models.DeviceTypeHybrid, Status: models.DeviceDisconnected},
		},
	}

	coord := state.New(roster, logs, settings, state.Options{
		Rand: rand.New(rand.NewSource(1)),
		LinkFactory: func(_ models.DeviceConfig, _ device.EventHandler) device.Link {
			return link
		},
	}, zap.NewNop())
	t.Cleanup(coord.Close)

	logger := zap.NewNop()
	router := httpapi.NewRouter(logger)
	router.RegisterRoutes(
		httpapi.NewResidentHandler(coord, logger),
		httpapi.NewMonitorHandler(coord, logger),
		httpapi.NewSettingsHandler(coord, logger),
		httpapi.NewDeviceHandler(coord, logger),
		httpapi.NewReportHandler(coord, logger),
	)
	return router, coord
}

func doJSON(t *testing.T, router *httpapi.Router, method, path string, body any) (*httptest.ResponseRecorder, apiResult) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var res apiResult
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &res)
	}
	return rec, res
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, _ := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListResidents(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	_, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 3})
	require.NoError(t, err)

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/residents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2000, res.Code)

	var residents []models.Resident
	require.NoError(t, json.Unmarshal(res.Result, &residents))
	require.Len(t, residents, 1)
	assert.Equal(t, "James", residents[0].FirstName)
}

func TestCreateResident(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/residents", map[string]any{
		"first_name":  "Robert",
		"last_name":   "Jones",
		"room_number": 12,
		"birth_date":  "1990-05-01",
		"offense":     "Fraud",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2000, res.Code)

	var created models.Resident
	require.NoError(t, json.Unmarshal(res.Result, &created))
	assert.NotEmpty(t, created.ResidentID)
	assert.Equal(t, 12, created.RoomNumber)
	assert.False(t, created.BiometricRegistered)
}

func TestCreateResident_MissingName(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/residents", map[string]any{
		"first_name":  "Robert",
		"room_number": 12,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, -1, res.Code)
}

func TestCreateResident_RoomOutOfRange(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/residents", map[string]any{
		"first_name":  "Robert",
		"last_name":   "Jones",
		"room_number": 41,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndDeleteResident(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	created, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 3})
	require.NoError(t, err)

	rec, _ := doJSON(t, router, http.MethodPut, "/api/v1/residents/"+created.ResidentID, map[string]any{
		"room_number": 20,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, coord.Residents()[0].RoomNumber)

	rec, _ = doJSON(t, router, http.MethodPut, "/api/v1/residents/"+created.ResidentID, map[string]any{
		"room_number": 99,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/residents/"+created.ResidentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, coord.Residents())

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/residents/"+created.ResidentID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMonitorRooms(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/monitor/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rooms []models.RoomStatus
	require.NoError(t, json.Unmarshal(res.Result, &rooms))
	assert.Len(t, rooms, 40)
}

func TestMonitorRoomByNumber(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	_, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 7})
	require.NoError(t, err)

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/monitor/rooms/7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var room models.RoomStatus
	require.NoError(t, json.Unmarshal(res.Result, &room))
	assert.Equal(t, 7, room.RoomNumber)
	assert.Equal(t, 1, room.Total)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/monitor/rooms/0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/monitor/rooms/41", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateScanEndpoint(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	_, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 7})
	require.NoError(t, err)

	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/monitor/simulate-scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Created bool            `json:"created"`
		Entry   *models.ScanLog `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &payload))
	assert.True(t, payload.Created)
	require.NotNil(t, payload.Entry)
	assert.Equal(t, models.ScanStatusSuccess, payload.Entry.Status)

	// 抑制窗口内重复触发
	_, res = doJSON(t, router, http.MethodPost, "/api/v1/monitor/simulate-scan", nil)
	require.NoError(t, json.Unmarshal(res.Result, &payload))
	assert.False(t, payload.Created)

	// GET 不允许
	rec, _ = doJSON(t, router, http.MethodGet, "/api/v1/monitor/simulate-scan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogsEndpoint(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	_, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 7})
	require.NoError(t, err)
	_, ok := coord.SimulateScan()
	require.True(t, ok)

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/monitor/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.ScanLog
	require.NoError(t, json.Unmarshal(res.Result, &logs))
	assert.Len(t, logs, 1)

	rec, _ = doJSON(t, router, http.MethodDelete, "/api/v1/monitor/logs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, coord.Logs())
}

func TestSettingsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings models.Settings
	require.NoError(t, json.Unmarshal(res.Result, &settings))
	require.Len(t, settings.Schedules, 1)

	settings.Schedules[0].EndTime = "25:99"
	rec, _ = doJSON(t, router, http.MethodPut, "/api/v1/settings", settings)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	settings.Schedules[0].EndTime = "08:30"
	rec, res = doJSON(t, router, http.MethodPut, "/api/v1/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(res.Result, &settings))
	assert.Equal(t, "08:30", settings.Schedules[0].EndTime)
}

func TestDeviceLifecycleEndpoints(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/devices/1/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2000, res.Code)
	assert.Equal(t, models.DeviceConnected, coord.Settings().Devices[0].Status)

	rec, res = doJSON(t, router, http.MethodPost, "/api/v1/devices/1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2000, res.Code)

	var payload struct {
		FetchedUsers int `json:"fetched_users"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &payload))
	assert.Equal(t, 2, payload.FetchedUsers)
	assert.NotNil(t, coord.Settings().Devices[0].LastSync)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/devices/1/disconnect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DeviceDisconnected, coord.Settings().Devices[0].Status)
}

func TestDeviceConnectFailure(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{connectErr: device.ErrDeviceUnreachable})

	// 连接失败不是协议错误：HTTP 200 + 错误应答包
	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/devices/1/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, res.Code)
	assert.Equal(t, models.DeviceError, coord.Settings().Devices[0].Status)
}

func TestDeviceSyncWithoutConnect(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, res := doJSON(t, router, http.MethodPost, "/api/v1/devices/1/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, res.Code)
}

func TestDeviceUnknownRoutes(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	rec, _ := doJSON(t, router, http.MethodPost, "/api/v1/devices/99/connect", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/devices/1/reboot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/v1/devices/abc/connect", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &stubLink{})

	// 未连接就 sync 会产生一条 error 提示
	_, _ = doJSON(t, router, http.MethodPost, "/api/v1/devices/1/sync", nil)

	rec, res := doJSON(t, router, http.MethodGet, "/api/v1/monitor/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var notes []models.Notification
	require.NoError(t, json.Unmarshal(res.Result, &notes))
	require.NotEmpty(t, notes)
	assert.Equal(t, "error", notes[0].Level)
}

func TestExportScansEndpoint(t *testing.T) {
	router, coord := newTestRouter(t, &stubLink{})
	_, err := coord.AddResident(models.Resident{FirstName: "James", LastName: "Smith", RoomNumber: 7})
	require.NoError(t, err)
	_, ok := coord.SimulateScan()
	require.True(t, ok)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/scans/export", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "scan-report-")
	// xlsx 是 zip 容器
	require.True(t, rec.Body.Len() > 4)
	assert.Equal(t, "PK", rec.Body.String()[:2])
}
