package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"countwatch/internal/device"
	"countwatch/internal/state"
)

// DeviceHandler 设备生命周期 Handler（connect / disconnect / sync）
type DeviceHandler struct {
	coord  *state.Coordinator
	logger *zap.Logger
}

func NewDeviceHandler(coord *state.Coordinator, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{coord: coord, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
// 路径形如 /api/v1/devices/{id}/{action}
func (h *DeviceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	deviceID, err := strconv.Atoi(parts[0])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid device id"))
		return
	}

	switch parts[1] {
	case "connect":
		h.Connect(w, r, deviceID)
	case "disconnect":
		h.Disconnect(w, r, deviceID)
	case "sync":
		h.Sync(w, r, deviceID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Connect 建立设备链路。失败不致命：状态置 error，用户可重试。
func (h *DeviceHandler) Connect(w http.ResponseWriter, r *http.Request, deviceID int) {
	if err := h.coord.ConnectDevice(r.Context(), deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceUnreachable) {
			writeJSON(w, http.StatusOK, Fail(err.Error()))
			return
		}
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": deviceID, "status": "connected"}))
}

// Disconnect 断开设备链路，幂等
func (h *DeviceHandler) Disconnect(w http.ResponseWriter, _ *http.Request, deviceID int) {
	if err := h.coord.DisconnectDevice(deviceID); err != nil {
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": deviceID, "status": "disconnected"}))
}

// Sync 批量拉取设备侧登记用户
func (h *DeviceHandler) Sync(w http.ResponseWriter, r *http.Request, deviceID int) {
	count, err := h.coord.SyncDeviceData(r.Context(), deviceID)
	if err != nil {
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"device_id": deviceID, "fetched_users": count}))
}
