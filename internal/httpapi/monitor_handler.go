package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"countwatch/internal/models"
	"countwatch/internal/state"
)

// MonitorHandler 看板视图与测试动作 Handler
type MonitorHandler struct {
	coord  *state.Coordinator
	logger *zap.Logger
}

func NewMonitorHandler(coord *state.Coordinator, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{coord: coord, logger: logger}
}

// Rooms 全部房间的合规状态（1..40）
func (h *MonitorHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.coord.RoomGrid()))
}

// RoomByNumber 单个房间的合规状态
func (h *MonitorHandler) RoomByNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/monitor/rooms/")
	n, err := strconv.Atoi(raw)
	if err != nil || n < models.RoomMin || n > models.RoomMax {
		writeJSON(w, http.StatusBadRequest, Fail("invalid room number"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.coord.RoomStatus(n)))
}

// ActiveSchedule 当前命中的点名窗口（无则 result 为 null）
func (h *MonitorHandler) ActiveSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.coord.ActiveSchedule()))
}

// SimulateScan 手动触发一次测试打卡
func (h *MonitorHandler) SimulateScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	entry, created := h.coord.SimulateScan()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"created": created,
		"entry":   entry,
	}))
}

// Logs GET 返回扫描记录，DELETE 整体重置
func (h *MonitorHandler) Logs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, Ok(h.coord.Logs()))
	case http.MethodDelete:
		h.coord.ResetLogs()
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "reset"}))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// Notifications 用户提示列表（newest-first）
func (h *MonitorHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.coord.Notifications()))
}
