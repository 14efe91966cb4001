package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"countwatch/internal/models"
	"countwatch/internal/state"
)

// SettingsHandler 配置面 Handler（点名窗口 + 设备端点，整体替换保存）
type SettingsHandler struct {
	coord  *state.Coordinator
	logger *zap.Logger
}

func NewSettingsHandler(coord *state.Coordinator, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{coord: coord, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetSettings(w, r)
	case http.MethodPut:
		h.SaveSettings(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// GetSettings 当前配置快照
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.coord.Settings()))
}

// SaveSettings 整体替换配置（设备运行时状态由协调器保留）
func (h *SettingsHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	if err := h.coord.UpdateSettings(req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(h.coord.Settings()))
}
