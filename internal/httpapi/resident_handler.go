package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"countwatch/internal/models"
	"countwatch/internal/state"
	"countwatch/internal/store"
)

// ResidentHandler 名册管理 Handler
type ResidentHandler struct {
	coord  *state.Coordinator
	logger *zap.Logger
}

func NewResidentHandler(coord *state.Coordinator, logger *zap.Logger) *ResidentHandler {
	return &ResidentHandler{coord: coord, logger: logger}
}

// ServeHTTP 实现 http.Handler 接口
func (h *ResidentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/residents" && r.Method == http.MethodGet:
		h.ListResidents(w, r)
	case path == "/api/v1/residents" && r.Method == http.MethodPost:
		h.CreateResident(w, r)
	case strings.HasPrefix(path, "/api/v1/residents/") && r.Method == http.MethodPut:
		id := strings.TrimPrefix(path, "/api/v1/residents/")
		if id != "" && !strings.Contains(id, "/") {
			h.UpdateResident(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case strings.HasPrefix(path, "/api/v1/residents/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/api/v1/residents/")
		if id != "" && !strings.Contains(id, "/") {
			h.DeleteResident(w, r, id)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListResidents 名册列表（newest-first）
func (h *ResidentHandler) ListResidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.coord.Residents()))
}

// createResidentRequest 新建住员请求体
type createResidentRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	RoomNumber   int    `json:"room_number"`
	BirthDate    string `json:"birth_date"` // RFC3339 或 "2006-01-02"
	Offense      string `json:"offense"`
	PhotoURL     string `json:"photo_url"`
	DeviceUserID string `json:"device_user_id"`
}

// CreateResident 新建住员。必填字段校验在这一层完成。
func (h *ResidentHandler) CreateResident(w http.ResponseWriter, r *http.Request) {
	var req createResidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeJSON(w, http.StatusBadRequest, Fail("first_name and last_name are required"))
		return
	}

	birth, err := parseDate(req.BirthDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid birth_date"))
		return
	}

	created, err := h.coord.AddResident(models.Resident{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		RoomNumber:   req.RoomNumber,
		BirthDate:    birth,
		Offense:      req.Offense,
		PhotoURL:     req.PhotoURL,
		DeviceUserID: req.DeviceUserID,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(created))
}

// updateResidentRequest 部分更新请求体（缺省字段不修改）
type updateResidentRequest struct {
	FirstName           *string `json:"first_name"`
	LastName            *string `json:"last_name"`
	RoomNumber          *int    `json:"room_number"`
	Offense             *string `json:"offense"`
	PhotoURL            *string `json:"photo_url"`
	BiometricRegistered *bool   `json:"biometric_registered"`
	DeviceUserID        *string `json:"device_user_id"`
}

// UpdateResident 部分更新住员
func (h *ResidentHandler) UpdateResident(w http.ResponseWriter, r *http.Request, id string) {
	var req updateResidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	err := h.coord.UpdateResident(id, store.ResidentPatch{
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		RoomNumber:          req.RoomNumber,
		Offense:             req.Offense,
		PhotoURL:            req.PhotoURL,
		BiometricRegistered: req.BiometricRegistered,
		DeviceUserID:        req.DeviceUserID,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"resident_id": id}))
}

// DeleteResident 删除住员（级联删除其扫描记录）
func (h *ResidentHandler) DeleteResident(w http.ResponseWriter, _ *http.Request, id string) {
	if !h.coord.DeleteResident(id) {
		writeJSON(w, http.StatusNotFound, Fail("resident not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"resident_id": id}))
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
