package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"countwatch/internal/report"
	"countwatch/internal/state"
)

// ReportHandler 报表导出 Handler
type ReportHandler struct {
	coord  *state.Coordinator
	logger *zap.Logger
}

func NewReportHandler(coord *state.Coordinator, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{coord: coord, logger: logger}
}

// ExportScans 导出扫描记录为 xlsx
func (h *ReportHandler) ExportScans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	settings := h.coord.Settings()
	data, err := report.GenerateScanReport(h.coord.Logs(), h.coord.Residents(), settings.Devices)
	if err != nil {
		h.logger.Error("failed to generate scan report", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to generate report"))
		return
	}

	filename := fmt.Sprintf("scan-report-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
