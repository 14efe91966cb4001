package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes 注册全部 API 路由
func (r *Router) RegisterRoutes(
	residents *ResidentHandler,
	monitor *MonitorHandler,
	settings *SettingsHandler,
	devices *DeviceHandler,
	reports *ReportHandler,
) {
	// roster
	r.Handle("/api/v1/residents", residents.ServeHTTP)
	r.Handle("/api/v1/residents/", residents.ServeHTTP)

	// dashboard views + actions
	r.Handle("/api/v1/monitor/rooms", monitor.Rooms)
	r.Handle("/api/v1/monitor/rooms/", monitor.RoomByNumber)
	r.Handle("/api/v1/monitor/active-schedule", monitor.ActiveSchedule)
	r.Handle("/api/v1/monitor/simulate-scan", monitor.SimulateScan)
	r.Handle("/api/v1/monitor/logs", monitor.Logs)
	r.Handle("/api/v1/monitor/notifications", monitor.Notifications)

	// settings
	r.Handle("/api/v1/settings", settings.ServeHTTP)

	// device lifecycle
	r.Handle("/api/v1/devices/", devices.ServeHTTP)

	// reports
	r.Handle("/api/v1/reports/scans/export", reports.ExportScans)

	// health
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
