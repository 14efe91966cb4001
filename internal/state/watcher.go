package state

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ScheduleWatcher 按固定间隔重算当前点名窗口（轮询，不做事件驱动），
// 并在窗口切换时记日志。每个节拍至多触发一次状态读取。
type ScheduleWatcher struct {
	coord    *Coordinator
	interval time.Duration
	logger   *zap.Logger
}

func NewScheduleWatcher(coord *Coordinator, interval time.Duration, logger *zap.Logger) *ScheduleWatcher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleWatcher{coord: coord, interval: interval, logger: logger}
}

// Start 阻塞运行直到 ctx 取消
func (w *ScheduleWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastID := 0 // 0 表示当前无活动窗口
	lastID = w.check(lastID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lastID = w.check(lastID)
		}
	}
}

func (w *ScheduleWatcher) check(lastID int) int {
	active := w.coord.ActiveSchedule()

	currentID := 0
	if active != nil {
		currentID = active.ScheduleID
	}
	if currentID == lastID {
		return lastID
	}

	if active != nil {
		w.logger.Info("count window opened",
			zap.Int("schedule_id", active.ScheduleID),
			zap.String("name", active.Name),
			zap.String("start_time", active.StartTime),
			zap.String("end_time", active.EndTime),
		)
	} else {
		w.logger.Info("count window closed", zap.Int("schedule_id", lastID))
	}
	return currentID
}
