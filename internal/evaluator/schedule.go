package evaluator

import (
	"time"

	"countwatch/internal/models"
)

// ActiveSchedule 返回当前时刻命中的点名窗口，没有则返回 nil
// now 格式化为 "HH:MM" 后与 [StartTime, EndTime] 做字符串比较
// （零填充的24小时制字符串，字典序即时间序）。两端均为闭区间。
// 多个窗口同时命中时按列表顺序取第一个：平稳、确定、依赖列表顺序。
// 需要与顺序无关的调用方应自行预排序。
func ActiveSchedule(schedules []models.CountSchedule, now time.Time) *models.CountSchedule {
	current := now.Format("15:04")
	for i := range schedules {
		s := schedules[i]
		if current >= s.StartTime && current <= s.EndTime {
			return &s
		}
	}
	return nil
}
