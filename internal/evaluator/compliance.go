package evaluator

import (
	"countwatch/internal/models"
)

// RoomStatus 计算某个房间的点名合规状态
// residents 为该房间的住员列表，scanned 判断某住员是否有过扫描记录。
// "已扫描"不设时间窗：只要有过任意一条记录即视为已扫描（历史行为，见 DESIGN.md）。
// 空房间 total==0 时 IsComplete 恒为 false，前端按"空"渲染而非"缺员"。
func RoomStatus(roomNumber int, residents []models.Resident, scanned func(residentID string) bool) models.RoomStatus {
	count := 0
	for _, r := range residents {
		if scanned(r.ResidentID) {
			count++
		}
	}
	return models.RoomStatus{
		RoomNumber: roomNumber,
		Total:      len(residents),
		Scanned:    count,
		IsComplete: len(residents) > 0 && count == len(residents),
		Residents:  residents,
	}
}
