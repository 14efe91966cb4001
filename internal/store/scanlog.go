package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"countwatch/internal/models"
)

// ScanLogStore 扫描记录的内存存储
// - append-only：条目创建后不可变
// - 唯一的顺序保证是 newest-first（新条目插入头部）
// - 删除仅发生在住员级联删除和整体重置
type ScanLogStore struct {
	mu      sync.RWMutex
	entries []models.ScanLog
}

func NewScanLogStore() *ScanLogStore {
	return &ScanLogStore{entries: []models.ScanLog{}}
}

// Append 赋予新ID并插入头部
func (s *ScanLogStore) Append(entry models.ScanLog) models.ScanLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.LogID == "" {
		entry.LogID = uuid.NewString()
	}
	s.entries = append([]models.ScanLog{entry}, s.entries...)
	return entry
}

// List 返回全量快照（newest-first）
func (s *ScanLogStore) List() []models.ScanLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ScanLog, len(s.entries))
	copy(out, s.entries)
	return out
}

// RecentForResident 判断该住员是否在 now 之前 within 时间内有记录
// 用于抑制重复的测试打卡
func (s *ScanLogStore) RecentForResident(residentID string, within time.Duration, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ResidentID == residentID && now.Sub(e.Timestamp) < within {
			return true
		}
	}
	return false
}

// HasEntryForResident 判断该住员是否有过任何记录（不限时间窗）
func (s *ScanLogStore) HasEntryForResident(residentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ResidentID == residentID {
			return true
		}
	}
	return false
}

// RemoveByResident 删除该住员的全部记录（住员删除时的引用清理），返回删除数
func (s *ScanLogStore) RemoveByResident(residentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.ResidentID == residentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

// ByDevice 返回指定设备的记录快照
func (s *ScanLogStore) ByDevice(deviceID int) []models.ScanLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.ScanLog{}
	for _, e := range s.entries {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out
}

// CountByResident 各住员记录数（报表用）
func (s *ScanLogStore) CountByResident() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]int{}
	for _, e := range s.entries {
		out[e.ResidentID]++
	}
	return out
}

// Clear 清空全部记录（显式重置操作）
func (s *ScanLogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = []models.ScanLog{}
}

// Len 记录总数
func (s *ScanLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
