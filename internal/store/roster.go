package store

import (
	"sync"

	"github.com/google/uuid"

	"countwatch/internal/models"
)

// RosterStore 住员名册的内存存储
// - IDs 使用 uuid
// - 列表保持 newest-first（新增住员插入头部）
// - 读取返回快照，调用方不得假设与内部切片共享
type RosterStore struct {
	mu        sync.RWMutex
	residents []models.Resident
	index     map[string]int // residentID -> position in residents
}

func NewRosterStore() *RosterStore {
	return &RosterStore{
		residents: []models.Resident{},
		index:     map[string]int{},
	}
}

// Add 赋予新ID并插入头部。登记标志初始为 false。
func (s *RosterStore) Add(r models.Resident) models.Resident {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ResidentID = uuid.NewString()
	r.BiometricRegistered = false

	s.residents = append([]models.Resident{r}, s.residents...)
	s.reindex()
	return r
}

// ResidentPatch 部分更新字段（nil 表示不修改）
type ResidentPatch struct {
	FirstName           *string
	LastName            *string
	RoomNumber          *int
	Offense             *string
	PhotoURL            *string
	BiometricRegistered *bool
	DeviceUserID        *string
}

// Update 按ID合并字段。ID 不存在时静默忽略。
func (s *RosterStore) Update(id string, patch ResidentPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return
	}
	r := s.residents[pos]
	if patch.FirstName != nil {
		r.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		r.LastName = *patch.LastName
	}
	if patch.RoomNumber != nil {
		r.RoomNumber = *patch.RoomNumber
	}
	if patch.Offense != nil {
		r.Offense = *patch.Offense
	}
	if patch.PhotoURL != nil {
		r.PhotoURL = *patch.PhotoURL
	}
	if patch.BiometricRegistered != nil {
		r.BiometricRegistered = *patch.BiometricRegistered
	}
	if patch.DeviceUserID != nil {
		r.DeviceUserID = *patch.DeviceUserID
	}
	s.residents[pos] = r
}

// Remove 删除住员，返回是否存在。扫描日志的级联删除由调用方负责。
func (s *RosterStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}
	s.residents = append(s.residents[:pos], s.residents[pos+1:]...)
	s.reindex()
	return true
}

// Get 按ID查询
func (s *RosterStore) Get(id string) (models.Resident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return models.Resident{}, false
	}
	return s.residents[pos], true
}

// List 返回全量快照（newest-first）
func (s *RosterStore) List() []models.Resident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Resident, len(s.residents))
	copy(out, s.residents)
	return out
}

// ByRoom 返回指定房间的住员快照
func (s *RosterStore) ByRoom(roomNumber int) []models.Resident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Resident{}
	for _, r := range s.residents {
		if r.RoomNumber == roomNumber {
			out = append(out, r)
		}
	}
	return out
}

// Len 住员总数
func (s *RosterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.residents)
}

func (s *RosterStore) reindex() {
	s.index = make(map[string]int, len(s.residents))
	for i, r := range s.residents {
		s.index[r.ResidentID] = i
	}
}
