package models

import "time"

// Room numbers are fixed for the facility: 1..40 inclusive.
const (
	RoomMin = 1
	RoomMax = 40
)

// Scan outcome status
const (
	ScanStatusSuccess = "success"
	ScanStatusFailed  = "failed"
)

// Verification modality
const (
	VerifyFace        = "face"
	VerifyFingerprint = "fingerprint"
)

// Device connection status
const (
	DeviceDisconnected = "disconnected"
	DeviceConnecting   = "connecting"
	DeviceConnected    = "connected"
	DeviceError        = "error"
)

// Device modality type
const (
	DeviceTypeFace        = "face"
	DeviceTypeFingerprint = "fingerprint"
	DeviceTypeHybrid      = "hybrid"
)

// Resident 住在某个房间、参与点名合规的人员
type Resident struct {
	ResidentID          string    `json:"resident_id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	RoomNumber          int       `json:"room_number"`
	BirthDate           time.Time `json:"birth_date"`
	Offense             string    `json:"offense"`
	PhotoURL            string    `json:"photo_url"`
	BiometricRegistered bool      `json:"biometric_registered"`
	// DeviceUserID 生物识别设备侧的外部用户ID（可选）
	DeviceUserID string `json:"device_user_id,omitempty"`
}

// ScanLog 一次生物识别打卡记录（append-only，创建后不可变）
type ScanLog struct {
	LogID      string    `json:"log_id"`
	ResidentID string    `json:"resident_id"`
	DeviceID   int       `json:"device_id"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	VerifyType string    `json:"verify_type"`
}

// CountSchedule 点名时间窗（"HH:MM" 24小时制，字符串比较即可排序）
type CountSchedule struct {
	ScheduleID int    `json:"schedule_id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

// DeviceConfig 生物识别设备端点配置
type DeviceConfig struct {
	DeviceID  int        `json:"device_id"`
	Name      string     `json:"name"`
	IPAddress string     `json:"ip_address"`
	Port      int        `json:"port"`
	Type      string     `json:"type"`
	Location  string     `json:"location"`
	Status    string     `json:"status"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

// Settings 可编辑配置面（进程内存中，随进程生命周期存在）
type Settings struct {
	Schedules []CountSchedule `json:"schedules"`
	Devices   []DeviceConfig  `json:"devices"`
}

// RoomStatus 某个房间的点名合规状态
type RoomStatus struct {
	RoomNumber int        `json:"room_number"`
	Total      int        `json:"total"`
	Scanned    int        `json:"scanned"`
	IsComplete bool       `json:"is_complete"`
	Residents  []Resident `json:"residents"`
}

// EnrolledUser 设备侧登记的用户记录（批量拉取返回，不落库）
type EnrolledUser struct {
	DeviceUserID        string `json:"device_user_id"`
	FirstName           string `json:"first_name"`
	LastName            string `json:"last_name"`
	BiometricRegistered bool   `json:"biometric_registered"`
}

// Notification 面向用户的提示（设备故障等，环形缓存，不落库）
type Notification struct {
	NoteID    string    `json:"note_id"`
	Level     string    `json:"level"` // "info" | "error"
	Message   string    `json:"message"`
	DeviceID  int       `json:"device_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
