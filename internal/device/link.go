package device

import (
	"context"
	"errors"
	"time"

	"countwatch/internal/models"
)

// 扫描仪链路错误分类。全部在协调器边界转为用户提示，不致命。
var (
	// ErrDeviceUnreachable 连接尝试失败，设备状态置为 error，可手动重试
	ErrDeviceUnreachable = errors.New("device unreachable")
	// ErrNotConnected 未连接时发起 sync/fetch，不改变状态
	ErrNotConnected = errors.New("device not connected")
	// ErrFetchFailed 批量拉取失败，不应用任何部分数据
	ErrFetchFailed = errors.New("enrolled user fetch failed")
)

// 设备上报的验证方式编码（ZKTeco attlog 语义）
const (
	VerifyModeFingerprint = 1
	VerifyModeFace        = 15
)

// ScanEvent 链路上报的一次打卡事件
// UserID 是设备侧的外部用户ID，与名册的对应关系由监听方负责。
type ScanEvent struct {
	DeviceID   int       `json:"device_id"`
	UserID     string    `json:"user_id"`
	VerifyMode int       `json:"verify_mode"`
	Time       time.Time `json:"time"`
}

// EventHandler 打卡事件回调。每条链路只注册一个监听方，
// 投递顺序与事件产生顺序一致（FIFO）。
type EventHandler func(ScanEvent)

// Link 扫描仪链路。状态机：
//
//	disconnected → connecting → {connected | error}
//	connected → disconnected（显式断开）
//	error → connecting（手动重试）
//
// 真实协议客户端替换模拟实现时必须保持这四个操作和状态机不变。
type Link interface {
	// Connect 发起连接。失败返回 ErrDeviceUnreachable 并停在 error 态。
	Connect(ctx context.Context) error
	// Disconnect 停止事件上报并回到 disconnected，幂等。
	// 返回后不会再有事件投递，即使断开时已有节拍在途。
	Disconnect()
	// FetchEnrolledUsers 批量拉取设备侧登记用户。未连接返回 ErrNotConnected。
	// 不修改名册：拉取结果与住员的匹配是调用方的职责。
	FetchEnrolledUsers(ctx context.Context) ([]models.EnrolledUser, error)
	// State 当前链路状态（models.Device* 常量）
	State() string
}
