package device

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"countwatch/internal/models"
)

// MQTTOptions MQTT 桥接链路配置
type MQTTOptions struct {
	Broker   string // 如 "tcp://localhost:1883"
	ClientID string
	Username string
	Password string

	// FetchTimeout 批量拉取应答超时，默认 5s
	FetchTimeout time.Duration
}

// MQTTLink 经 MQTT 桥接的真实扫描仪链路，实现与 SimLink 相同的 Link 契约。
// 主题约定：
//
//	scanner/{device_id}/attlog  设备上报打卡事件
//	scanner/{device_id}/cmd     下行命令（fetch_users）
//	scanner/{device_id}/users   fetch_users 应答
type MQTTLink struct {
	deviceID int
	opts     MQTTOptions
	handler  EventHandler
	logger   *zap.Logger

	mu     sync.Mutex
	state  string
	client mqtt.Client
}

// attLogPayload 设备上报的打卡消息体
type attLogPayload struct {
	UserID     string `json:"user_id"`
	VerifyMode int    `json:"verify_mode"`
	Time       int64  `json:"time"` // unix 秒
}

func NewMQTTLink(deviceID int, opts MQTTOptions, handler EventHandler, logger *zap.Logger) *MQTTLink {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MQTTLink{
		deviceID: deviceID,
		opts:     opts,
		handler:  handler,
		logger:   logger,
		state:    models.DeviceDisconnected,
	}
}

// Connect 连接 broker 并订阅打卡主题
func (l *MQTTLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.state == models.DeviceConnected || l.state == models.DeviceConnecting {
		l.mu.Unlock()
		return nil
	}
	l.state = models.DeviceConnecting
	l.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(l.opts.Broker)
	opts.SetClientID(fmt.Sprintf("%s-dev%d", l.opts.ClientID, l.deviceID))
	if l.opts.Username != "" {
		opts.SetUsername(l.opts.Username)
	}
	if l.opts.Password != "" {
		opts.SetPassword(l.opts.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		l.mu.Lock()
		l.state = models.DeviceError
		l.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnreachable, token.Error())
	}

	topic := fmt.Sprintf("scanner/%d/attlog", l.deviceID)
	if token := client.Subscribe(topic, 1, l.onAttLog); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		l.mu.Lock()
		l.state = models.DeviceError
		l.mu.Unlock()
		return fmt.Errorf("%w: subscribe %s: %v", ErrDeviceUnreachable, topic, token.Error())
	}

	l.mu.Lock()
	l.state = models.DeviceConnected
	l.client = client
	l.mu.Unlock()

	l.logger.Info("scanner connected via mqtt",
		zap.Int("device_id", l.deviceID),
		zap.String("broker", l.opts.Broker),
	)
	return nil
}

// Disconnect 取消订阅并断开，幂等。
// paho 的 Disconnect 会等待在途消息回调完成后返回。
func (l *MQTTLink) Disconnect() {
	l.mu.Lock()
	client := l.client
	l.state = models.DeviceDisconnected
	l.client = nil
	l.mu.Unlock()

	if client == nil {
		return
	}
	topic := fmt.Sprintf("scanner/%d/attlog", l.deviceID)
	if token := client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		l.logger.Error("failed to unsubscribe", zap.Error(token.Error()))
	}
	client.Disconnect(250)

	l.logger.Info("scanner disconnected", zap.Int("device_id", l.deviceID))
}

// FetchEnrolledUsers 下发 fetch_users 命令并等待应答主题的一条消息
func (l *MQTTLink) FetchEnrolledUsers(ctx context.Context) ([]models.EnrolledUser, error) {
	l.mu.Lock()
	client := l.client
	connected := l.state == models.DeviceConnected
	l.mu.Unlock()
	if !connected || client == nil {
		return nil, fmt.Errorf("%w: device %d", ErrNotConnected, l.deviceID)
	}

	replyTopic := fmt.Sprintf("scanner/%d/users", l.deviceID)
	replyCh := make(chan []byte, 1)
	if token := client.Subscribe(replyTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case replyCh <- msg.Payload():
		default:
		}
	}); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: subscribe reply: %v", ErrFetchFailed, token.Error())
	}
	defer func() {
		if token := client.Unsubscribe(replyTopic); token.Wait() && token.Error() != nil {
			l.logger.Error("failed to unsubscribe reply topic", zap.Error(token.Error()))
		}
	}()

	cmdTopic := fmt.Sprintf("scanner/%d/cmd", l.deviceID)
	cmd, _ := json.Marshal(map[string]string{"cmd": "fetch_users"})
	if token := client.Publish(cmdTopic, 1, false, cmd); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: publish cmd: %v", ErrFetchFailed, token.Error())
	}

	timer := time.NewTimer(l.opts.FetchTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%w: reply timeout after %s", ErrFetchFailed, l.opts.FetchTimeout)
	case payload := <-replyCh:
		var users []models.EnrolledUser
		if err := json.Unmarshal(payload, &users); err != nil {
			return nil, fmt.Errorf("%w: decode reply: %v", ErrFetchFailed, err)
		}
		return users, nil
	}
}

// State 当前状态
func (l *MQTTLink) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// onAttLog 解码设备上报并转发给监听方
func (l *MQTTLink) onAttLog(_ mqtt.Client, msg mqtt.Message) {
	var p attLogPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		l.logger.Error("failed to unmarshal attlog message",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
		return
	}

	ts := time.Now()
	if p.Time > 0 {
		ts = time.Unix(p.Time, 0)
	}
	l.handler(ScanEvent{
		DeviceID:   l.deviceID,
		UserID:     p.UserID,
		VerifyMode: p.VerifyMode,
		Time:       ts,
	})
}
