package device

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"countwatch/internal/models"
)

// SimOptions 模拟链路时序与概率。零值字段取默认值。
type SimOptions struct {
	ConnectDelay time.Duration // 连接握手延迟，默认 1500ms
	FetchDelay   time.Duration // 批量拉取延迟，默认 2000ms
	TickInterval time.Duration // 合成事件节拍，默认 3000ms

	// 概率为 0 时取默认值；负值表示永不命中（测试里用来强制失败/静默）
	ConnectSuccessRate float64 // 连接成功概率，默认 0.9
	EmitRate           float64 // 每个节拍产生事件的概率，默认 0.3

	Rand *rand.Rand // 为 nil 时使用时间种子
}

func (o *SimOptions) applyDefaults() {
	if o.ConnectDelay <= 0 {
		o.ConnectDelay = 1500 * time.Millisecond
	}
	if o.FetchDelay <= 0 {
		o.FetchDelay = 2000 * time.Millisecond
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 3000 * time.Millisecond
	}
	if o.ConnectSuccessRate == 0 {
		o.ConnectSuccessRate = 0.9
	}
	if o.EmitRate == 0 {
		o.EmitRate = 0.3
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

// SimLink 进程内模拟的扫描仪链路。
// 随机的连接成败和事件节奏模拟真实设备的不稳定性和零星打卡，
// 不要求真实协议。状态机与监听方契约见 Link。
type SimLink struct {
	deviceID int
	addr     string
	port     int
	opts     SimOptions
	handler  EventHandler
	logger   *zap.Logger

	mu     sync.Mutex
	state  string
	gen    int // 每次断开递增，connecting 期间的断开使挂起的 Connect 作废
	cancel context.CancelFunc
	done   chan struct{}

	rndMu sync.Mutex
}

// NewSimLink 创建模拟链路。handler 在链路存续期内不可更换。
func NewSimLink(deviceID int, addr string, port int, opts SimOptions, handler EventHandler, logger *zap.Logger) *SimLink {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimLink{
		deviceID: deviceID,
		addr:     addr,
		port:     port,
		opts:     opts,
		handler:  handler,
		logger:   logger,
		state:    models.DeviceDisconnected,
	}
}

// Connect 经过固定的模拟网络延迟后，以 ConnectSuccessRate 概率成功。
// 成功后开始周期性合成事件上报；失败置 error 态并返回 ErrDeviceUnreachable。
// 握手期间被 Disconnect 时保持 disconnected，不启动上报。
func (l *SimLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.state == models.DeviceConnected || l.state == models.DeviceConnecting {
		l.mu.Unlock()
		return nil
	}
	l.state = models.DeviceConnecting
	gen := l.gen
	l.mu.Unlock()

	l.logger.Debug("connecting to scanner",
		zap.Int("device_id", l.deviceID),
		zap.String("addr", l.addr),
		zap.Int("port", l.port),
	)

	if err := sleepCtx(ctx, l.opts.ConnectDelay); err != nil {
		l.mu.Lock()
		if l.gen == gen && l.state == models.DeviceConnecting {
			l.state = models.DeviceDisconnected
		}
		l.mu.Unlock()
		return err
	}

	l.rndMu.Lock()
	ok := l.opts.Rand.Float64() < l.opts.ConnectSuccessRate
	l.rndMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen || l.state != models.DeviceConnecting {
		// 握手期间已被断开
		return nil
	}
	if !ok {
		l.state = models.DeviceError
		return fmt.Errorf("%w: %s:%d", ErrDeviceUnreachable, l.addr, l.port)
	}

	monCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.state = models.DeviceConnected
	l.cancel = cancel
	l.done = done
	go l.monitor(monCtx, done)

	l.logger.Info("scanner connected",
		zap.Int("device_id", l.deviceID),
		zap.String("addr", l.addr),
	)
	return nil
}

// Disconnect 停止节拍并回到 disconnected。
// 阻塞到上报 goroutine 退出：返回后不再有事件投递。
// connecting 期间调用会使挂起的 Connect 作废，其恢复后不进入 connected。
func (l *SimLink) Disconnect() {
	l.mu.Lock()
	if l.state != models.DeviceConnected {
		l.state = models.DeviceDisconnected
		l.gen++
		l.mu.Unlock()
		return
	}
	cancel := l.cancel
	done := l.done
	l.state = models.DeviceDisconnected
	l.gen++
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	cancel()
	<-done

	l.logger.Info("scanner disconnected", zap.Int("device_id", l.deviceID))
}

// FetchEnrolledUsers 固定延迟后返回固定大小的合成登记用户批次。
func (l *SimLink) FetchEnrolledUsers(ctx context.Context) ([]models.EnrolledUser, error) {
	l.mu.Lock()
	connected := l.state == models.DeviceConnected
	l.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("%w: device %d", ErrNotConnected, l.deviceID)
	}

	if err := sleepCtx(ctx, l.opts.FetchDelay); err != nil {
		return nil, err
	}

	users := make([]models.EnrolledUser, 0, 5)
	for i := 0; i < 5; i++ {
		users = append(users, models.EnrolledUser{
			DeviceUserID:        strconv.Itoa(1000 + i),
			FirstName:           "Enrolled",
			LastName:            "User " + strconv.Itoa(i+1),
			BiometricRegistered: true,
		})
	}
	return users, nil
}

// State 当前状态
func (l *SimLink) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// monitor 周期性合成事件。每个节拍以 EmitRate 概率产生一条事件，
// 未命中的节拍不产生任何可观察调用。单 goroutine 投递保证 FIFO。
func (l *SimLink) monitor(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			// 取消后已入队的节拍直接丢弃
			if ctx.Err() != nil {
				return
			}

			l.rndMu.Lock()
			hit := l.opts.Rand.Float64() < l.opts.EmitRate
			userID := l.opts.Rand.Intn(200)
			face := l.opts.Rand.Float64() < 0.5
			l.rndMu.Unlock()

			if !hit {
				continue
			}

			mode := VerifyModeFingerprint
			if face {
				mode = VerifyModeFace
			}
			l.handler(ScanEvent{
				DeviceID:   l.deviceID,
				UserID:     strconv.Itoa(userID),
				VerifyMode: mode,
				Time:       now,
			})
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
