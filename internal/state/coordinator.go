package state

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"countwatch/internal/device"
	"countwatch/internal/evaluator"
	"countwatch/internal/models"
	"countwatch/internal/store"
	"countwatch/internal/stream"
)

// maxNotifications 提示环形缓存上限
const maxNotifications = 100

// LinkFactory 按设备配置创建链路。协调器对具体传输（模拟/MQTT）无感知。
type LinkFactory func(dev models.DeviceConfig, handler device.EventHandler) device.Link

// Options 协调器可注入项。零值字段取默认值。
type Options struct {
	// DuplicateWindow 同一住员重复打卡抑制窗口，默认 60 分钟
	DuplicateWindow time.Duration
	// Now 时钟注入（测试用），默认 time.Now
	Now func() time.Time
	// Rand 随机源注入（测试用），默认时间种子
	Rand *rand.Rand
	// Publisher 扫描事件外发，默认 NopPublisher
	Publisher stream.Publisher
	// LinkFactory 链路工厂，必填（main 按配置选择传输）
	LinkFactory LinkFactory
}

// Coordinator 应用状态协调器：名册、扫描日志、配置、提示和
// 活动链路会话的唯一持有者。一把互斥锁串行化全部变更，
// 变更按触发事件到达顺序生效，互不交错。
// 会话表只由协调器修改，其他组件不直接持有链路。
type Coordinator struct {
	mu sync.Mutex

	roster   *store.RosterStore
	logs     *store.ScanLogStore
	settings models.Settings
	sessions map[int]device.Link
	notes    []models.Notification

	dupWindow time.Duration
	now       func() time.Time
	rnd       *rand.Rand
	publisher stream.Publisher
	newLink   LinkFactory
	logger    *zap.Logger
}

// New 创建协调器。settings 为启动配置（种子数据或上次保存值）。
func New(roster *store.RosterStore, logs *store.ScanLogStore, settings models.Settings, opts Options, logger *zap.Logger) *Coordinator {
	if opts.DuplicateWindow <= 0 {
		opts.DuplicateWindow = 60 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Publisher == nil {
		opts.Publisher = stream.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		roster:    roster,
		logs:      logs,
		settings:  settings,
		sessions:  map[int]device.Link{},
		notes:     []models.Notification{},
		dupWindow: opts.DuplicateWindow,
		now:       opts.Now,
		rnd:       opts.Rand,
		publisher: opts.Publisher,
		newLink:   opts.LinkFactory,
		logger:    logger,
	}
}

// ---- roster ----

// Residents 名册快照（newest-first）
func (c *Coordinator) Residents() []models.Resident {
	return c.roster.List()
}

// AddResident 新增住员。房间号必须在 [RoomMin, RoomMax] 内。
func (c *Coordinator) AddResident(r models.Resident) (models.Resident, error) {
	if r.RoomNumber < models.RoomMin || r.RoomNumber > models.RoomMax {
		return models.Resident{}, fmt.Errorf("room number %d out of range [%d, %d]", r.RoomNumber, models.RoomMin, models.RoomMax)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	created := c.roster.Add(r)
	c.logger.Info("resident added",
		zap.String("resident_id", created.ResidentID),
		zap.Int("room_number", created.RoomNumber),
	)
	return created, nil
}

// UpdateResident 部分更新。ID 不存在时静默忽略。
func (c *Coordinator) UpdateResident(id string, patch store.ResidentPatch) error {
	if patch.RoomNumber != nil && (*patch.RoomNumber < models.RoomMin || *patch.RoomNumber > models.RoomMax) {
		return fmt.Errorf("room number %d out of range [%d, %d]", *patch.RoomNumber, models.RoomMin, models.RoomMax)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.roster.Update(id, patch)
	return nil
}

// DeleteResident 删除住员并级联删除其全部扫描记录（引用清理）
func (c *Coordinator) DeleteResident(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.roster.Remove(id) {
		return false
	}
	removed := c.logs.RemoveByResident(id)
	c.logger.Info("resident deleted",
		zap.String("resident_id", id),
		zap.Int("cascaded_logs", removed),
	)
	return true
}

// ---- scan log ----

// Logs 扫描记录快照（newest-first）
func (c *Coordinator) Logs() []models.ScanLog {
	return c.logs.List()
}

// ResetLogs 清空全部扫描记录（显式重置操作）
func (c *Coordinator) ResetLogs() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs.Clear()
	c.logger.Info("scan logs reset")
}

// SimulateScan 手动触发一次测试打卡：均匀随机选一名住员和一台设备。
// 该住员在抑制窗口内已有记录时不插入，返回 (nil, false)。
func (c *Coordinator) SimulateScan() (*models.ScanLog, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	residents := c.roster.List()
	if len(residents) == 0 || len(c.settings.Devices) == 0 {
		return nil, false
	}

	r := residents[c.rnd.Intn(len(residents))]
	d := c.settings.Devices[c.rnd.Intn(len(c.settings.Devices))]

	now := c.now()
	if c.logs.RecentForResident(r.ResidentID, c.dupWindow, now) {
		return nil, false
	}

	verify := models.VerifyFingerprint
	if c.rnd.Float64() < 0.5 {
		verify = models.VerifyFace
	}
	entry := c.logs.Append(models.ScanLog{
		ResidentID: r.ResidentID,
		DeviceID:   d.DeviceID,
		Timestamp:  now,
		Status:     models.ScanStatusSuccess,
		VerifyType: verify,
	})

	go c.publishScan(entry)
	return &entry, true
}

// ---- compliance / schedule views ----

// RoomStatus 单个房间的合规状态。
// 持协调器锁读取，和级联删除等变更互斥，不出现半成品视图。
func (c *Coordinator) RoomStatus(roomNumber int) models.RoomStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomStatusLocked(roomNumber)
}

// RoomGrid 全部房间（1..40）的合规状态，单次持锁内取齐
func (c *Coordinator) RoomGrid() []models.RoomStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.RoomStatus, 0, models.RoomMax-models.RoomMin+1)
	for n := models.RoomMin; n <= models.RoomMax; n++ {
		out = append(out, c.roomStatusLocked(n))
	}
	return out
}

func (c *Coordinator) roomStatusLocked(roomNumber int) models.RoomStatus {
	return evaluator.RoomStatus(roomNumber, c.roster.ByRoom(roomNumber), c.logs.HasEntryForResident)
}

// ActiveSchedule 当前命中的点名窗口，没有则为 nil
func (c *Coordinator) ActiveSchedule() *models.CountSchedule {
	c.mu.Lock()
	schedules := make([]models.CountSchedule, len(c.settings.Schedules))
	copy(schedules, c.settings.Schedules)
	c.mu.Unlock()

	return evaluator.ActiveSchedule(schedules, c.now())
}

// ---- settings ----

// Settings 配置快照
func (c *Coordinator) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySettings(c.settings)
}

// UpdateSettings 整体替换点名窗口和设备端点（无部分更新）。
// 保留同ID设备的运行时状态（status/lastSync）；被移除设备的会话被断开。
// 已连接设备的 IP/端口不可编辑。
func (c *Coordinator) UpdateSettings(s models.Settings) error {
	for _, sch := range s.Schedules {
		if !validTimeOfDay(sch.StartTime) || !validTimeOfDay(sch.EndTime) {
			return fmt.Errorf("schedule %q: invalid time range %q-%q", sch.Name, sch.StartTime, sch.EndTime)
		}
	}

	c.mu.Lock()

	current := map[int]models.DeviceConfig{}
	for _, d := range c.settings.Devices {
		current[d.DeviceID] = d
	}

	for i := range s.Devices {
		d := &s.Devices[i]
		old, ok := current[d.DeviceID]
		if !ok {
			d.Status = models.DeviceDisconnected
			d.LastSync = nil
			continue
		}
		// 运行时字段由链路生命周期驱动，不接受编辑
		d.Status = old.Status
		d.LastSync = old.LastSync
		if old.Status == models.DeviceConnected {
			// 连接期间端点不可编辑
			d.IPAddress = old.IPAddress
			d.Port = old.Port
		}
	}

	kept := map[int]bool{}
	for _, d := range s.Devices {
		kept[d.DeviceID] = true
	}
	var orphaned []device.Link
	for id, link := range c.sessions {
		if !kept[id] {
			orphaned = append(orphaned, link)
			delete(c.sessions, id)
		}
	}

	c.settings = copySettings(s)
	c.mu.Unlock()

	// 会话断开在锁外进行：Disconnect 会等待在途事件投递完成
	for _, link := range orphaned {
		link.Disconnect()
	}

	c.logger.Info("settings saved",
		zap.Int("schedules", len(s.Schedules)),
		zap.Int("devices", len(s.Devices)),
	)
	return nil
}

// ---- device lifecycle ----

// ConnectDevice 为指定设备建立链路并开始接收打卡事件。
// 失败置 error 态、产生用户提示并返回错误；重试是新的用户动作。
func (c *Coordinator) ConnectDevice(ctx context.Context, deviceID int) error {
	c.mu.Lock()
	dev, ok := c.deviceByIDLocked(deviceID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("device %d not found", deviceID)
	}
	if _, exists := c.sessions[deviceID]; exists {
		c.mu.Unlock()
		return nil
	}
	link := c.newLink(dev, c.handleScanEvent)
	c.sessions[deviceID] = link
	c.setDeviceStatusLocked(deviceID, models.DeviceConnecting)
	c.mu.Unlock()

	if err := link.Connect(ctx); err != nil {
		c.mu.Lock()
		// 只清理仍属于本次连接的会话，避免动到并发重连建立的新会话
		if current, still := c.sessions[deviceID]; still && current == link {
			delete(c.sessions, deviceID)
			c.setDeviceStatusLocked(deviceID, models.DeviceError)
		}
		c.mu.Unlock()

		c.notify("error", fmt.Sprintf("Connection failed for %s (%s:%d)", dev.Name, dev.IPAddress, dev.Port), deviceID)
		c.logger.Error("device connection failed",
			zap.Int("device_id", deviceID),
			zap.String("addr", dev.IPAddress),
			zap.Error(err),
		)
		return err
	}

	c.mu.Lock()
	if current, still := c.sessions[deviceID]; !still || current != link {
		// 握手期间会话被移除（DisconnectDevice / 设备配置删除 / Close）：
		// 不得进入 connected，链路必须真正停掉
		c.mu.Unlock()
		link.Disconnect()
		return nil
	}
	c.setDeviceStatusLocked(deviceID, models.DeviceConnected)
	c.mu.Unlock()
	return nil
}

// DisconnectDevice 断开链路并回到 disconnected，幂等。
// 链路的 Disconnect 返回后不再有该设备的事件投递。
func (c *Coordinator) DisconnectDevice(deviceID int) error {
	c.mu.Lock()
	if _, ok := c.deviceByIDLocked(deviceID); !ok {
		c.mu.Unlock()
		return fmt.Errorf("device %d not found", deviceID)
	}
	link := c.sessions[deviceID]
	delete(c.sessions, deviceID)
	c.mu.Unlock()

	if link != nil {
		link.Disconnect()
	}

	c.mu.Lock()
	c.setDeviceStatusLocked(deviceID, models.DeviceDisconnected)
	c.mu.Unlock()
	return nil
}

// SyncDeviceData 批量拉取设备侧登记用户并刷新 lastSync。
// 拉取结果与名册的匹配留给外部协作方，这里只返回数量。
func (c *Coordinator) SyncDeviceData(ctx context.Context, deviceID int) (int, error) {
	c.mu.Lock()
	link, ok := c.sessions[deviceID]
	c.mu.Unlock()
	if !ok {
		c.notify("error", "Connect the device before syncing", deviceID)
		return 0, fmt.Errorf("%w: device %d", device.ErrNotConnected, deviceID)
	}

	users, err := link.FetchEnrolledUsers(ctx)
	if err != nil {
		c.notify("error", fmt.Sprintf("Data fetch failed for device %d", deviceID), deviceID)
		c.logger.Error("device sync failed",
			zap.Int("device_id", deviceID),
			zap.Error(err),
		)
		return 0, err
	}

	c.mu.Lock()
	now := c.now()
	for i := range c.settings.Devices {
		if c.settings.Devices[i].DeviceID == deviceID {
			c.settings.Devices[i].LastSync = &now
		}
	}
	c.mu.Unlock()

	c.notify("info", fmt.Sprintf("%d enrolled users fetched from device", len(users)), deviceID)
	return len(users), nil
}

// ---- notifications ----

// Notifications 提示快照（newest-first）
func (c *Coordinator) Notifications() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Notification, len(c.notes))
	copy(out, c.notes)
	return out
}

// Close 断开全部会话（进程收尾）
func (c *Coordinator) Close() {
	c.mu.Lock()
	links := make([]device.Link, 0, len(c.sessions))
	for id, link := range c.sessions {
		links = append(links, link)
		delete(c.sessions, id)
	}
	c.mu.Unlock()

	for _, link := range links {
		link.Disconnect()
	}
}

// handleScanEvent 链路事件监听方。
// 模拟捷径：按均匀随机选择住员入账，而不是按事件携带的外部用户ID匹配；
// 真实部署必须改为按 DeviceUserID 匹配（见 DESIGN.md）。
func (c *Coordinator) handleScanEvent(ev device.ScanEvent) {
	c.mu.Lock()

	residents := c.roster.List()
	if len(residents) == 0 {
		c.mu.Unlock()
		return
	}
	r := residents[c.rnd.Intn(len(residents))]

	verify := models.VerifyFingerprint
	if ev.VerifyMode == device.VerifyModeFace {
		verify = models.VerifyFace
	}
	entry := c.logs.Append(models.ScanLog{
		ResidentID: r.ResidentID,
		DeviceID:   ev.DeviceID,
		Timestamp:  c.now(),
		Status:     models.ScanStatusSuccess,
		VerifyType: verify,
	})
	c.mu.Unlock()

	c.logger.Debug("scan event recorded",
		zap.Int("device_id", ev.DeviceID),
		zap.String("resident_id", r.ResidentID),
		zap.String("verify_type", verify),
	)
	go c.publishScan(entry)
}

func (c *Coordinator) publishScan(entry models.ScanLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.publisher.PublishScan(ctx, entry); err != nil {
		c.logger.Error("failed to publish scan event",
			zap.String("log_id", entry.LogID),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) notify(level, message string, deviceID int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	note := models.Notification{
		NoteID:    uuid.NewString(),
		Level:     level,
		Message:   message,
		DeviceID:  deviceID,
		CreatedAt: c.now(),
	}
	c.notes = append([]models.Notification{note}, c.notes...)
	if len(c.notes) > maxNotifications {
		c.notes = c.notes[:maxNotifications]
	}
}

func (c *Coordinator) deviceByIDLocked(deviceID int) (models.DeviceConfig, bool) {
	for _, d := range c.settings.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return models.DeviceConfig{}, false
}

func (c *Coordinator) setDeviceStatusLocked(deviceID int, status string) {
	for i := range c.settings.Devices {
		if c.settings.Devices[i].DeviceID == deviceID {
			c.settings.Devices[i].Status = status
		}
	}
}

func copySettings(s models.Settings) models.Settings {
	out := models.Settings{
		Schedules: make([]models.CountSchedule, len(s.Schedules)),
		Devices:   make([]models.DeviceConfig, len(s.Devices)),
	}
	copy(out.Schedules, s.Schedules)
	copy(out.Devices, s.Devices)
	return out
}

func validTimeOfDay(v string) bool {
	_, err := time.Parse("15:04", v)
	return err == nil
}
