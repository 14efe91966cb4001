package config

import (
	"os"
	"strconv"
	"time"
)

// Config 点名合规服务配置
type Config struct {
	HTTP struct {
		Addr string // 监听地址，如 ":8080"
	}

	Seed struct {
		Residents int   // 启动时生成的住员数量
		RandSeed  int64 // 0 表示使用时间种子
	}

	// 设备链路配置
	Device struct {
		// transport: "sim"（进程内模拟）或 "mqtt"（真实扫描仪经MQTT桥接）
		Transport string

		// 模拟链路时序（毫秒）
		Sim struct {
			ConnectDelay time.Duration // 连接握手模拟延迟，默认 1500ms
			FetchDelay   time.Duration // 批量拉取模拟延迟，默认 2000ms
			TickInterval time.Duration // 合成事件节拍，默认 3000ms
		}

		// MQTT 链路（Transport == "mqtt" 时生效）
		MQTT struct {
			Broker   string // 如 "tcp://localhost:1883"
			ClientID string
			Username string
			Password string
		}
	}

	Count struct {
		// DuplicateWindow 同一住员重复打卡抑制窗口，默认 60 分钟
		DuplicateWindow time.Duration
		// SchedulePoll 点名窗口轮询间隔，默认 10 秒
		SchedulePoll time.Duration
	}

	// Redis Streams 扫描事件外发（可选）
	Stream struct {
		Enabled bool
		Addr    string
		DB      int
		Name    string // 流名称，如 "scan:events:stream"
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量 + 默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Seed.Residents = getEnvAsInt("SEED_RESIDENTS", 200)
	cfg.Seed.RandSeed = int64(getEnvAsInt("SEED_RAND_SEED", 0))

	cfg.Device.Transport = getEnv("DEVICE_TRANSPORT", "sim")
	cfg.Device.Sim.ConnectDelay = getEnvAsMillis("SIM_CONNECT_DELAY_MS", 1500)
	cfg.Device.Sim.FetchDelay = getEnvAsMillis("SIM_FETCH_DELAY_MS", 2000)
	cfg.Device.Sim.TickInterval = getEnvAsMillis("SIM_TICK_INTERVAL_MS", 3000)

	cfg.Device.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.Device.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "countwatch")
	cfg.Device.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.Device.MQTT.Password = getEnv("MQTT_PASSWORD", "")

	cfg.Count.DuplicateWindow = time.Duration(getEnvAsInt("COUNT_DUPLICATE_WINDOW_MIN", 60)) * time.Minute
	cfg.Count.SchedulePoll = time.Duration(getEnvAsInt("COUNT_SCHEDULE_POLL_SEC", 10)) * time.Second

	cfg.Stream.Enabled = getEnv("SCAN_STREAM_ENABLED", "false") == "true"
	cfg.Stream.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Stream.DB = getEnvAsInt("REDIS_DB", 0)
	cfg.Stream.Name = getEnv("SCAN_STREAM_NAME", "scan:events:stream")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	ms := getEnvAsInt(key, defaultValue)
	if ms <= 0 {
		ms = defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
