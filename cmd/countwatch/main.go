package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"countwatch/internal/config"
	"countwatch/internal/device"
	"countwatch/internal/httpapi"
	"countwatch/internal/logger"
	"countwatch/internal/models"
	"countwatch/internal/seed"
	"countwatch/internal/state"
	"countwatch/internal/store"
	"countwatch/internal/stream"
)

func main() {
	// 1. 加载配置（.env 可选）
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, "countwatch")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 初始化存储并灌入种子数据
	roster := store.NewRosterStore()
	logs := store.NewScanLogStore()

	seedRand := rand.New(rand.NewSource(cfg.Seed.RandSeed))
	if cfg.Seed.RandSeed == 0 {
		seedRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	seed.Residents(roster, cfg.Seed.Residents, seedRand, time.Now())
	settings := models.Settings{
		Schedules: seed.DefaultSchedules(),
		Devices:   seed.DefaultDevices(),
	}
	log.Info("seed data loaded",
		zap.Int("residents", roster.Len()),
		zap.Int("schedules", len(settings.Schedules)),
		zap.Int("devices", len(settings.Devices)),
	)

	// 4. 扫描事件外发（可选）
	var publisher stream.Publisher = stream.NopPublisher{}
	if cfg.Stream.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Stream.Addr,
			DB:   cfg.Stream.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, scan stream publishing disabled", zap.Error(err))
		} else {
			publisher = stream.NewRedisPublisher(client, cfg.Stream.Name)
			log.Info("scan stream publishing enabled",
				zap.String("addr", cfg.Stream.Addr),
				zap.String("stream", cfg.Stream.Name),
			)
		}
		cancel()
	}

	// 5. 创建协调器（链路传输按配置选择）
	coord := state.New(roster, logs, settings, state.Options{
		DuplicateWindow: cfg.Count.DuplicateWindow,
		Publisher:       publisher,
		LinkFactory:     linkFactory(cfg, log),
	}, log)
	defer coord.Close()

	// 6. 上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 7. 点名窗口轮询
	watcher := state.NewScheduleWatcher(coord, cfg.Count.SchedulePoll, log)
	go func() {
		if err := watcher.Start(ctx); err != nil {
			log.Error("schedule watcher stopped", zap.Error(err))
		}
	}()

	// 8. HTTP 服务
	router := httpapi.NewRouter(log)
	router.RegisterRoutes(
		httpapi.NewResidentHandler(coord, log),
		httpapi.NewMonitorHandler(coord, log),
		httpapi.NewSettingsHandler(coord, log),
		httpapi.NewDeviceHandler(coord, log),
		httpapi.NewReportHandler(coord, log),
	)
	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 9. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErrChan:
		log.Fatal("http server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	cancel()

	log.Info("countwatch stopped")
}

// linkFactory 按配置选择链路传输：sim（进程内模拟）或 mqtt（真实扫描仪桥接）
func linkFactory(cfg *config.Config, log *zap.Logger) state.LinkFactory {
	if cfg.Device.Transport == "mqtt" {
		return func(dev models.DeviceConfig, handler device.EventHandler) device.Link {
			return device.NewMQTTLink(dev.DeviceID, device.MQTTOptions{
				Broker:   cfg.Device.MQTT.Broker,
				ClientID: cfg.Device.MQTT.ClientID,
				Username: cfg.Device.MQTT.Username,
				Password: cfg.Device.MQTT.Password,
			}, handler, log)
		}
	}
	return func(dev models.DeviceConfig, handler device.EventHandler) device.Link {
		return device.NewSimLink(dev.DeviceID, dev.IPAddress, dev.Port, device.SimOptions{
			ConnectDelay: cfg.Device.Sim.ConnectDelay,
			FetchDelay:   cfg.Device.Sim.FetchDelay,
			TickInterval: cfg.Device.Sim.TickInterval,
		}, handler, log)
	}
}
