package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-raid-room/internal"
)

func main() {
	// 解析命令行參數
	var (
		configPath = flag.String("config", "", "配置檔路徑 (YAML)")
		port       = flag.Int("port", 0, "服務器端口（覆蓋配置檔）")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg := internal.DefaultConfig()
	if *configPath != "" {
		loaded, err := internal.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Presence：有 Redis 就用 Redis，否則單機記憶體
	var presence internal.Presence = internal.NewMemoryPresence()
	if cfg.Redis.Addr != "" {
		rdb, err := internal.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("連接 Redis 失敗", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		presence = internal.NewRedisPresence(rdb, cfg.Redis.PresenceTTL)
		logger.Info("使用 Redis Presence", "addr", cfg.Redis.Addr)
	}

	// 創建 WebSocket Hub（同時是核心的廣播閘道）
	hub := internal.NewWebSocketHub(presence, internal.NewTokenVerifier(cfg.Auth), cfg.WebSocket, logger)

	gateway := internal.FanoutGateway{hub}
	if cfg.NATS.URL != "" {
		nc, err := internal.ConnectNATS(cfg.NATS.URL, logger)
		if err != nil {
			logger.Error("連接 NATS 失敗", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		gateway = append(gateway, internal.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix, logger))
		logger.Info("房間事件轉發到 NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	// 核心元件
	codes := internal.NewInviteCodes()
	registry := internal.NewRegistry(codes, logger)
	timers := internal.NewTimerManager(cfg.Game.GameDuration, logger)
	matchmaker := internal.NewMatchmaker(registry, codes, gateway, cfg.Game, logger)
	lifecycle := internal.NewLifecycleController(registry, timers, gateway, cfg.Game, logger)
	lifecycle.Attach(matchmaker)
	hub.Attach(matchmaker, lifecycle)
	registry.OnRemove(hub.DetachRoom)

	go lifecycle.Run(ctx)

	// 創建 HTTP 處理器
	handler := internal.NewHandler(registry, hub, logger)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// 啟動服務器
	go func() {
		logger.Info("突襲房間服務器啟動",
			"port", cfg.Server.Port,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format,
			"game_duration", cfg.Game.GameDuration)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	<-ctx.Done()

	logger.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 停止計時器
	timers.Stop()

	// 停止 WebSocket Hub
	hub.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
