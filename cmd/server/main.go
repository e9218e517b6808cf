package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/lobby-linker/internal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 讀取配置：缺少 BOT_TOKEN 時在啟動任何元件前結束
	cfg, err := internal.LoadConfig()
	if err != nil {
		return err
	}

	// 設置日誌
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 核心：槽位 → 控制器
	manager := internal.NewManager(logger)
	controller := internal.NewController(manager, internal.SystemClock, logger)

	// 呈現層
	bot, err := internal.NewBot(cfg.BotToken, cfg.GuildID, controller, logger)
	if err != nil {
		return err
	}

	// 清掃排程：ready 之後才啟動
	scheduler := internal.NewScheduler(cfg.SweepInterval, func(ctx context.Context) {
		controller.Sweep(ctx, bot.Sink())
	}, logger)
	bot.OnReady(func(ctx context.Context) {
		if !scheduler.Start(ctx) {
			logger.Debug("清掃排程已在運行，略過")
		}
	})

	// keep-alive HTTP 服務
	wsHub := internal.NewWebSocketHub(manager, logger)
	handler := internal.NewHandler(manager, internal.SystemClock, logger)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws/lobby", wsHub.ServeWS)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// keep-alive 失敗不影響 bot 本身
	if ln, err := internal.Listen(cfg.Ports(), logger); err != nil {
		logger.Error("keep-alive 服務啟動失敗", "error", err)
	} else {
		go func() {
			logger.Info("keep-alive 服務啟動", "addr", ln.Addr().String())
			if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("keep-alive 服務異常結束", "error", err)
			}
		}()
	}

	if err := bot.Open(ctx); err != nil {
		return err
	}

	logger.Info("LobbyLinker 已啟動",
		"guild_id", cfg.GuildID,
		"sweep_interval", cfg.SweepInterval,
		"log_level", cfg.LogLevel)

	// 等待中斷信號
	<-ctx.Done()
	logger.Info("收到關閉信號，開始優雅關閉...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop()

	if err := bot.Close(); err != nil {
		logger.Error("關閉 Discord 連線失敗", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	wsHub.Stop()

	logger.Info("服務器已關閉")
	return nil
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
