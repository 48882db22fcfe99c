package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"paint-mixer/internal/api"
	"paint-mixer/internal/core/ai/queue"
	"paint-mixer/internal/core/ai/service"
	"paint-mixer/internal/core/mix"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/infrastructure/store"
	"paint-mixer/internal/infrastructure/tracing"
	"paint-mixer/internal/pkg/common"
)

func main() {
	// 載入設定（.env 由 LoadConfig 讀取）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(common.LoggerOptions{
		Level:   cfg.LogLevel,
		Dir:     cfg.LogDir,
		Service: cfg.App.Name,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", cfg.AI.Model),
		zap.String("ai_key_preview", common.MaskSecret(cfg.AI.APIKey, "not-set")),
		zap.String("store_driver", cfg.Store.Driver),
	)

	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.App, cfg.Tracing)
	if err != nil {
		common.LogFatal("Failed to initialize tracing", zap.Error(err))
	}

	paints, err := store.New(ctx, cfg.Store)
	if err != nil {
		common.LogFatal("Failed to initialize palette store", zap.Error(err), zap.String("driver", cfg.Store.Driver))
	}

	// provider 延遲建構；設定錯誤只影響 /mixes 請求
	providers := service.NewFactory()
	gate := queue.NewManager(cfg.Queue.Workers, cfg.Queue.MaxSize)
	mixService := mix.NewService(paints, providers, mix.WithGate(gate))

	router := api.SetupRouter(cfg, api.Dependencies{
		Mix:   mixService,
		Store: paints,
		Queue: gate,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}
	gate.Close()
	if err := providers.Shutdown(); err != nil {
		common.LogWarn("Failed to close AI provider", zap.Error(err))
	}
	if err := paints.Close(); err != nil {
		common.LogWarn("Failed to close palette store", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		common.LogWarn("Failed to flush traces", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
