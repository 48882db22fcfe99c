package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"paint-mixer/internal/api/handlers/health"
	mixHandler "paint-mixer/internal/api/handlers/mix"
	"paint-mixer/internal/api/middleware"
	"paint-mixer/internal/infrastructure/config"
	"paint-mixer/internal/pkg/common"
)

// Dependencies 路由需要的服務
type Dependencies struct {
	Mix   mixHandler.Service
	Store health.Pinger
	Queue health.QueueReporter
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(otelgin.Middleware(cfg.App.Name))
	router.Use(middleware.Logger())
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	}

	health.NewHandler(cfg.App.Version, cfg.Store.Driver, deps.Store, deps.Queue).Register(router)

	api := router.Group("/api/v1")
	mixes := api.Group("/mixes")
	mixes.Use(middleware.Auth(cfg.Auth.JWTSecret))
	if cfg.RateLimit.Enabled {
		mixes.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	mixes.Use(middleware.NewDeduplicator(cfg.DedupWindow).Handler())
	mixHandler.NewHandler(deps.Mix).Register(mixes)

	common.LogInfo("Router setup completed",
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
		zap.Strings("cors_origins", cfg.Server.CORSOrigins),
	)

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
