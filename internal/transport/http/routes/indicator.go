package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pollak-belso-projektek/indicator-backend/internal/infra/config"
	redisinfra "github.com/pollak-belso-projektek/indicator-backend/internal/infra/redis"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/handlers"
	"github.com/pollak-belso-projektek/indicator-backend/internal/transport/http/middleware"
	"github.com/pollak-belso-projektek/indicator-backend/internal/usecase"
)

// IndicatorDependencies collects everything the data service routes need.
// Auth is the remote client: tokens verify locally, refresh goes to login.
type IndicatorDependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Auth     middleware.Authenticator
	Tables   *usecase.TableService
	Records  *usecase.RecordService
	Database *pgxpool.Pool
	Cache    *redisinfra.Client
	Degraded func() bool
}

// indicatorPublicPaths skip bearer token validation on the data service.
var indicatorPublicPaths = []string{
	"/health",
	"/health/basic",
	"/health/database",
	"/metrics",
}

// RegisterIndicator wires the data service engine: the table registry plus
// generic record access gated by per-table grants.
func RegisterIndicator(deps IndicatorDependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(deps.Logger))
	engine.Use(middleware.CORS(deps.Config.CORS.Origins))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Subsystem: "indicator"}); err == nil {
		engine.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("metrics middleware disabled", zap.Error(err))
	}

	health := handlers.NewHealthHandler("indicator",
		databaseChecker(deps.Database),
		cacheChecker(deps.Cache),
		deps.Degraded,
	)
	engine.GET("/health/basic", health.Basic)
	engine.GET("/health", health.Full)
	engine.GET("/health/database", health.Database)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.Use(middleware.Auth(deps.Auth, indicatorPublicPaths, deps.Logger))
	engine.Use(middleware.EndpointAccess())

	tableHandler := handlers.NewTableHandler(deps.Tables)
	recordHandler := handlers.NewRecordHandler(deps.Records)

	api := engine.Group("/api")
	{
		api.GET("/tablelist", tableHandler.List)
		api.GET("/tablelist/:name", tableHandler.Get)
		api.POST("/tablelist", tableHandler.Create)
		api.PUT("/tablelist/:id", tableHandler.Update)

		api.GET("/:table", recordHandler.List)
		api.POST("/:table", recordHandler.Create)
		api.GET("/:table/:id", recordHandler.Get)
		api.PUT("/:table/:id", recordHandler.Update)
		api.DELETE("/:table/:id", recordHandler.Delete)
	}

	return engine
}
