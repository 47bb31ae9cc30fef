package routes

import (
	"context"

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

// LoginDependencies collects everything the login service routes need.
type LoginDependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Auth     *usecase.AuthService
	Users    *usecase.UserService
	Database *pgxpool.Pool
	Cache    *redisinfra.Client
	Degraded func() bool
}

// loginPublicPaths skip bearer token validation on the login service.
var loginPublicPaths = []string{
	"/api/login",
	"/api/refresh",
	"/health",
	"/health/basic",
	"/health/database",
	"/metrics",
}

// RegisterLogin wires the login service engine: credential endpoints, the
// identity endpoint, and account administration.
func RegisterLogin(deps LoginDependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(deps.Logger))
	engine.Use(middleware.CORS(deps.Config.CORS.Origins))

	if metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Subsystem: "login"}); err == nil {
		engine.Use(metrics.Handler())
	} else {
		deps.Logger.Warn("metrics middleware disabled", zap.Error(err))
	}

	health := handlers.NewHealthHandler("login",
		databaseChecker(deps.Database),
		cacheChecker(deps.Cache),
		deps.Degraded,
	)
	engine.GET("/health/basic", health.Basic)
	engine.GET("/health", health.Full)
	engine.GET("/health/database", health.Database)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.Use(middleware.Auth(deps.Auth, loginPublicPaths, deps.Logger))

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Logger)

	api := engine.Group("/api")
	{
		api.POST("/login", authHandler.Login)
		api.POST("/refresh", authHandler.Refresh)
		api.GET("/me", authHandler.Me)

		users := api.Group("/users", handlers.RequireAdmin())
		{
			users.GET("", userHandler.List)
			users.POST("", userHandler.Create)
			users.GET("/:id", userHandler.Get)
			users.PUT("/:id", userHandler.Update)
			users.PATCH("/:id/active", userHandler.SetActive)
			users.PATCH("/:id/password", userHandler.ChangePassword)
			users.PUT("/:id/grants", userHandler.ReplaceGrants)
		}
	}

	return engine
}

func databaseChecker(pool *pgxpool.Pool) handlers.DependencyChecker {
	if pool == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func cacheChecker(client *redisinfra.Client) handlers.DependencyChecker {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.HealthCheck(ctx)
	}
}
