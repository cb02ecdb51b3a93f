package routes

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cds-ils/internal/controllers"
	"cds-ils/internal/metrics"
	"cds-ils/internal/sync"
	"cds-ils/pkg/config"
	"cds-ils/pkg/middleware"
	"cds-ils/pkg/service"
)

type Loggers struct {
	Main       *zap.Logger
	Auth       *zap.Logger
	Sync       *zap.Logger
	Literature *zap.Logger
}

func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	syncService sync.ServiceInterface,
	jwtSvc service.JWTService,
	gatherer prometheus.Gatherer,
	loggers *Loggers,
	cfg *config.Config,
) {
	loggers.Main.Info("registering routes")

	e.GET("/ping", controllers.Ping)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)

	runLiteratureRouter(api, dbConn, cfg, loggers.Literature)
	runSyncRouter(api, syncService, authMW, loggers.Sync)

	loggers.Main.Info("routes registered")
}
