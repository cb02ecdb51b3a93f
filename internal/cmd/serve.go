package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cds-ils/internal/routes"
	apperrors "cds-ils/pkg/errors"
	"cds-ils/pkg/middleware"
	"cds-ils/pkg/service"
	"cds-ils/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

Routes:
  GET  /ping                  health check, always 200 "OK"
  GET  /metrics               Prometheus metrics
  GET  /api/literature        literature search (?q=&page=&size=)
  GET  /api/literature/:pid   one literature record
  POST /api/sync/ldap         start a directory synchronization (bearer token with the sync scope)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = utils.NewValidator(validator.New())

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("panic while serving request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, apperrors.ErrInternalServer.Error(), err)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	return e
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	e := newEcho()
	e.Use(middleware.RequestLogger(logger.Named("http"), a.collector))
	e.Use(middleware.InjectLogger(logger))

	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)
	loggers := &routes.Loggers{
		Main:       logger,
		Auth:       logger.Named("auth"),
		Sync:       logger.Named("sync"),
		Literature: logger.Named("literature"),
	}
	routes.InitRouter(e, a.db, a.syncService, jwtSvc, a.registry, loggers, cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
