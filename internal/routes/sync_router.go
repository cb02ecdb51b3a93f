package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cds-ils/internal/controllers"
	"cds-ils/internal/sync"
	"cds-ils/pkg/contextkeys"
	"cds-ils/pkg/middleware"
)

// POST /api/sync/ldap needs a token carrying the sync scope.
func runSyncRouter(api *echo.Group, syncService sync.ServiceInterface, authMW *middleware.AuthMiddleware, logger *zap.Logger) {
	syncController := controllers.NewSyncController(syncService, logger)

	syncGroup := api.Group("/sync", authMW.Auth, authMW.RequireScope(contextkeys.SyncScope))
	syncGroup.POST("/ldap", syncController.HandleLDAPSync)
}
