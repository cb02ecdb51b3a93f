package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cds-ils/internal/dto"
	"cds-ils/internal/sync"
	apperrors "cds-ils/pkg/errors"
	"cds-ils/pkg/utils"
)

type SyncController struct {
	syncService sync.ServiceInterface
	logger      *zap.Logger
}

func NewSyncController(service sync.ServiceInterface, logger *zap.Logger) *SyncController {
	return &SyncController{
		syncService: service,
		logger:      logger.Named("sync_controller"),
	}
}

// HandleLDAPSync starts a directory synchronization and answers 202 without
// waiting for it.
func (c *SyncController) HandleLDAPSync(ctx echo.Context) error {
	var req dto.SyncRequestDTO
	if err := ctx.Bind(&req); err != nil {
		c.logger.Warn("invalid sync request body", zap.Error(err))
		return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "invalid JSON body", err), c.logger)
	}
	if err := ctx.Validate(&req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	dryRun := req.Action == dto.SyncActionDelete && req.IsDryRun()
	if err := c.syncService.Start(ctx.Request().Context(), req.Action, dryRun); err != nil {
		c.logger.Warn("sync request refused", zap.String("action", req.Action), zap.Error(err))
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	body := dto.SyncAcceptedDTO{Action: req.Action, DryRun: dryRun}
	return utils.SuccessResponse(ctx, body, "synchronization started", http.StatusAccepted)
}
