package controllers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cds-ils/internal/repositories"
	"cds-ils/internal/serializers"
	"cds-ils/pkg/utils"
)

type LiteratureController struct {
	literatureRepo repositories.LiteratureRepositoryInterface
	serializer     *serializers.JSONSerializer
	timeout        time.Duration
	logger         *zap.Logger
}

func NewLiteratureController(
	literatureRepo repositories.LiteratureRepositoryInterface,
	serializer *serializers.JSONSerializer,
	timeout time.Duration,
	logger *zap.Logger,
) *LiteratureController {
	return &LiteratureController{
		literatureRepo: literatureRepo,
		serializer:     serializer,
		timeout:        timeout,
		logger:         logger.Named("literature_controller"),
	}
}

func (c *LiteratureController) GetLiterature(ctx echo.Context) error {
	reqCtx, cancel := utils.ContextWithTimeout(ctx, c.timeout)
	defer cancel()

	rec, err := c.literatureRepo.FindByPID(reqCtx, ctx.Param("pid"))
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	body, err := c.serializer.SerializeRecord(rec)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.JSONBlob(http.StatusOK, body)
}

func (c *LiteratureController) SearchLiterature(ctx echo.Context) error {
	reqCtx, cancel := utils.ContextWithTimeout(ctx, c.timeout)
	defer cancel()

	limit, offset, _ := utils.ParsePaginationParams(ctx.QueryParams())
	records, total, err := c.literatureRepo.Search(reqCtx, ctx.QueryParam("q"), limit, offset)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	body, err := c.serializer.SerializeSearch(records, total, ctx.Request().URL.RequestURI())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.JSONBlob(http.StatusOK, body)
}
