package routes

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cds-ils/internal/controllers"
	"cds-ils/internal/repositories"
	"cds-ils/internal/serializers"
	"cds-ils/pkg/config"
)

func runLiteratureRouter(api *echo.Group, dbConn *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) {
	literatureRepo := repositories.NewLiteratureRepository(dbConn, logger)
	serializer := serializers.NewJSONSerializer(
		serializers.NewLiteratureJSONSerializer(
			serializers.NewILSJSONSerializer(serializers.LiteratureLinks),
			cfg.EItems.EZProxyURL,
		),
	)
	literatureController := controllers.NewLiteratureController(literatureRepo, serializer, cfg.Server.RequestTimeout, logger)

	literatureGroup := api.Group("/literature")
	literatureGroup.GET("", literatureController.SearchLiterature)
	literatureGroup.GET("/:pid", literatureController.GetLiterature)
}
