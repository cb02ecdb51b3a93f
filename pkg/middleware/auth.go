package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cds-ils/pkg/contextkeys"
	apperrors "cds-ils/pkg/errors"
	"cds-ils/pkg/service"
	"cds-ils/pkg/utils"
)

type AuthMiddleware struct {
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		logger:     logger.Named("auth"),
	}
}

// Auth accepts "Authorization: Bearer <token>" and stores the token subject
// and scope in the request context.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			m.logger.Warn("empty authorization header")
			return utils.ErrorResponse(c, apperrors.ErrEmptyAuthHeader, m.logger)
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.logger.Warn("malformed authorization header")
			return utils.ErrorResponse(c, apperrors.ErrInvalidAuthHeader, m.logger)
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token rejected", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}

		ctx := context.WithValue(c.Request().Context(), contextkeys.SubjectKey, claims.Subject)
		ctx = context.WithValue(ctx, contextkeys.ScopeKey, claims.Scope)
		c.SetRequest(c.Request().WithContext(ctx))

		return next(c)
	}
}

// RequireScope lets the request through only when Auth stored scope.
func (m *AuthMiddleware) RequireScope(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got, _ := c.Request().Context().Value(contextkeys.ScopeKey).(string)
			if got != scope {
				m.logger.Warn("token scope rejected", zap.String("scope", got), zap.String("required", scope))
				return utils.ErrorResponse(c, apperrors.ErrUnauthorized, m.logger)
			}
			return next(c)
		}
	}
}
