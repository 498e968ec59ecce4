package middleware

import (
	"classroom-api/core/cache"
	"classroom-api/core/constants"
	"classroom-api/core/controller"
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	"classroom-api/core/utils"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type Middleware struct {
	cache cache.Cache
}

func NewMiddleware(cache cache.Cache) *Middleware {
	return &Middleware{cache: cache}
}

// AuthMiddleware validates the bearer token and stores its claims under
// constants.ContextTokenData.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return unauthorized(c, errors.ErrMissingAuthorizationHeader, "missing authorization header")
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				return unauthorized(c, errors.ErrInvalidTokenFormat, "invalid authorization header format")
			}

			if m.cache != nil {
				blacklisted, err := m.cache.IsTokenBlacklisted(c.Request().Context(), token)
				if err != nil {
					logger.Error("Middleware:AuthMiddleware:IsTokenBlacklisted:Error", "error", err)
					return unauthorized(c, errors.ErrUnauthorized, "unable to verify token")
				}
				if blacklisted {
					return unauthorized(c, errors.ErrUnauthorized, "token has been revoked")
				}
			}

			claims, err := utils.ValidateAndParseToken(token)
			if err != nil {
				if stdErrors.Is(err, jwt.ErrTokenExpired) {
					return unauthorized(c, errors.ErrTokenExpired, "token expired")
				}
				return unauthorized(c, errors.ErrUnauthorized, "invalid token")
			}

			c.Set(constants.ContextTokenData, claims)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, code errors.ErrorCode, message string) error {
	return c.JSON(http.StatusUnauthorized, controller.NewErrorBody(code, message))
}
