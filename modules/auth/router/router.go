package router

import (
	"classroom-api/core/middleware"
	"classroom-api/modules/auth/controller"

	"github.com/labstack/echo/v4"
)

type AuthRouter struct {
	AuthController *controller.AuthController
}

func NewAuthRouter(authController *controller.AuthController) *AuthRouter {
	return &AuthRouter{AuthController: authController}
}

func (r *AuthRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")
	authRoutes := v1.Group("/private/auth", mw.AuthMiddleware())

	authRoutes.GET("/me", r.AuthController.Me)
	authRoutes.POST("/logout", r.AuthController.Logout)
}
