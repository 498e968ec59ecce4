package auth

import (
	"classroom-api/core/cache"
	"classroom-api/core/database"
	"classroom-api/core/middleware"
	"classroom-api/modules/auth/controller"
	"classroom-api/modules/auth/repository"
	"classroom-api/modules/auth/router"
	"classroom-api/modules/auth/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Echo, db database.Database, cache cache.Cache, mw *middleware.Middleware) *service.IdentityService {
	svc := GetService(db, cache)
	router.NewAuthRouter(controller.NewAuthController(svc)).Setup(e, mw)
	return svc
}

// GetService creates an IdentityService for use by other modules
func GetService(db database.Database, cache cache.Cache) *service.IdentityService {
	return service.NewIdentityService(repository.NewUserRepository(db), cache)
}
