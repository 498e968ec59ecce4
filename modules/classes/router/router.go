package router

import (
	"classroom-api/core/middleware"
	"classroom-api/modules/classes/controller"

	"github.com/labstack/echo/v4"
)

type ClassRouter struct {
	ClassController *controller.ClassController
}

func NewClassRouter(classController *controller.ClassController) *ClassRouter {
	return &ClassRouter{ClassController: classController}
}

func (r *ClassRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	publicRoutes := v1.Group("/public/classes")
	publicRoutes.GET("/:id/calendar.ics", r.ClassController.ExportCalendar)

	classRoutes := v1.Group("/private/classes", mw.AuthMiddleware())
	classRoutes.GET("", r.ClassController.ListClasses)
	classRoutes.POST("", r.ClassController.CreateClass)
	classRoutes.GET("/:id", r.ClassController.GetClass)
	classRoutes.PUT("/:id", r.ClassController.UpdateClass)
	classRoutes.DELETE("/:id", r.ClassController.DeleteClass)
	classRoutes.POST("/:id/register", r.ClassController.Register)
	classRoutes.DELETE("/:id/register", r.ClassController.Unregister)
}
