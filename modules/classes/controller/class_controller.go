package controller

import (
	"classroom-api/core/constants"
	"classroom-api/core/controller"
	"classroom-api/core/errors"
	"classroom-api/core/params"
	"classroom-api/core/utils"
	"classroom-api/modules/classes/dto"
	"classroom-api/modules/classes/service"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ClassController struct {
	controller.BaseController
	ClassService service.ClassServiceInterface
}

func NewClassController(svc service.ClassServiceInterface) *ClassController {
	return &ClassController{
		BaseController: controller.NewBaseController(),
		ClassService:   svc,
	}
}

func (c *ClassController) getUserIDFromContext(ctx echo.Context) (uuid.UUID, bool) {
	claims, ok := ctx.Get(constants.ContextTokenData).(*utils.TokenClaims)
	if !ok || claims == nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

func (c *ClassController) classID(ctx echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return uuid.Nil, c.BadRequest(errors.ErrInvalidInput, "Invalid class id")
	}
	return id, nil
}

func headerFlag(ctx echo.Context, name string) bool {
	return strings.EqualFold(strings.TrimSpace(ctx.Request().Header.Get(name)), "true")
}

// parseStartDate accepts a date or an RFC 3339 timestamp.
func parseStartDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// ListClasses handles GET /classes
// @Summary List upcoming classes
// @Tags Classes
// @Security BearerAuth
// @Produce json
// @Param start_date query string false "YYYY-MM-DD or RFC 3339; defaults to now"
// @Param page_number query int false "Page number"
// @Param page_size query int false "Page size"
// @Param search query string false "Title filter"
// @Success 200 {object} dto.PaginatedClassResponse
// @Router /private/classes [get]
func (c *ClassController) ListClasses(ctx echo.Context) error {
	from, err := parseStartDate(ctx.QueryParam("start_date"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "start_date must be YYYY-MM-DD or RFC 3339")
	}

	result, appErr := c.ClassService.ListUpcoming(ctx.Request().Context(), from, params.NewQueryParams(ctx))
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Success")
}

// CreateClass handles POST /classes
// @Summary Create a class or a recurring series
// @Description A body with recurrence creates the series and one class per occurrence.
// @Tags Classes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.ClassRequest true "Class"
// @Success 201 {object} dto.SeriesResponse
// @Failure 400 {object} errors.AppError
// @Failure 502 {object} errors.AppError
// @Router /private/classes [post]
func (c *ClassController) CreateClass(ctx echo.Context) error {
	userID, ok := c.getUserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	var req dto.ClassRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return c.ValidationErrorResponse(ctx, err)
	}

	if req.Recurrence != nil {
		result, appErr := c.ClassService.CreateSeries(ctx.Request().Context(), &req, req.Recurrence.ToRule(), userID)
		if appErr != nil {
			return c.ErrorResponse(ctx, appErr)
		}
		return c.CreatedResponse(ctx, result, "Recurring class created successfully")
	}

	result, appErr := c.ClassService.CreateSingle(ctx.Request().Context(), &req, userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.CreatedResponse(ctx, result, "Class created successfully")
}

// GetClass handles GET /classes/:id
// @Summary Get a class
// @Tags Classes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} dto.ClassResponse
// @Failure 404 {object} errors.AppError
// @Router /private/classes/{id} [get]
func (c *ClassController) GetClass(ctx echo.Context) error {
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	result, appErr := c.ClassService.Get(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Success")
}

// UpdateClass handles PUT /classes/:id
// @Summary Update a class
// @Description With header update-all: true the whole series is regenerated.
// @Tags Classes
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param update-all header string false "true to update every class in the series"
// @Param request body dto.UpdateClassRequest true "Changed fields"
// @Success 200 {object} dto.ClassResponse
// @Failure 403 {object} errors.AppError
// @Router /private/classes/{id} [put]
func (c *ClassController) UpdateClass(ctx echo.Context) error {
	userID, ok := c.getUserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	var req dto.UpdateClassRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := ctx.Validate(&req); err != nil {
		return c.ValidationErrorResponse(ctx, err)
	}

	if headerFlag(ctx, constants.HeaderUpdateAll) {
		result, appErr := c.ClassService.UpdateSeries(ctx.Request().Context(), id, &req, userID)
		if appErr != nil {
			return c.ErrorResponse(ctx, appErr)
		}
		return c.SuccessResponse(ctx, result, "Recurring class updated successfully")
	}

	result, appErr := c.ClassService.UpdateSingle(ctx.Request().Context(), id, &req, userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Class updated successfully")
}

// DeleteClass handles DELETE /classes/:id
// @Summary Delete a class
// @Description With header delete-all: true the whole series is deleted.
// @Tags Classes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Class ID"
// @Param delete-all header string false "true to delete every class in the series"
// @Success 200 {object} controller.SuccessResponse
// @Failure 403 {object} errors.AppError
// @Router /private/classes/{id} [delete]
func (c *ClassController) DeleteClass(ctx echo.Context) error {
	userID, ok := c.getUserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	if headerFlag(ctx, constants.HeaderDeleteAll) {
		if appErr := c.ClassService.DeleteSeries(ctx.Request().Context(), id, userID); appErr != nil {
			return c.ErrorResponse(ctx, appErr)
		}
		return c.SuccessResponse(ctx, nil, "Recurring class deleted successfully")
	}

	if appErr := c.ClassService.DeleteSingle(ctx.Request().Context(), id, userID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, nil, "Class deleted successfully")
}

// Register handles POST /classes/:id/register
// @Summary Register for a class
// @Tags Classes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} dto.ClassResponse
// @Failure 409 {object} errors.AppError
// @Router /private/classes/{id}/register [post]
func (c *ClassController) Register(ctx echo.Context) error {
	userID, ok := c.getUserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	result, appErr := c.ClassService.Register(ctx.Request().Context(), id, userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, result, "Registered successfully")
}

// Unregister handles DELETE /classes/:id/register
// @Summary Cancel a class registration
// @Tags Classes
// @Security BearerAuth
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} controller.SuccessResponse
// @Router /private/classes/{id}/register [delete]
func (c *ClassController) Unregister(ctx echo.Context) error {
	userID, ok := c.getUserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	if appErr := c.ClassService.Unregister(ctx.Request().Context(), id, userID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, nil, "Unregistered successfully")
}

// ExportCalendar handles GET /public/classes/:id/calendar.ics
// @Summary Download a class calendar file
// @Tags Classes
// @Produce text/calendar
// @Param id path string true "Class ID"
// @Success 200 {string} string
// @Router /public/classes/{id}/calendar.ics [get]
func (c *ClassController) ExportCalendar(ctx echo.Context) error {
	id, err := c.classID(ctx)
	if err != nil {
		return err
	}

	body, appErr := c.ClassService.ExportICS(ctx.Request().Context(), id)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="class-`+id.String()+`.ics"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", body)
}
