package controller

import (
	"classroom-api/core/constants"
	"classroom-api/core/controller"
	"classroom-api/core/errors"
	"classroom-api/core/utils"
	"classroom-api/modules/auth/service"
	"strings"

	"github.com/labstack/echo/v4"
)

type AuthController struct {
	controller.BaseController
	IdentityService service.IdentityServiceInterface
}

func NewAuthController(svc service.IdentityServiceInterface) *AuthController {
	return &AuthController{
		BaseController:  controller.NewBaseController(),
		IdentityService: svc,
	}
}

// Me returns the authenticated user's profile
// @Summary Current user
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.UserResponse
// @Failure 401 {object} errors.AppError
// @Router /private/auth/me [get]
func (a *AuthController) Me(c echo.Context) error {
	claims, ok := c.Get(constants.ContextTokenData).(*utils.TokenClaims)
	if !ok {
		return a.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	profile, appErr := a.IdentityService.GetProfile(c.Request().Context(), claims.UserID)
	if appErr != nil {
		return a.ErrorResponse(c, appErr)
	}
	return a.SuccessResponse(c, profile, "Success")
}

// Logout revokes the bearer token
// @Summary Logout
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} controller.SuccessResponse
// @Router /private/auth/logout [post]
func (a *AuthController) Logout(c echo.Context) error {
	token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
	if appErr := a.IdentityService.Logout(c.Request().Context(), token); appErr != nil {
		return a.ErrorResponse(c, appErr)
	}
	return a.SuccessResponse(c, nil, "Logged out")
}
