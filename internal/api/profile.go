package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

type ProfileHandler struct {
	userService *service.UserService
}

func NewProfileHandler(userService *service.UserService) *ProfileHandler {
	return &ProfileHandler{userService: userService}
}

// Update --> PATCH /me
func (h *ProfileHandler) Update(c echo.Context) error {
	in := service.ProfileInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	user, err := h.userService.UpdateProfile(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// BMI --> GET /me/bmi
func (h *ProfileHandler) BMI(c echo.Context) error {
	bmi, err := h.userService.BMI(c.Request().Context(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bmi)
}
