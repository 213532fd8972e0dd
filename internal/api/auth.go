package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

type AuthHandler struct {
	userService *service.UserService
}

func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Signup creates an account --> POST /signup
func (h *AuthHandler) Signup(c echo.Context) error {
	in := service.SignupInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	session, err := h.userService.Signup(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// Login --> POST /login
func (h *AuthHandler) Login(c echo.Context) error {
	in := service.LoginInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	session, err := h.userService.Login(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// CheckSession returns the caller's profile --> GET /check_session
func (h *AuthHandler) CheckSession(c echo.Context) error {
	profile, err := h.userService.Profile(c.Request().Context(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}
