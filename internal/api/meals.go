package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

type MealHandler struct {
	mealService *service.MealService
}

func NewMealHandler(mealService *service.MealService) *MealHandler {
	return &MealHandler{mealService: mealService}
}

// List --> GET /meals
func (h *MealHandler) List(c echo.Context) error {
	meals, err := h.mealService.List(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, meals)
}

// Create --> POST /meals
func (h *MealHandler) Create(c echo.Context) error {
	in := service.MealInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	meal, err := h.mealService.Create(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, meal)
}
