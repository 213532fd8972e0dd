package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

const msgReadingNotFound = "Reading not found"

type ReadingHandler struct {
	readingService *service.ReadingService
}

func NewReadingHandler(readingService *service.ReadingService) *ReadingHandler {
	return &ReadingHandler{readingService: readingService}
}

// List --> GET /readings
func (h *ReadingHandler) List(c echo.Context) error {
	readings, err := h.readingService.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, readings)
}

// Create --> POST /readings
func (h *ReadingHandler) Create(c echo.Context) error {
	in := service.ReadingInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	reading, err := h.readingService.Create(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, reading)
}

// Get --> GET /readings/:id
func (h *ReadingHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, msgReadingNotFound)
	}

	reading, err := h.readingService.Get(c.Request().Context(), currentUser(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

// Update --> PATCH /readings/:id
func (h *ReadingHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, msgReadingNotFound)
	}

	in := service.ReadingInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	reading, err := h.readingService.Update(c.Request().Context(), currentUser(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reading)
}

// Delete --> DELETE /readings/:id
func (h *ReadingHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, msgReadingNotFound)
	}

	if err := h.readingService.Delete(c.Request().Context(), currentUser(c), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// LinkMeal --> POST /readings/:id/meals
func (h *ReadingHandler) LinkMeal(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, msgReadingNotFound)
	}

	in := service.LinkInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	link, err := h.readingService.LinkMeal(c.Request().Context(), currentUser(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "linked",
		"reading_id":   link.ReadingID,
		"meal_id":      link.MealID,
		"carbs_amount": link.CarbsAmount,
	})
}

// UnlinkMeal --> DELETE /readings/:id/meals?meal_id=
func (h *ReadingHandler) UnlinkMeal(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, msgReadingNotFound)
	}

	// Missing or malformed is passed on as zero and rejected after the ownership check.
	mealID, _ := strconv.ParseInt(c.QueryParam("meal_id"), 10, 64)

	if err := h.readingService.UnlinkMeal(c.Request().Context(), currentUser(c), id, mealID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
