package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/duffymelancholic/diabetes-management-app/internal/service"
)

type MedicationHandler struct {
	medicationService *service.MedicationService
}

func NewMedicationHandler(medicationService *service.MedicationService) *MedicationHandler {
	return &MedicationHandler{medicationService: medicationService}
}

// List --> GET /medications
func (h *MedicationHandler) List(c echo.Context) error {
	meds, err := h.medicationService.List(c.Request().Context(), currentUser(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, meds)
}

// Create --> POST /medications
func (h *MedicationHandler) Create(c echo.Context) error {
	in := service.MedicationInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	med, err := h.medicationService.Create(c.Request().Context(), currentUser(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, med)
}

// Update --> PATCH /medications/:id
func (h *MedicationHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return fail(c, http.StatusNotFound, "Medication not found")
	}

	in := service.MedicationInput{}
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, msgInvalidPayload)
	}

	med, err := h.medicationService.Update(c.Request().Context(), currentUser(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, med)
}
