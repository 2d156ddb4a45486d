package risk

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wardlight/wardlight/internal/platform/auth"
	"github.com/wardlight/wardlight/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	g.POST("/risk-evaluations", h.EvaluateRisk)
	g.GET("/risk-evaluations/:id", h.GetSnapshot)
	g.GET("/risk-evaluations", h.ListSnapshots)
}

func (h *Handler) EvaluateRisk(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	snap, err := h.svc.Evaluate(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrMissingPatientID) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, snap)
}

func (h *Handler) GetSnapshot(c echo.Context) error {
	snap, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "risk snapshot not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) ListSnapshots(c echo.Context) error {
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id query parameter is required")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
