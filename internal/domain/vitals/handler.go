package vitals

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medops/triage/internal/domain/triage"
	"github.com/medops/triage/internal/platform/auth"
	"github.com/medops/triage/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/vitals", auth.RequireRole("admin", "physician", "nurse"))
	g.GET("", h.List)
	g.GET("/latest", h.Latest)
	g.POST("", h.Record)
}

func httpError(err error) error {
	var ve *triage.ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Record(c echo.Context) error {
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.RecordVitals(c.Request().Context(), req.PatientRef, req.Reading, SourceAPI)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) List(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	recs, total, err := h.svc.ListByPatient(c.Request().Context(), c.QueryParam("patient_ref"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pg))
}

func (h *Handler) Latest(c echo.Context) error {
	rec, err := h.svc.Latest(c.Request().Context(), c.QueryParam("patient_ref"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}
