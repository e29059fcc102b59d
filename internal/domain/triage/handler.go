package triage

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medops/triage/internal/platform/auth"
	"github.com/medops/triage/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, nurse
	readGroup := api.Group("/triage", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/queue", h.GetQueue)
	readGroup.GET("/queue/stats", h.GetStats)
	readGroup.GET("/cases", h.ListCases)
	readGroup.GET("/cases/export", h.ExportQueue)
	readGroup.GET("/cases/:id", h.GetCase)
	readGroup.GET("/cases/:id/status-history", h.GetStatusHistory)

	// Write endpoints – admin, physician, nurse
	writeGroup := api.Group("/triage", auth.RequireRole("admin", "physician", "nurse"))
	writeGroup.POST("/cases", h.SubmitCase)
	writeGroup.PUT("/cases/:id", h.ReassessCase)
	writeGroup.PATCH("/cases/:id/status", h.UpdateStatus)
	writeGroup.POST("/cases/:id/notes", h.AddNote)
	writeGroup.DELETE("/cases/:id", h.RemoveCase)

	// Stateless scoring – any authenticated caller
	api.POST("/triage/score", h.Score, auth.RequireAuthenticated())
}

// httpError maps engine errors onto status codes.
func httpError(err error) error {
	var ve *ValidationError
	var te *InvalidTransitionError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrInvalidCase):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &te):
		return echo.NewHTTPError(http.StatusConflict, te.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) SubmitCase(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tc, err := h.svc.SubmitTriage(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tc)
}

func (h *Handler) ReassessCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tc, err := h.svc.Reassess(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	tc, err := h.svc.UpdateStatus(ctx, id, body.Status, auth.UserIDFromContext(ctx))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	tc, err := h.svc.AddNote(ctx, id, auth.UserIDFromContext(ctx), body.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tc)
}

func (h *Handler) RemoveCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.RemoveCase(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetQueue(c echo.Context) error {
	ctx := c.Request().Context()
	var cases []*Case
	var err error
	if p := c.QueryParam("priority"); p != "" {
		cases, err = h.svc.GetQueueByPriority(ctx, Priority(p))
	} else {
		cases, err = h.svc.GetQueue(ctx)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  cases,
		"total": len(cases),
	})
}

func (h *Handler) GetStats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	tc, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *Handler) GetStatusHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	history, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, history)
}

func (h *Handler) ListCases(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cases, total, err := h.svc.ListByPatient(c.Request().Context(), c.QueryParam("patient_ref"), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(cases, total, pg))
}

func (h *Handler) ExportQueue(c echo.Context) error {
	cases, err := h.svc.GetQueue(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	now := time.Now()
	var buf bytes.Buffer
	if err := WriteQueueXLSX(&buf, cases, now); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	filename := fmt.Sprintf("triage-queue-%s.xlsx", now.UTC().Format("20060102-1504"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Score runs the engine on the posted inputs without queueing anything.
func (h *Handler) Score(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := Preview(req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}
