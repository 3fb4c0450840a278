package triage

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ruralcare/telemed/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/triage")
	g.POST("/analyze", h.Analyze)
	g.POST("/prioritize", h.Prioritize)

	clinical := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
	clinical.GET("/cases", h.ListCases)
}

func (h *Handler) Analyze(c echo.Context) error {
	var q Query
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(distinctTokens(q.Symptoms)) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "symptoms is required")
	}
	a, err := h.svc.Analyze(c.Request().Context(), q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

type prioritizeRequest struct {
	Symptoms       string `json:"symptoms"`
	PatientAge     int    `json:"patient_age"`
	MedicalHistory string `json:"medical_history"`
}

type prioritizeResponse struct {
	Priority Priority `json:"priority"`
	Label    string   `json:"label"`
}

func (h *Handler) Prioritize(c echo.Context) error {
	var req prioritizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Prioritize(req.Symptoms, req.PatientAge, req.MedicalHistory)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, prioritizeResponse{Priority: p, Label: p.String()})
}

func (h *Handler) ListCases(c echo.Context) error {
	cases := h.svc.Cases()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":  cases,
		"total": len(cases),
	})
}
