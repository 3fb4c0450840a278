package queue

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ruralcare/telemed/internal/platform/auth"
	"github.com/ruralcare/telemed/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/queue")

	g.GET("/waiting", h.WaitingList)
	g.GET("/:id", h.Get)
	g.POST("", h.Join, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("/:id/cancel", h.Cancel, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("/:id/start", h.Start, auth.RequireRole(auth.RoleDoctor))
	g.POST("/:id/complete", h.Complete, auth.RequireRole(auth.RoleDoctor))
	g.GET("/mine", h.Mine, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))

	staff := g.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleGovOfficial))
	staff.GET("", h.List)
	staff.GET("/doctor/:id", h.DoctorQueue)

	g.GET("/patient/:id", h.PatientHistory,
		auth.RequireRole(auth.RolePatient, auth.RoleDoctor, auth.RoleGovOfficial))
	g.GET("/statistics", h.Statistics, auth.RequireRole(auth.RoleGovOfficial))
}

// httpError maps queue errors to status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateActiveEntry),
		errors.Is(err, ErrDoctorUnavailable),
		errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return auth.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return p, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Join(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req JoinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Join(c.Request().Context(), p, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) WaitingList(c echo.Context) error {
	entries, err := h.svc.WaitingList(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":                 entries,
		"total":                len(entries),
		"consultation_minutes": h.svc.ConsultationMinutes(),
	})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) transition(c echo.Context, op func(p auth.Principal, id uuid.UUID) (*Entry, error)) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := op(p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Start(c echo.Context) error {
	return h.transition(c, func(p auth.Principal, id uuid.UUID) (*Entry, error) {
		return h.svc.Start(c.Request().Context(), p, id)
	})
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, func(p auth.Principal, id uuid.UUID) (*Entry, error) {
		return h.svc.Complete(c.Request().Context(), p, id)
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, func(p auth.Principal, id uuid.UUID) (*Entry, error) {
		return h.svc.Cancel(c.Request().Context(), p, id)
	})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.List(c.Request().Context(), Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg))
}

func (h *Handler) Mine(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.Mine(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) DoctorQueue(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.DoctorQueue(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) PatientHistory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.PatientHistory(c.Request().Context(), p, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// Statistics answers JSON by default and an xlsx workbook for ?format=xlsx.
func (h *Handler) Statistics(c echo.Context) error {
	stats, err := h.svc.Statistics(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	if c.QueryParam("format") != "xlsx" {
		return c.JSON(http.StatusOK, stats)
	}

	name := "queue-statistics-" + time.Now().UTC().Format("20060102") + ".xlsx"
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, xlsxMIME)
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	res.WriteHeader(http.StatusOK)
	return WriteStatisticsWorkbook(res, stats)
}
