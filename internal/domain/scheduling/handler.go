package scheduling

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/appointments/api/internal/platform/auth"
	"github.com/appointments/api/internal/platform/hal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:name", h.GetDoctor)
	api.GET("/doctors/:name/appointments", h.ListDoctorAppointments)

	// Write endpoints – admin, scheduler
	writeGroup := api.Group("", auth.RequireRole("admin", "scheduler"))
	writeGroup.POST("/appointments", h.CreateAppointment)
	writeGroup.PUT("/appointments/:id", h.UpdateAppointment)
	writeGroup.DELETE("/appointments/:id", h.DeleteAppointment)
	writeGroup.DELETE("/appointments/:id/cancel", h.CancelAppointment)

	// Bulk and reference-data deletes – admin only
	adminGroup := api.Group("", auth.RequireRole("admin"))
	adminGroup.DELETE("/appointments", h.DeleteAllAppointments)
	adminGroup.DELETE("/doctors", h.DeleteAllDoctors)
	adminGroup.DELETE("/doctors/:name", h.DeleteDoctor)
}

func (h *Handler) assembler(c echo.Context) assembler {
	return assembler{base: hal.BaseURL(c), now: h.svc.Now()}
}

// mapError translates service errors into HTTP errors.
func mapError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusNotAcceptable, verr.Message())
	case errors.Is(err, ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// bindError reports a body that could not be bound. The binder's own
// *echo.HTTPError is unwrapped so the error handler keeps our message.
func bindError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		err = he.Internal
	}
	return echo.NewHTTPError(http.StatusBadRequest, "malformed appointment").SetInternal(err)
}

// -- Appointment Handlers --

func (h *Handler) ListAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		items []*Appointment
		err   error
	)
	if _, ok := c.QueryParams()["date"]; ok {
		items, err = h.svc.ListAppointmentsAfter(ctx, c.QueryParam("date"))
	} else {
		items, err = h.svc.ListAppointments(ctx)
	}
	if err != nil {
		return mapError(err)
	}

	if hal.Wants(c.Request()) {
		return hal.Render(c, http.StatusOK, h.assembler(c).appointments(items, hal.BaseURL(c)+c.Request().URL.RequestURI()))
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return bindError(err)
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return mapError(err)
	}
	return h.renderAppointment(c, http.StatusCreated, &a, true)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return mapError(err)
	}
	return h.renderAppointment(c, http.StatusOK, a, false)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in Appointment
	if err := c.Bind(&in); err != nil {
		return bindError(err)
	}
	a, err := h.svc.UpdateAppointment(c.Request().Context(), id, &in)
	if err != nil {
		return mapError(err)
	}
	return h.renderAppointment(c, http.StatusCreated, a, true)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.CancelAppointment(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) DeleteAllAppointments(c echo.Context) error {
	if err := h.svc.DeleteAllAppointments(c.Request().Context()); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

// renderAppointment writes a as HAL or plain JSON; withLocation adds the
// self link as Location.
func (h *Handler) renderAppointment(c echo.Context, status int, a *Appointment, withLocation bool) error {
	res := h.assembler(c).appointment(a)
	if withLocation {
		c.Response().Header().Set(echo.HeaderLocation, res.Links["self"].Href)
	}
	if hal.Wants(c.Request()) {
		return hal.Render(c, status, res)
	}
	return c.JSON(status, a)
}

// -- Doctor Handlers --

func (h *Handler) ListDoctors(c echo.Context) error {
	items, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	if hal.Wants(c.Request()) {
		return hal.Render(c, http.StatusOK, h.assembler(c).doctors(items))
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.GetDoctor(c.Request().Context(), c.Param("name"))
	if err != nil {
		return mapError(err)
	}
	if hal.Wants(c.Request()) {
		return hal.Render(c, http.StatusOK, h.assembler(c).doctor(d))
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctorAppointments(c echo.Context) error {
	name := c.Param("name")
	items, err := h.svc.ListDoctorAppointments(c.Request().Context(), name)
	if err != nil {
		return mapError(err)
	}
	if hal.Wants(c.Request()) {
		return hal.Render(c, http.StatusOK, h.assembler(c).doctorAppointments(name, items))
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	if err := h.svc.DeleteDoctor(c.Request().Context(), c.Param("name")); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) DeleteAllDoctors(c echo.Context) error {
	if err := h.svc.DeleteAllDoctors(c.Request().Context()); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusOK)
}
