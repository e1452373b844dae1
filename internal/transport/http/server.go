package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"trimtab/backend/internal/domain"
	"trimtab/backend/internal/service/booking"
	"trimtab/backend/internal/store"
)

// BookingService is the slice of the booking service the HTTP layer needs.
type BookingService interface {
	GetAvailability(ctx context.Context, providerID, date string, now time.Time) (booking.Availability, error)
	CreateBooking(ctx context.Context, in booking.CreateBookingInput) (domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	TransitionAppointment(ctx context.Context, appointmentID uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error)
	ListAppointments(ctx context.Context, providerID, date string) ([]domain.Appointment, error)
	AddWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
	ListWorkingSlots(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error)
	RemoveWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
	PurgeCancelled(ctx context.Context, providerID, before string) (int, error)
}

type Server struct {
	svc BookingService
	log *slog.Logger
	now func() time.Time
}

func NewServer(svc BookingService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc: svc,
		log: log.With(slog.String("component", "http")),
		now: time.Now,
	}
}

// Register mounts the API routes. Availability is public, booking accepts
// anonymous callers as guests, everything else needs an identity.
func (s *Server) Register(e *echo.Echo, auth *AuthMiddleware) {
	api := e.Group("/api")

	api.GET("/providers/:id/availability", s.getAvailability)
	api.POST("/bookings", s.createBooking, auth.OptionalIdentity)

	api.GET("/providers/:id/appointments", s.listAppointments, auth.RequireIdentity)
	api.GET("/appointments/:id", s.getAppointment, auth.RequireIdentity)
	api.POST("/appointments/:id/status", s.transitionAppointment, auth.RequireIdentity)
	api.GET("/providers/:id/working-slots", s.listWorkingSlots, auth.RequireIdentity)
	api.POST("/providers/:id/working-slots", s.addWorkingSlots, auth.RequireIdentity)
	api.DELETE("/providers/:id/working-slots", s.removeWorkingSlots, auth.RequireIdentity)
	api.POST("/providers/:id/cancelled/purge", s.purgeCancelled, auth.RequireIdentity)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
}

type availabilityResponse struct {
	ProviderID string   `json:"provider_id"`
	Date       string   `json:"date"`
	WorkingDay bool     `json:"working_day"`
	Slots      []string `json:"slots"`
}

func (s *Server) getAvailability(c echo.Context) error {
	providerID := c.Param("id")
	date := c.QueryParam("date")

	av, err := s.svc.GetAvailability(c.Request().Context(), providerID, date, s.now())
	if err != nil {
		return s.respondError(c, "availability", err)
	}

	slots := av.Slots
	if slots == nil {
		slots = []string{}
	}
	return c.JSON(http.StatusOK, availabilityResponse{
		ProviderID: providerID,
		Date:       date,
		WorkingDay: av.WorkingDay,
		Slots:      slots,
	})
}

type createBookingRequest struct {
	ProviderID string `json:"provider_id"`
	VenueID    string `json:"venue_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time_of_day"`
}

func (s *Server) createBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	appt, err := s.svc.CreateBooking(c.Request().Context(), booking.CreateBookingInput{
		ProviderID: req.ProviderID,
		VenueID:    req.VenueID,
		ServiceID:  req.ServiceID,
		CustomerID: CustomerID(c),
		Date:       req.Date,
		TimeOfDay:  req.TimeOfDay,
	})
	if err != nil {
		return s.respondError(c, "create booking", err)
	}

	s.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("provider_id", appt.ProviderID),
		slog.String("date", appt.Date),
		slog.String("time_of_day", appt.TimeOfDay),
	)
	return c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

func (s *Server) getAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("appointment id must be a UUID"))
	}

	appt, err := s.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return s.respondError(c, "get appointment", err)
	}
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) transitionAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("appointment id must be a UUID"))
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	appt, err := s.svc.TransitionAppointment(c.Request().Context(), id, domain.AppointmentStatus(req.Status))
	if err != nil {
		return s.respondError(c, "transition appointment", err)
	}

	s.log.Info("appointment transitioned",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (s *Server) listAppointments(c echo.Context) error {
	appts, err := s.svc.ListAppointments(c.Request().Context(), c.Param("id"), c.QueryParam("date"))
	if err != nil {
		return s.respondError(c, "list appointments", err)
	}

	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"appointments": out})
}

type slotEntriesRequest struct {
	Entries []domain.SlotEntry `json:"entries"`
}

func (s *Server) addWorkingSlots(c echo.Context) error {
	var req slotEntriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	created, err := s.svc.AddWorkingSlots(c.Request().Context(), c.Param("id"), req.Entries)
	if err != nil {
		return s.respondError(c, "add working slots", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"created": created})
}

func (s *Server) listWorkingSlots(c echo.Context) error {
	templates, err := s.svc.ListWorkingSlots(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.respondError(c, "list working slots", err)
	}

	entries := make([]domain.SlotEntry, 0, len(templates))
	for _, t := range templates {
		entries = append(entries, domain.SlotEntry{Weekday: t.Weekday, TimeOfDay: t.TimeOfDay})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

func (s *Server) removeWorkingSlots(c echo.Context) error {
	var req slotEntriesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	providerID := c.Param("id")
	cancelled, err := s.svc.RemoveWorkingSlots(c.Request().Context(), providerID, req.Entries)
	if err != nil {
		return s.respondError(c, "remove working slots", err)
	}

	s.log.Info("working slots removed",
		slog.String("provider_id", providerID),
		slog.Int("appointments_cancelled", cancelled),
	)
	return c.JSON(http.StatusOK, echo.Map{"appointments_cancelled": cancelled})
}

type purgeRequest struct {
	Before string `json:"before"`
}

func (s *Server) purgeCancelled(c echo.Context) error {
	var req purgeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}

	purged, err := s.svc.PurgeCancelled(c.Request().Context(), c.Param("id"), req.Before)
	if err != nil {
		return s.respondError(c, "purge cancelled", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"purged": purged})
}

type appointmentResponse struct {
	ID         string `json:"id"`
	ProviderID string `json:"provider_id"`
	VenueID    string `json:"venue_id"`
	ServiceID  string `json:"service_id"`
	CustomerID string `json:"customer_id"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time_of_day"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID.String(),
		ProviderID: a.ProviderID,
		VenueID:    a.VenueID,
		ServiceID:  a.ServiceID,
		CustomerID: a.CustomerID,
		Date:       a.Date,
		TimeOfDay:  a.TimeOfDay,
		Status:     string(a.Status),
		CreatedAt:  a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// respondError maps service and store errors onto HTTP statuses. Anything
// unrecognized is logged and reported as a 500 without leaking details.
func (s *Server) respondError(c echo.Context, op string, err error) error {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusBadRequest, errorBody(vErr.Error()))
	}
	if errors.Is(err, store.ErrSlotTaken) {
		return c.JSON(http.StatusConflict, errorBody("slot already booked"))
	}
	var stErr *domain.StateError
	if errors.As(err, &stErr) {
		return c.JSON(http.StatusUnprocessableEntity, errorBody(stErr.Error()))
	}
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, errorBody("appointment not found"))
	}
	if errors.Is(err, store.ErrUnavailable) {
		s.log.Warn("store unavailable", slog.String("op", op), slog.Any("err", err))
		return c.JSON(http.StatusServiceUnavailable, errorBody("service temporarily unavailable"))
	}

	s.log.Error("request failed", slog.String("op", op), slog.Any("err", err))
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) echo.Map {
	return echo.Map{"error": msg}
}
