package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"trimtab/backend/internal/domain"
	"trimtab/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func validationError(msg string) error {
	return NewValidationError(msg)
}

// AvailabilityCache is the optional day-availability cache. Implementations
// must treat every method as best-effort; the service never fails a request
// on cache errors.
type AvailabilityCache interface {
	GetDay(ctx context.Context, providerID, date string) (slots []string, workingDay, ok bool)
	SetDay(ctx context.Context, providerID, date string, workingDay bool, slots []string)
	InvalidateDay(ctx context.Context, providerID, date string)
	InvalidateProvider(ctx context.Context, providerID string)
}

type Service struct {
	repo     store.BookingRepository
	cache    AvailabilityCache
	validate *validator.Validate
}

// NewService builds a booking service. cache may be nil.
func NewService(repo store.BookingRepository, cache AvailabilityCache) *Service {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return domain.ValidTimeOfDay(fl.Field().String())
	})
	_ = v.RegisterValidation("dateonly", func(fl validator.FieldLevel) bool {
		return domain.ValidDate(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{repo: repo, cache: cache, validate: v}
}

// GetAvailability resolves the bookable slots for a provider on a date.
// now is passed explicitly (it only matters when date is now's calendar
// date) so callers and tests control the clock.
func (s *Service) GetAvailability(ctx context.Context, providerID, date string, now time.Time) (Availability, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return Availability{}, validationError("provider_id is required")
	}
	if !domain.ValidDate(date) {
		return Availability{}, validationError("date must be YYYY-MM-DD")
	}

	if s.cache != nil {
		if slots, workingDay, ok := s.cache.GetDay(ctx, providerID, date); ok {
			return applySameDayCutoff(Availability{WorkingDay: workingDay, Slots: slots}, date, now), nil
		}
	}

	weekday, err := domain.WeekdayOf(date)
	if err != nil {
		return Availability{}, validationError(err.Error())
	}

	candidates, err := s.repo.ListWorkingSlotsForWeekday(ctx, providerID, weekday)
	if err != nil {
		return Availability{}, err
	}
	if len(candidates) == 0 {
		if s.cache != nil {
			s.cache.SetDay(ctx, providerID, date, false, nil)
		}
		return Availability{}, nil
	}

	appts, err := s.repo.ListAppointmentsByDay(ctx, providerID, date)
	if err != nil {
		return Availability{}, err
	}

	open := openSlots(candidates, appts)
	if s.cache != nil {
		// A booking committing between the ledger read above and this write
		// can re-cache the day after its InvalidateDay ran, so a taken slot
		// may be advertised until the entry's TTL expires. Bookings are
		// re-validated against the store, so the stale read costs the caller
		// a conflict and a refresh, never a double-booking.
		s.cache.SetDay(ctx, providerID, date, true, open)
	}
	return applySameDayCutoff(Availability{WorkingDay: true, Slots: open}, date, now), nil
}

type CreateBookingInput struct {
	ProviderID string `json:"provider_id" validate:"required"`
	VenueID    string `json:"venue_id" validate:"required"`
	ServiceID  string `json:"service_id" validate:"required"`
	CustomerID string `json:"customer_id" validate:"required"`
	Date       string `json:"date" validate:"required,dateonly"`
	TimeOfDay  string `json:"time_of_day" validate:"required,hhmm"`
}

// CreateBooking books a slot. An empty CustomerID books as the guest
// sentinel; the booking logic is otherwise identical for walk-ins and
// authenticated customers.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Appointment, error) {
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.VenueID = strings.TrimSpace(in.VenueID)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.CustomerID == "" {
		in.CustomerID = domain.GuestCustomerID
	}

	if err := s.validate.Struct(in); err != nil {
		return domain.Appointment{}, validationErrorFrom(err)
	}

	appt, err := s.repo.CreateAppointment(ctx, domain.Appointment{
		ProviderID: in.ProviderID,
		VenueID:    in.VenueID,
		ServiceID:  in.ServiceID,
		CustomerID: in.CustomerID,
		Date:       in.Date,
		TimeOfDay:  in.TimeOfDay,
		Status:     domain.StatusConfirmed,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateDay(ctx, appt.ProviderID, appt.Date)
	}
	return appt, nil
}

func (s *Service) TransitionAppointment(ctx context.Context, appointmentID uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if _, err := domain.ParseAppointmentStatus(string(target)); err != nil {
		return domain.Appointment{}, validationError("target status must be confirmed, completed or cancelled")
	}

	appt, err := s.repo.TransitionAppointment(ctx, appointmentID, target)
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateDay(ctx, appt.ProviderID, appt.Date)
	}
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.GetAppointment(ctx, appointmentID)
}

func (s *Service) ListAppointments(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	if !domain.ValidDate(date) {
		return nil, validationError("date must be YYYY-MM-DD")
	}
	return s.repo.ListAppointmentsByDay(ctx, providerID, date)
}

func (s *Service) AddWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return 0, validationError("provider_id is required")
	}
	if err := validateEntries(entries); err != nil {
		return 0, err
	}

	created, err := s.repo.AddWorkingSlots(ctx, providerID, entries)
	if err != nil {
		return 0, err
	}
	if created > 0 && s.cache != nil {
		s.cache.InvalidateProvider(ctx, providerID)
	}
	return created, nil
}

func (s *Service) ListWorkingSlots(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, validationError("provider_id is required")
	}
	return s.repo.ListWorkingSlots(ctx, providerID)
}

// RemoveWorkingSlots deletes recurring slots and cancels the confirmed
// appointments that depended on them. Returns the number of appointments
// cancelled; re-running the same removal is a no-op returning 0.
func (s *Service) RemoveWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return 0, validationError("provider_id is required")
	}
	if err := validateEntries(entries); err != nil {
		return 0, err
	}

	cancelled, err := s.repo.RemoveWorkingSlots(ctx, providerID, entries)
	if err != nil {
		return cancelled, err
	}
	if s.cache != nil {
		s.cache.InvalidateProvider(ctx, providerID)
	}
	return cancelled, nil
}

func (s *Service) PurgeCancelled(ctx context.Context, providerID, before string) (int, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return 0, validationError("provider_id is required")
	}
	if !domain.ValidDate(before) {
		return 0, validationError("before must be YYYY-MM-DD")
	}
	return s.repo.PurgeCancelled(ctx, providerID, before)
}

func validateEntries(entries []domain.SlotEntry) error {
	if len(entries) == 0 {
		return validationError("at least one slot entry is required")
	}
	for _, e := range entries {
		if !domain.ValidWeekday(e.Weekday) {
			return validationError(fmt.Sprintf("weekday %d is out of range 0..6", e.Weekday))
		}
		if !domain.ValidTimeOfDay(e.TimeOfDay) {
			return validationError(fmt.Sprintf("time_of_day %q must be HH:MM", e.TimeOfDay))
		}
	}
	return nil
}

func validationErrorFrom(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("invalid input")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError(fe.Field() + " is required")
	case "hhmm":
		return validationError(fe.Field() + " must be HH:MM")
	case "dateonly":
		return validationError(fe.Field() + " must be YYYY-MM-DD")
	}
	return validationError(fe.Field() + " is invalid")
}
