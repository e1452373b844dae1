package store

import (
	"context"

	"github.com/google/uuid"

	"trimtab/backend/internal/domain"
)

type BookingRepository interface {
	// CreateAppointment inserts a fresh record after verifying, inside a
	// per-slot serialized transaction, that no non-cancelled appointment
	// holds the same (provider, date, time) key. Returns ErrSlotTaken on
	// conflict.
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointmentsByDay(ctx context.Context, providerID, date string) ([]domain.Appointment, error)
	// TransitionAppointment applies the status transition table under a row
	// lock. Returns *domain.StateError when the transition is illegal.
	TransitionAppointment(ctx context.Context, id uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error)
	PurgeCancelled(ctx context.Context, providerID, before string) (int, error)

	AddWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
	ListWorkingSlots(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error)
	ListWorkingSlotsForWeekday(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error)
	// RemoveWorkingSlots deletes the matching templates, then cancels every
	// confirmed appointment whose (derived weekday, time) matches a removed
	// entry. Cancellations are independent per-appointment transitions;
	// re-running over already-cancelled rows is a no-op. Returns the number
	// of appointments cancelled.
	RemoveWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
}
