package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// GuestCustomerID is the reserved identity placed on walk-in bookings made
// without an authenticated customer.
const GuestCustomerID = "guest"

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusConfirmed, StatusCompleted, StatusCancelled:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// transitions is the single source of truth for the appointment lifecycle.
// Completed and cancelled are terminal.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// Occupies reports whether an appointment in this status blocks its slot.
// Cancellation fully frees the slot; completion keeps it occupied so history
// cannot be re-booked.
func (s AppointmentStatus) Occupies() bool {
	return s != StatusCancelled
}

type StateError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID string            `bun:"provider_id,notnull"`
	VenueID    string            `bun:"venue_id,notnull"`
	ServiceID  string            `bun:"service_id,notnull"`
	CustomerID string            `bun:"customer_id,notnull"`
	Date       string            `bun:"date,notnull"`
	TimeOfDay  string            `bun:"time_of_day,notnull"`
	Status     AppointmentStatus `bun:"status,notnull"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
