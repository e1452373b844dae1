package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"trimtab/backend/internal/domain"
	"trimtab/backend/internal/outbox"
	"trimtab/backend/internal/store"
)

// activeSlotConstraint is the partial unique index on
// (provider_id, date, time_of_day) WHERE status IN ('confirmed','completed').
// Cancelled rows never participate, so a cancelled slot is re-bookable while
// the database still rejects a second active row at commit time.
const activeSlotConstraint = "appointments_active_slot"

type BookingRepo struct {
	db     *bun.DB
	events *outbox.Repository
}

// NewBookingRepo builds a repo. events may be nil, in which case no outbox
// rows are written.
func NewBookingRepo(db *bun.DB, events *outbox.Repository) *BookingRepo {
	return &BookingRepo{db: db, events: events}
}

func (r *BookingRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, appt.ProviderID, appt.Date, appt.TimeOfDay); err != nil {
			return err
		}

		taken, err := tx.NewSelect().
			Model((*domain.Appointment)(nil)).
			Where("provider_id = ?", appt.ProviderID).
			Where("date = ?", appt.Date).
			Where("time_of_day = ?", appt.TimeOfDay).
			Where("status != ?", domain.StatusCancelled).
			Exists(ctx)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrSlotTaken
		}

		m := appt
		m.Status = domain.StatusConfirmed
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			if isActiveSlotConflict(err) {
				return store.ErrSlotTaken
			}
			return err
		}

		if err := r.emit(ctx, tx, outbox.AggregateAppointment, m.ID.String(), outbox.EventAppointmentBooked, appointmentPayload(m)); err != nil {
			return err
		}

		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, asStoreError(err)
	}
	return out, nil
}

func (r *BookingRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, asStoreError(err)
	}
	return m, nil
}

func (r *BookingRepo) ListAppointmentsByDay(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date = ?", date).
		OrderExpr("time_of_day ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, asStoreError(err)
	}
	return rows, nil
}

func (r *BookingRepo) TransitionAppointment(ctx context.Context, id uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var m domain.Appointment
		err := tx.NewSelect().
			Model(&m).
			Where("id = ?", id).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}

		if !m.Status.CanTransitionTo(target) {
			return &domain.StateError{From: m.Status, To: target}
		}

		m.Status = target
		if _, err := tx.NewUpdate().Model(&m).Column("status", "updated_at").WherePK().Exec(ctx); err != nil {
			return err
		}

		eventType := outbox.EventAppointmentCancelled
		if target == domain.StatusCompleted {
			eventType = outbox.EventAppointmentCompleted
		}
		if err := r.emit(ctx, tx, outbox.AggregateAppointment, m.ID.String(), eventType, appointmentPayload(m)); err != nil {
			return err
		}

		out = m
		return nil
	})
	if err != nil {
		return domain.Appointment{}, asStoreError(err)
	}
	return out, nil
}

func (r *BookingRepo) PurgeCancelled(ctx context.Context, providerID, before string) (int, error) {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("provider_id = ?", providerID).
		Where("status = ?", domain.StatusCancelled).
		Where("date < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, asStoreError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *BookingRepo) AddWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	models := make([]domain.WorkingSlotTemplate, 0, len(entries))
	for _, e := range entries {
		models = append(models, domain.WorkingSlotTemplate{
			ProviderID: providerID,
			Weekday:    e.Weekday,
			TimeOfDay:  e.TimeOfDay,
		})
	}
	res, err := r.db.NewInsert().
		Model(&models).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, asStoreError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *BookingRepo) ListWorkingSlots(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error) {
	var rows []domain.WorkingSlotTemplate
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("weekday ASC, time_of_day ASC").
		Scan(ctx)
	if err != nil {
		return nil, asStoreError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListWorkingSlotsForWeekday(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
	var rows []domain.WorkingSlotTemplate
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("weekday = ?", weekday).
		OrderExpr("time_of_day ASC").
		Scan(ctx)
	if err != nil {
		return nil, asStoreError(err)
	}
	return rows, nil
}

func (r *BookingRepo) RemoveWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		deleted := 0
		for _, e := range entries {
			res, err := tx.NewDelete().
				Model((*domain.WorkingSlotTemplate)(nil)).
				Where("provider_id = ?", providerID).
				Where("weekday = ?", e.Weekday).
				Where("time_of_day = ?", e.TimeOfDay).
				Exec(ctx)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += int(n)
		}
		if deleted == 0 {
			return nil
		}
		payload := map[string]any{"provider_id": providerID, "entries": entries}
		return r.emit(ctx, tx, outbox.AggregateSchedule, providerID, outbox.EventScheduleSlotsRemoved, payload)
	})
	if err != nil {
		return 0, asStoreError(err)
	}

	// Cancellations run as independent per-appointment transitions so a
	// mid-operation failure leaves a safely retryable partial state.
	var candidates []domain.Appointment
	err = r.db.NewSelect().
		Model(&candidates).
		Where("provider_id = ?", providerID).
		Where("status = ?", domain.StatusConfirmed).
		Where("time_of_day IN (?)", bun.In(entryTimes(entries))).
		Scan(ctx)
	if err != nil {
		return 0, asStoreError(err)
	}

	cancelled := 0
	for _, a := range candidates {
		if !slotEntryMatches(a, entries) {
			continue
		}
		n, err := r.cancelConfirmed(ctx, a)
		if err != nil {
			return cancelled, asStoreError(err)
		}
		cancelled += n
	}
	return cancelled, nil
}

// cancelConfirmed transitions one appointment to cancelled, guarded so a
// concurrent or repeated cascade run counts it at most once.
func (r *BookingRepo) cancelConfirmed(ctx context.Context, a domain.Appointment) (int, error) {
	cancelled := 0
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*domain.Appointment)(nil)).
			Set("status = ?", domain.StatusCancelled).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", a.ID).
			Where("status = ?", domain.StatusConfirmed).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		a.Status = domain.StatusCancelled
		if err := r.emit(ctx, tx, outbox.AggregateAppointment, a.ID.String(), outbox.EventAppointmentCancelled, appointmentPayload(a)); err != nil {
			return err
		}
		cancelled = 1
		return nil
	})
	return cancelled, err
}

func (r *BookingRepo) emit(ctx context.Context, tx bun.IDB, aggregateType, aggregateID, eventType string, payload any) error {
	if r.events == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.events.Insert(ctx, tx, outbox.Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	})
}

// lockSlot serializes check-then-create for one (provider, date, time) key.
func lockSlot(ctx context.Context, tx bun.Tx, providerID, date, timeOfDay string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", slotLockKey(providerID, date, timeOfDay)).Exec(ctx)
	return err
}

func slotLockKey(providerID, date, timeOfDay string) string {
	return providerID + "|" + date + "|" + timeOfDay
}

func slotEntryMatches(a domain.Appointment, entries []domain.SlotEntry) bool {
	weekday, err := domain.WeekdayOf(a.Date)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Weekday == weekday && e.TimeOfDay == a.TimeOfDay {
			return true
		}
	}
	return false
}

func entryTimes(entries []domain.SlotEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	times := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.TimeOfDay]; ok {
			continue
		}
		seen[e.TimeOfDay] = struct{}{}
		times = append(times, e.TimeOfDay)
	}
	return times
}

func isActiveSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSlotConstraint
}

// asStoreError maps connectivity failures to the retryable ErrUnavailable
// sentinel; domain and sentinel errors pass through untouched.
func asStoreError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func appointmentPayload(a domain.Appointment) map[string]any {
	return map[string]any{
		"appointment_id": a.ID.String(),
		"provider_id":    a.ProviderID,
		"venue_id":       a.VenueID,
		"service_id":     a.ServiceID,
		"customer_id":    a.CustomerID,
		"date":           a.Date,
		"time_of_day":    a.TimeOfDay,
		"status":         string(a.Status),
	}
}
