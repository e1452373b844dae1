package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"trimtab/backend/internal/domain"
	"trimtab/backend/internal/store"
)

type fakeRepo struct {
	createAppointmentFn     func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	getAppointmentFn        func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listAppointmentsFn      func(ctx context.Context, providerID, date string) ([]domain.Appointment, error)
	transitionFn            func(ctx context.Context, id uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error)
	purgeCancelledFn        func(ctx context.Context, providerID, before string) (int, error)
	addWorkingSlotsFn       func(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
	listWorkingSlotsFn      func(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error)
	listForWeekdayFn        func(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error)
	removeWorkingSlotsFn    func(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error)
}

func (f *fakeRepo) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createAppointmentFn == nil {
		panic("CreateAppointment not configured")
	}
	return f.createAppointmentFn(ctx, appt)
}

func (f *fakeRepo) GetAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getAppointmentFn == nil {
		panic("GetAppointment not configured")
	}
	return f.getAppointmentFn(ctx, id)
}

func (f *fakeRepo) ListAppointmentsByDay(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
	if f.listAppointmentsFn == nil {
		panic("ListAppointmentsByDay not configured")
	}
	return f.listAppointmentsFn(ctx, providerID, date)
}

func (f *fakeRepo) TransitionAppointment(ctx context.Context, id uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error) {
	if f.transitionFn == nil {
		panic("TransitionAppointment not configured")
	}
	return f.transitionFn(ctx, id, target)
}

func (f *fakeRepo) PurgeCancelled(ctx context.Context, providerID, before string) (int, error) {
	if f.purgeCancelledFn == nil {
		panic("PurgeCancelled not configured")
	}
	return f.purgeCancelledFn(ctx, providerID, before)
}

func (f *fakeRepo) AddWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	if f.addWorkingSlotsFn == nil {
		panic("AddWorkingSlots not configured")
	}
	return f.addWorkingSlotsFn(ctx, providerID, entries)
}

func (f *fakeRepo) ListWorkingSlots(ctx context.Context, providerID string) ([]domain.WorkingSlotTemplate, error) {
	if f.listWorkingSlotsFn == nil {
		panic("ListWorkingSlots not configured")
	}
	return f.listWorkingSlotsFn(ctx, providerID)
}

func (f *fakeRepo) ListWorkingSlotsForWeekday(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
	if f.listForWeekdayFn == nil {
		panic("ListWorkingSlotsForWeekday not configured")
	}
	return f.listForWeekdayFn(ctx, providerID, weekday)
}

func (f *fakeRepo) RemoveWorkingSlots(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
	if f.removeWorkingSlotsFn == nil {
		panic("RemoveWorkingSlots not configured")
	}
	return f.removeWorkingSlotsFn(ctx, providerID, entries)
}

type fakeCache struct {
	getDayFn             func(providerID, date string) ([]string, bool, bool)
	setDayCalls          []string
	invalidateDays       []string
	invalidatedProviders []string
}

func (f *fakeCache) GetDay(ctx context.Context, providerID, date string) ([]string, bool, bool) {
	if f.getDayFn == nil {
		return nil, false, false
	}
	return f.getDayFn(providerID, date)
}

func (f *fakeCache) SetDay(ctx context.Context, providerID, date string, workingDay bool, slots []string) {
	f.setDayCalls = append(f.setDayCalls, providerID+"/"+date)
}

func (f *fakeCache) InvalidateDay(ctx context.Context, providerID, date string) {
	f.invalidateDays = append(f.invalidateDays, providerID+"/"+date)
}

func (f *fakeCache) InvalidateProvider(ctx context.Context, providerID string) {
	f.invalidatedProviders = append(f.invalidatedProviders, providerID)
}

// 2026-09-01 is a Tuesday (weekday 2).
var noon = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestGetAvailability_ValidationErrorType(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	_, err := svc.GetAvailability(context.Background(), "", "2026-09-01", noon)
	if err == nil {
		t.Fatalf("expected error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if vErr.Error() != "provider_id is required" {
		t.Fatalf("error = %q", vErr.Error())
	}

	_, err = svc.GetAvailability(context.Background(), "p1", "09/01/2026", noon)
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestGetAvailability_NonWorkingDay(t *testing.T) {
	svc := NewService(&fakeRepo{
		listForWeekdayFn: func(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
			if weekday != 2 {
				t.Fatalf("weekday = %d, want 2", weekday)
			}
			return nil, nil
		},
	}, nil)

	av, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", noon)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if av.WorkingDay {
		t.Fatalf("expected non-working day")
	}
	if len(av.Slots) != 0 {
		t.Fatalf("slots = %v, want empty", av.Slots)
	}
}

func TestGetAvailability_OpenSlotsExcludeBooked(t *testing.T) {
	svc := NewService(&fakeRepo{
		listForWeekdayFn: func(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
			return []domain.WorkingSlotTemplate{tmpl(2, "09:00"), tmpl(2, "10:00"), tmpl(2, "11:00")}, nil
		},
		listAppointmentsFn: func(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
			return []domain.Appointment{appt("10:00", domain.StatusConfirmed)}, nil
		},
	}, nil)

	av, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", noon)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if !av.WorkingDay {
		t.Fatalf("expected working day")
	}
	want := []string{"09:00", "11:00"}
	if !reflect.DeepEqual(av.Slots, want) {
		t.Fatalf("slots = %v, want %v", av.Slots, want)
	}
}

func TestGetAvailability_SameDayCutoff(t *testing.T) {
	svc := NewService(&fakeRepo{
		listForWeekdayFn: func(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
			return []domain.WorkingSlotTemplate{tmpl(2, "09:00"), tmpl(2, "10:00"), tmpl(2, "11:00")}, nil
		},
		listAppointmentsFn: func(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
			return nil, nil
		},
	}, nil)

	now := time.Date(2026, 9, 1, 10, 15, 0, 0, time.UTC)
	av, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", now)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	want := []string{"11:00"}
	if !reflect.DeepEqual(av.Slots, want) {
		t.Fatalf("slots = %v, want %v", av.Slots, want)
	}
}

func TestGetAvailability_CacheHitSkipsRepo(t *testing.T) {
	cache := &fakeCache{
		getDayFn: func(providerID, date string) ([]string, bool, bool) {
			return []string{"09:00", "10:00"}, true, true
		},
	}
	svc := NewService(&fakeRepo{}, cache) // repo panics if touched

	av, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", noon)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	want := []string{"09:00", "10:00"}
	if !reflect.DeepEqual(av.Slots, want) {
		t.Fatalf("slots = %v, want %v", av.Slots, want)
	}
}

func TestGetAvailability_CacheHitStillAppliesCutoff(t *testing.T) {
	cache := &fakeCache{
		getDayFn: func(providerID, date string) ([]string, bool, bool) {
			return []string{"09:00", "10:00", "11:00"}, true, true
		},
	}
	svc := NewService(&fakeRepo{}, cache)

	now := time.Date(2026, 9, 1, 10, 15, 0, 0, time.UTC)
	av, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", now)
	if err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	want := []string{"11:00"}
	if !reflect.DeepEqual(av.Slots, want) {
		t.Fatalf("slots = %v, want %v", av.Slots, want)
	}
}

func TestGetAvailability_MissPopulatesCache(t *testing.T) {
	cache := &fakeCache{}
	svc := NewService(&fakeRepo{
		listForWeekdayFn: func(ctx context.Context, providerID string, weekday int) ([]domain.WorkingSlotTemplate, error) {
			return []domain.WorkingSlotTemplate{tmpl(2, "09:00")}, nil
		},
		listAppointmentsFn: func(ctx context.Context, providerID, date string) ([]domain.Appointment, error) {
			return nil, nil
		},
	}, cache)

	if _, err := svc.GetAvailability(context.Background(), "p1", "2026-09-01", noon); err != nil {
		t.Fatalf("GetAvailability error: %v", err)
	}
	if len(cache.setDayCalls) != 1 || cache.setDayCalls[0] != "p1/2026-09-01" {
		t.Fatalf("setDay calls = %v", cache.setDayCalls)
	}
}

func TestCreateBooking_DefaultsToGuest(t *testing.T) {
	var got domain.Appointment
	svc := NewService(&fakeRepo{
		createAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			got = appt
			return appt, nil
		},
	}, nil)

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{
		ProviderID: "p1",
		VenueID:    "v1",
		ServiceID:  "s1",
		CustomerID: "  ",
		Date:       "2026-09-01",
		TimeOfDay:  "09:00",
	})
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if got.CustomerID != domain.GuestCustomerID {
		t.Fatalf("customer_id = %q, want %q", got.CustomerID, domain.GuestCustomerID)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("status = %q, want confirmed", got.Status)
	}
}

func TestCreateBooking_ValidationMessages(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	cases := []struct {
		name string
		in   CreateBookingInput
		want string
	}{
		{
			"missing provider",
			CreateBookingInput{VenueID: "v1", ServiceID: "s1", Date: "2026-09-01", TimeOfDay: "09:00"},
			"provider_id is required",
		},
		{
			"bad time",
			CreateBookingInput{ProviderID: "p1", VenueID: "v1", ServiceID: "s1", Date: "2026-09-01", TimeOfDay: "9am"},
			"time_of_day must be HH:MM",
		},
		{
			"bad date",
			CreateBookingInput{ProviderID: "p1", VenueID: "v1", ServiceID: "s1", Date: "tomorrow", TimeOfDay: "09:00"},
			"date must be YYYY-MM-DD",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tc.in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if vErr.Error() != tc.want {
				t.Fatalf("error = %q, want %q", vErr.Error(), tc.want)
			}
		})
	}
}

func TestCreateBooking_SlotTakenPassesThrough(t *testing.T) {
	svc := NewService(&fakeRepo{
		createAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrSlotTaken
		},
	}, nil)

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{
		ProviderID: "p1",
		VenueID:    "v1",
		ServiceID:  "s1",
		CustomerID: "c1",
		Date:       "2026-09-01",
		TimeOfDay:  "09:00",
	})
	if !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("error = %v, want ErrSlotTaken", err)
	}
}

func TestCreateBooking_InvalidatesCachedDay(t *testing.T) {
	cache := &fakeCache{}
	svc := NewService(&fakeRepo{
		createAppointmentFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			appt.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
			return appt, nil
		},
	}, cache)

	_, err := svc.CreateBooking(context.Background(), CreateBookingInput{
		ProviderID: "p1",
		VenueID:    "v1",
		ServiceID:  "s1",
		CustomerID: "c1",
		Date:       "2026-09-01",
		TimeOfDay:  "09:00",
	})
	if err != nil {
		t.Fatalf("CreateBooking error: %v", err)
	}
	if len(cache.invalidateDays) != 1 || cache.invalidateDays[0] != "p1/2026-09-01" {
		t.Fatalf("invalidated days = %v", cache.invalidateDays)
	}
}

func TestTransitionAppointment_RejectsUnknownTarget(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	_, err := svc.TransitionAppointment(context.Background(), uuid.MustParse("00000000-0000-0000-0000-000000000001"), "archived")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestTransitionAppointment_StateErrorPassesThrough(t *testing.T) {
	svc := NewService(&fakeRepo{
		transitionFn: func(ctx context.Context, id uuid.UUID, target domain.AppointmentStatus) (domain.Appointment, error) {
			return domain.Appointment{}, &domain.StateError{From: domain.StatusCancelled, To: domain.StatusCompleted}
		},
	}, nil)

	_, err := svc.TransitionAppointment(context.Background(), uuid.MustParse("00000000-0000-0000-0000-000000000001"), domain.StatusCompleted)
	var stErr *domain.StateError
	if !errors.As(err, &stErr) {
		t.Fatalf("error type = %T, want *domain.StateError", err)
	}
}

func TestAddWorkingSlots_ValidatesEntries(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	var vErr *ValidationError
	if _, err := svc.AddWorkingSlots(context.Background(), "p1", nil); !errors.As(err, &vErr) {
		t.Fatalf("empty entries: error type = %T, want *ValidationError", err)
	}
	if _, err := svc.AddWorkingSlots(context.Background(), "p1", []domain.SlotEntry{{Weekday: 7, TimeOfDay: "09:00"}}); !errors.As(err, &vErr) {
		t.Fatalf("bad weekday: error type = %T, want *ValidationError", err)
	}
	if _, err := svc.AddWorkingSlots(context.Background(), "p1", []domain.SlotEntry{{Weekday: 1, TimeOfDay: "9:00"}}); !errors.As(err, &vErr) {
		t.Fatalf("bad time: error type = %T, want *ValidationError", err)
	}
}

func TestAddWorkingSlots_InvalidatesProviderOnlyWhenCreated(t *testing.T) {
	cache := &fakeCache{}
	created := 0
	svc := NewService(&fakeRepo{
		addWorkingSlotsFn: func(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
			return created, nil
		},
	}, cache)

	entries := []domain.SlotEntry{{Weekday: 2, TimeOfDay: "09:00"}}

	if _, err := svc.AddWorkingSlots(context.Background(), "p1", entries); err != nil {
		t.Fatalf("AddWorkingSlots error: %v", err)
	}
	if len(cache.invalidatedProviders) != 0 {
		t.Fatalf("no-op add must not invalidate, got %v", cache.invalidatedProviders)
	}

	created = 1
	if _, err := svc.AddWorkingSlots(context.Background(), "p1", entries); err != nil {
		t.Fatalf("AddWorkingSlots error: %v", err)
	}
	if !reflect.DeepEqual(cache.invalidatedProviders, []string{"p1"}) {
		t.Fatalf("invalidated providers = %v", cache.invalidatedProviders)
	}
}

func TestRemoveWorkingSlots_ReturnsCancelCountAndInvalidates(t *testing.T) {
	cache := &fakeCache{}
	svc := NewService(&fakeRepo{
		removeWorkingSlotsFn: func(ctx context.Context, providerID string, entries []domain.SlotEntry) (int, error) {
			return 3, nil
		},
	}, cache)

	cancelled, err := svc.RemoveWorkingSlots(context.Background(), "p1", []domain.SlotEntry{{Weekday: 2, TimeOfDay: "09:00"}})
	if err != nil {
		t.Fatalf("RemoveWorkingSlots error: %v", err)
	}
	if cancelled != 3 {
		t.Fatalf("cancelled = %d, want 3", cancelled)
	}
	if !reflect.DeepEqual(cache.invalidatedProviders, []string{"p1"}) {
		t.Fatalf("invalidated providers = %v", cache.invalidatedProviders)
	}
}

func TestPurgeCancelled_ValidatesBeforeDate(t *testing.T) {
	svc := NewService(&fakeRepo{}, nil)

	var vErr *ValidationError
	if _, err := svc.PurgeCancelled(context.Background(), "p1", "last week"); !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}
