package domain

import "testing"

func TestAppointmentStatusTransitions(t *testing.T) {
	cases := []struct {
		name string
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{"confirmed to completed", StatusConfirmed, StatusCompleted, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to confirmed", StatusConfirmed, StatusConfirmed, false},
		{"completed to cancelled", StatusCompleted, StatusCancelled, false},
		{"completed to confirmed", StatusCompleted, StatusConfirmed, false},
		{"cancelled to confirmed", StatusCancelled, StatusConfirmed, false},
		{"cancelled to completed", StatusCancelled, StatusCompleted, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
				t.Fatalf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestAppointmentStatusTerminal(t *testing.T) {
	if StatusConfirmed.Terminal() {
		t.Fatalf("confirmed must not be terminal")
	}
	if !StatusCompleted.Terminal() {
		t.Fatalf("completed must be terminal")
	}
	if !StatusCancelled.Terminal() {
		t.Fatalf("cancelled must be terminal")
	}
}

func TestAppointmentStatusOccupies(t *testing.T) {
	if !StatusConfirmed.Occupies() {
		t.Fatalf("confirmed must occupy its slot")
	}
	if !StatusCompleted.Occupies() {
		t.Fatalf("completed must keep its slot occupied")
	}
	if StatusCancelled.Occupies() {
		t.Fatalf("cancelled must free its slot")
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	for _, s := range []string{"confirmed", "completed", "cancelled"} {
		got, err := ParseAppointmentStatus(s)
		if err != nil {
			t.Fatalf("ParseAppointmentStatus(%q) error: %v", s, err)
		}
		if string(got) != s {
			t.Fatalf("ParseAppointmentStatus(%q) = %q", s, got)
		}
	}

	for _, s := range []string{"", "Confirmed", "pending", "done"} {
		if _, err := ParseAppointmentStatus(s); err == nil {
			t.Fatalf("ParseAppointmentStatus(%q) expected error", s)
		}
	}
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{From: StatusCompleted, To: StatusCancelled}
	want := "cannot transition appointment from completed to cancelled"
	if err.Error() != want {
		t.Fatalf("error = %q, want %q", err.Error(), want)
	}
}
