package booking

import (
	"sort"
	"time"

	"trimtab/backend/internal/domain"
)

// Availability is a point-in-time snapshot of a provider's day. WorkingDay
// distinguishes "provider does not work this weekday" from "fully booked":
// both have empty Slots.
type Availability struct {
	WorkingDay bool
	Slots      []string
}

// openSlots returns candidate template times minus the times held by
// non-cancelled appointments, sorted ascending. HH:MM strings sort
// lexicographically in chronological order.
func openSlots(candidates []domain.WorkingSlotTemplate, appts []domain.Appointment) []string {
	occupied := make(map[string]struct{}, len(appts))
	for _, a := range appts {
		if a.Status.Occupies() {
			occupied[a.TimeOfDay] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(candidates))
	open := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := occupied[c.TimeOfDay]; ok {
			continue
		}
		if _, ok := seen[c.TimeOfDay]; ok {
			continue
		}
		seen[c.TimeOfDay] = struct{}{}
		open = append(open, c.TimeOfDay)
	}

	sort.Strings(open)
	return open
}

// applySameDayCutoff drops slots at or before now's time of day when the
// requested date is now's calendar date. Other dates pass through untouched.
func applySameDayCutoff(av Availability, date string, now time.Time) Availability {
	if !av.WorkingDay || date != domain.DateOf(now) {
		return av
	}
	cutoff := domain.TimeOfDayOf(now)
	kept := make([]string, 0, len(av.Slots))
	for _, s := range av.Slots {
		if s > cutoff {
			kept = append(kept, s)
		}
	}
	av.Slots = kept
	return av
}
