package domain

import "github.com/uptrace/bun"

// WorkingSlotTemplate is one entry of a provider's recurring weekly pattern:
// the provider offers a bookable slot at TimeOfDay on every date that falls
// on Weekday. Templates have no lifecycle beyond existence.
type WorkingSlotTemplate struct {
	bun.BaseModel `bun:"table:working_slot_templates"`

	ProviderID string `bun:"provider_id,pk"`
	Weekday    int    `bun:"weekday,pk"`
	TimeOfDay  string `bun:"time_of_day,pk"`
}

// SlotEntry identifies a recurring slot within a provider's schedule.
type SlotEntry struct {
	Weekday   int    `json:"weekday"`
	TimeOfDay string `json:"time_of_day"`
}
