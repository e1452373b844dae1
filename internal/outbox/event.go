package outbox

// Event is the domain event envelope written to the outbox table in the same
// transaction as the state change it describes. The Kafka topic name equals
// EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Aggregate types partition the event stream by the entity the event is
// about: appointment lifecycle events key on the appointment id, schedule
// events on the provider id.
const (
	AggregateAppointment = "appointment"
	AggregateSchedule    = "schedule"
)

const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventScheduleSlotsRemoved = "booking.schedule.slots_removed.v1"
)
