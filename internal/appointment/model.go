package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatus reports whether s is one of the known appointment statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketCancelled TicketStatus = "cancelled"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Therapist struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is a booked clinic visit. The clinical and payment fields are
// opaque to the scheduling logic; status is mostly derived (see
// EffectiveStatus), with CANCELLED as the only independently stored override.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	TherapistID     *uuid.UUID
	AppointmentDate time.Time // date only, midnight UTC
	Hour            string    // HH:MM, clinic-local wall clock
	DurationMinutes *int

	Title           *string
	Ailments        *string
	Diagnosis       *string
	Observation     *string
	AppointmentType *string
	Room            *int
	Payment         *float64
	PaymentDetail   *string

	Status Status

	// External scheduling service identifiers
	ExternalEventID *string
	GHLContactID    *string
	GHLLocationID   *string
	GHLCalendarID   *string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Ticket is the billing record generated one-to-one with an appointment.
type Ticket struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	TicketNumber  string
	Status        TicketStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// IsCompleted reports whether the appointment date lies strictly before today.
func (a *Appointment) IsCompleted(today time.Time) bool {
	return a.AppointmentDate.Before(dateOnly(today))
}

// IsPending reports whether the appointment date is today or later.
func (a *Appointment) IsPending(today time.Time) bool {
	return !a.AppointmentDate.Before(dateOnly(today))
}

// EffectiveStatus derives the visible status from the date, with CANCELLED
// as the only stored value that overrides the derivation.
func (a *Appointment) EffectiveStatus(today time.Time) Status {
	if a.Status == StatusCancelled {
		return StatusCancelled
	}
	if a.IsCompleted(today) {
		return StatusCompleted
	}
	return StatusPending
}

// IsDeleted reports whether the appointment has been soft-deleted.
func (a *Appointment) IsDeleted() bool {
	return a.DeletedAt != nil
}

// Duration returns the appointment duration, applying the default when unset.
func (a *Appointment) Duration() time.Duration {
	if a.DurationMinutes != nil && *a.DurationMinutes > 0 {
		return time.Duration(*a.DurationMinutes) * time.Minute
	}
	return DefaultDuration
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
