package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrTherapistNotFound   = errors.New("therapist not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTicketNotFound      = errors.New("ticket not found")
	ErrDuplicateTicket     = errors.New("duplicate ticket number")
)

// ListFilter narrows listing queries. Nil fields are not applied.
type ListFilter struct {
	Date        *time.Time
	Status      *Status
	PatientID   *uuid.UUID
	TherapistID *uuid.UUID
	Page        int
	PageSize    int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error)

	// GetAppointmentByID returns the row regardless of soft deletion so a
	// direct lookup can still see audit fields after a delete.
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetActiveAppointmentByID excludes soft-deleted rows; mutations use it.
	GetActiveAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For availability checks: every non-deleted appointment on the date.
	ListAppointmentsOnDate(ctx context.Context, date time.Time) ([]Appointment, error)

	// Creation: appointment and its ticket commit or roll back together.
	CreateAppointmentWithTicket(ctx context.Context, appt *Appointment, ticketNumber string) (*Appointment, *Ticket, error)

	UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	SetExternalEventID(ctx context.Context, id uuid.UUID, externalID string) error

	// CancelAppointment marks the appointment CANCELLED and cascades the
	// cancellation to its ticket in one transaction.
	CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// SoftDeleteAppointment stamps deleted_at on the appointment and its
	// ticket in one transaction.
	SoftDeleteAppointment(ctx context.Context, id uuid.UUID) error

	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error)
	ListAppointmentsInRange(ctx context.Context, start, end time.Time, f ListFilter) ([]Appointment, error)
	ListCompletedAppointments(ctx context.Context, today time.Time, f ListFilter) ([]Appointment, error)
	ListPendingAppointments(ctx context.Context, today time.Time, f ListFilter) ([]Appointment, error)

	GetTicketByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetTicketByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Ticket, error)
}
