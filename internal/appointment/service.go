package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/reflexoperu/clinic-appointments/internal/redis"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrSyncRequired = errors.New("external sync did not return an event id")
)

// SlotUnavailableError reports an availability conflict together with every
// appointment the proposed slot collides with.
type SlotUnavailableError struct {
	Conflicts []Appointment
}

func (e *SlotUnavailableError) Error() string {
	return fmt.Sprintf("slot unavailable: %d conflicting appointment(s)", len(e.Conflicts))
}

type Service struct {
	repo Repository
	seq  redisclient.Sequencer
	sync *Orchestrator
	now  func() time.Time
}

func NewService(repo Repository, seq redisclient.Sequencer, sync *Orchestrator) *Service {
	return &Service{
		repo: repo,
		seq:  seq,
		sync: sync,
		now:  time.Now,
	}
}

type CreateInput struct {
	PatientID       uuid.UUID
	TherapistID     *uuid.UUID
	AppointmentDate string
	Hour            string
	DurationMinutes *int

	Title           *string
	Ailments        *string
	Diagnosis       *string
	Observation     *string
	AppointmentType *string
	Room            *int
	Payment         *float64
	PaymentDetail   *string

	GHLContactID  *string
	GHLLocationID *string
	GHLCalendarID *string

	// CheckAvailability opts into the advisory overlap pre-check.
	CheckAvailability bool
}

// CreateResult reports both halves of a creation: the committed local state
// and the outcome of the external sync attempt.
type CreateResult struct {
	Appointment *Appointment
	Ticket      *Ticket
	Sync        SyncResult
}

// ListResult carries one page of appointments plus the unpaged total.
type ListResult struct {
	Items []Appointment
	Total int
}

// Create persists a new appointment together with its billing ticket, then
// makes a single best-effort attempt to mirror it into the external calendar.
// The sync outcome is reported in the result, never as an error of its own.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}

	slot, err := NormalizeSlot(in.AppointmentDate, in.Hour, in.DurationMinutes)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if in.TherapistID != nil {
		if _, err := s.repo.GetTherapistByID(ctx, *in.TherapistID); err != nil {
			if errors.Is(err, ErrTherapistNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load therapist: %w", err)
		}
	}

	day, _ := ParseDate(in.AppointmentDate)
	hour, _ := ParseHour(in.Hour)

	if in.CheckAvailability {
		sameDay, err := s.repo.ListAppointmentsOnDate(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("load appointments for availability check: %w", err)
		}
		if res := CheckSlot(slot, sameDay, uuid.Nil); !res.Available {
			return nil, &SlotUnavailableError{Conflicts: res.Conflicts}
		}
	}

	ticketNumber, err := s.seq.NextTicketNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate ticket number: %w", err)
	}

	appt := &Appointment{
		PatientID:       in.PatientID,
		TherapistID:     in.TherapistID,
		AppointmentDate: day,
		Hour:            hour,
		DurationMinutes: in.DurationMinutes,
		Title:           in.Title,
		Ailments:        in.Ailments,
		Diagnosis:       in.Diagnosis,
		Observation:     in.Observation,
		AppointmentType: in.AppointmentType,
		Room:            in.Room,
		Payment:         in.Payment,
		PaymentDetail:   in.PaymentDetail,
		GHLContactID:    in.GHLContactID,
		GHLLocationID:   in.GHLLocationID,
		GHLCalendarID:   in.GHLCalendarID,
	}

	created, ticket, err := s.repo.CreateAppointmentWithTicket(ctx, appt, ticketNumber)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	syncRes := s.sync.Run(ctx, created)

	return &CreateResult{
		Appointment: created,
		Ticket:      ticket,
		Sync:        syncRes,
	}, nil
}

// CreateWithSync is Create with the external mirror made mandatory: a skipped
// or failed sync is an error. The local appointment still stands either way;
// the result is returned alongside the error so callers can see it.
func (s *Service) CreateWithSync(ctx context.Context, in CreateInput) (*CreateResult, error) {
	res, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	switch res.Sync.Status {
	case SyncOK:
		return res, nil
	case SyncFailed:
		return res, fmt.Errorf("%w: %v", ErrSyncRequired, res.Sync.Err)
	default:
		return res, fmt.Errorf("%w: appointment is missing contact, location or calendar id", ErrSyncRequired)
	}
}

// Get returns the appointment by direct id lookup, soft-deleted ones
// included so audit fields stay visible after a delete.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) GetTicket(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	return s.repo.GetTicketByID(ctx, id)
}

func (s *Service) GetTicketForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Ticket, error) {
	return s.repo.GetTicketByAppointmentID(ctx, appointmentID)
}

func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	items, total, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return &ListResult{Items: items, Total: total}, nil
}

func (s *Service) ByDateRange(ctx context.Context, start, end time.Time, f ListFilter) ([]Appointment, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end_date before start_date", ErrValidation)
	}
	items, err := s.repo.ListAppointmentsInRange(ctx, start, end, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments by range: %w", err)
	}
	return items, nil
}

func (s *Service) Completed(ctx context.Context, f ListFilter) ([]Appointment, error) {
	items, err := s.repo.ListCompletedAppointments(ctx, dateOnly(s.now()), f)
	if err != nil {
		return nil, fmt.Errorf("list completed appointments: %w", err)
	}
	return items, nil
}

func (s *Service) Pending(ctx context.Context, f ListFilter) ([]Appointment, error) {
	items, err := s.repo.ListPendingAppointments(ctx, dateOnly(s.now()), f)
	if err != nil {
		return nil, fmt.Errorf("list pending appointments: %w", err)
	}
	return items, nil
}

type UpdateInput struct {
	TherapistID     *uuid.UUID
	AppointmentDate *string
	Hour            *string
	DurationMinutes *int

	Title           *string
	Ailments        *string
	Diagnosis       *string
	Observation     *string
	AppointmentType *string
	Room            *int
	Payment         *float64
	PaymentDetail   *string

	Status *Status

	GHLContactID  *string
	GHLLocationID *string
	GHLCalendarID *string
}

// Update applies only the fields present in the input. Status stays untouched
// unless explicitly included.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	appt, err := s.repo.GetActiveAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.AppointmentDate != nil {
		day, err := ParseDate(*in.AppointmentDate)
		if err != nil {
			return nil, err
		}
		appt.AppointmentDate = day
	}
	if in.Hour != nil {
		hh, err := ParseHour(*in.Hour)
		if err != nil {
			return nil, err
		}
		appt.Hour = hh
	}
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return nil, fmt.Errorf("%w: duration must be positive", ErrValidation)
		}
		appt.DurationMinutes = in.DurationMinutes
	}
	if in.Status != nil {
		if !ValidStatus(*in.Status) {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
		appt.Status = *in.Status
	}
	if in.TherapistID != nil {
		if _, err := s.repo.GetTherapistByID(ctx, *in.TherapistID); err != nil {
			return nil, err
		}
		appt.TherapistID = in.TherapistID
	}
	if in.Title != nil {
		appt.Title = in.Title
	}
	if in.Ailments != nil {
		appt.Ailments = in.Ailments
	}
	if in.Diagnosis != nil {
		appt.Diagnosis = in.Diagnosis
	}
	if in.Observation != nil {
		appt.Observation = in.Observation
	}
	if in.AppointmentType != nil {
		appt.AppointmentType = in.AppointmentType
	}
	if in.Room != nil {
		appt.Room = in.Room
	}
	if in.Payment != nil {
		appt.Payment = in.Payment
	}
	if in.PaymentDetail != nil {
		appt.PaymentDetail = in.PaymentDetail
	}
	if in.GHLContactID != nil {
		appt.GHLContactID = in.GHLContactID
	}
	if in.GHLLocationID != nil {
		appt.GHLLocationID = in.GHLLocationID
	}
	if in.GHLCalendarID != nil {
		appt.GHLCalendarID = in.GHLCalendarID
	}

	updated, err := s.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("update appointment %s: %w", id, err)
	}
	return updated, nil
}

// Cancel marks the appointment CANCELLED and cascades to its ticket.
// Cancelling an already-cancelled appointment is a no-op success.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetActiveAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status == StatusCancelled {
		return appt, nil
	}

	cancelled, err := s.repo.CancelAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel appointment %s: %w", id, err)
	}
	return cancelled, nil
}

// Reschedule moves the appointment to a new slot after re-validating
// availability, excluding the appointment's own current booking from the
// conflict set. On conflict the original date and hour are left untouched.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate, newHour string) (*Appointment, error) {
	appt, err := s.repo.GetActiveAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	slot, err := NormalizeSlot(newDate, newHour, appt.DurationMinutes)
	if err != nil {
		return nil, err
	}

	day, _ := ParseDate(newDate)
	hour, _ := ParseHour(newHour)

	sameDay, err := s.repo.ListAppointmentsOnDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load appointments for reschedule check: %w", err)
	}
	if res := CheckSlot(slot, sameDay, id); !res.Available {
		return nil, &SlotUnavailableError{Conflicts: res.Conflicts}
	}

	appt.AppointmentDate = day
	appt.Hour = hour

	updated, err := s.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("reschedule appointment %s: %w", id, err)
	}
	return updated, nil
}

// Delete soft-deletes the appointment and its ticket. A second delete on the
// same id reports not found, since lookups exclude deleted rows.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment %s: %w", id, err)
	}
	return nil
}

// CheckAvailability runs the advisory overlap check for a proposed slot.
func (s *Service) CheckAvailability(ctx context.Context, date, hour string, durationMinutes *int) (*AvailabilityResult, error) {
	slot, err := NormalizeSlot(date, hour, durationMinutes)
	if err != nil {
		return nil, err
	}

	day, _ := ParseDate(date)

	sameDay, err := s.repo.ListAppointmentsOnDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load appointments for availability check: %w", err)
	}

	res := CheckSlot(slot, sameDay, uuid.Nil)
	return &res, nil
}

// Now exposes the service clock, used by the HTTP layer to derive statuses.
func (s *Service) Now() time.Time {
	return s.now()
}
