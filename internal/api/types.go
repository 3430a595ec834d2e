package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/reflexoperu/clinic-appointments/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID       string   `json:"patient_id"`
	TherapistID     *string  `json:"therapist_id,omitempty"`
	AppointmentDate string   `json:"appointment_date"`
	Hour            string   `json:"hour"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Title           *string  `json:"title,omitempty"`
	Ailments        *string  `json:"ailments,omitempty"`
	Diagnosis       *string  `json:"diagnosis,omitempty"`
	Observation     *string  `json:"observation,omitempty"`
	AppointmentType *string  `json:"appointment_type,omitempty"`
	Room            *int     `json:"room,omitempty"`
	Payment         *float64 `json:"payment,omitempty"`
	PaymentDetail   *string  `json:"payment_detail,omitempty"`

	ContactID  *string `json:"contact_id,omitempty"`
	LocationID *string `json:"location_id,omitempty"`
	CalendarID *string `json:"calendar_id,omitempty"`

	CheckAvailability bool `json:"check_availability,omitempty"`
}

type UpdateAppointmentRequest struct {
	TherapistID     *string  `json:"therapist_id,omitempty"`
	AppointmentDate *string  `json:"appointment_date,omitempty"`
	Hour            *string  `json:"hour,omitempty"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	Title           *string  `json:"title,omitempty"`
	Ailments        *string  `json:"ailments,omitempty"`
	Diagnosis       *string  `json:"diagnosis,omitempty"`
	Observation     *string  `json:"observation,omitempty"`
	AppointmentType *string  `json:"appointment_type,omitempty"`
	Room            *int     `json:"room,omitempty"`
	Payment         *float64 `json:"payment,omitempty"`
	PaymentDetail   *string  `json:"payment_detail,omitempty"`
	Status          *string  `json:"appointment_status,omitempty"`
	ContactID       *string  `json:"contact_id,omitempty"`
	LocationID      *string  `json:"location_id,omitempty"`
	CalendarID      *string  `json:"calendar_id,omitempty"`
}

type RescheduleRequest struct {
	AppointmentDate string `json:"appointment_date"`
	Hour            string `json:"hour"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	TherapistID     *uuid.UUID `json:"therapist_id,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	Hour            string     `json:"hour"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Ailments        *string    `json:"ailments,omitempty"`
	Diagnosis       *string    `json:"diagnosis,omitempty"`
	Observation     *string    `json:"observation,omitempty"`
	AppointmentType *string    `json:"appointment_type,omitempty"`
	Room            *int       `json:"room,omitempty"`
	Payment         *float64   `json:"payment,omitempty"`
	PaymentDetail   *string    `json:"payment_detail,omitempty"`
	Status          string     `json:"appointment_status"`
	ExternalEventID *string    `json:"external_id,omitempty"`
	ContactID       *string    `json:"contact_id,omitempty"`
	LocationID      *string    `json:"location_id,omitempty"`
	CalendarID      *string    `json:"calendar_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

type TicketResponse struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	TicketNumber  string     `json:"ticket_number"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

// CreateAppointmentResponse distinguishes "appointment booked, calendar not
// updated" from full success: sync_status is one of ok, skipped, failed.
type CreateAppointmentResponse struct {
	Appointment  AppointmentResponse `json:"appointment"`
	TicketNumber string              `json:"ticket_number"`
	SyncStatus   string              `json:"sync_status"`
	SyncError    string              `json:"sync_error,omitempty"`
	ExternalID   string              `json:"external_id,omitempty"`
}

type CreateWithGHLResponse struct {
	Message       string    `json:"message"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ExternalID    string    `json:"external_id"`
}

type ListAppointmentsResponse struct {
	Count   int                   `json:"count"`
	Results []AppointmentResponse `json:"results"`
}

type CheckAvailabilityResponse struct {
	IsAvailable             bool `json:"is_available"`
	ConflictingAppointments int  `json:"conflicting_appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, today time.Time) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		TherapistID:     a.TherapistID,
		AppointmentDate: a.AppointmentDate.Format("2006-01-02"),
		Hour:            a.Hour,
		DurationMinutes: a.DurationMinutes,
		Title:           a.Title,
		Ailments:        a.Ailments,
		Diagnosis:       a.Diagnosis,
		Observation:     a.Observation,
		AppointmentType: a.AppointmentType,
		Room:            a.Room,
		Payment:         a.Payment,
		PaymentDetail:   a.PaymentDetail,
		Status:          string(a.EffectiveStatus(today)),
		ExternalEventID: a.ExternalEventID,
		ContactID:       a.GHLContactID,
		LocationID:      a.GHLLocationID,
		CalendarID:      a.GHLCalendarID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		DeletedAt:       a.DeletedAt,
	}
}

func toTicketResponse(t *appointment.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		AppointmentID: t.AppointmentID,
		TicketNumber:  t.TicketNumber,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		DeletedAt:     t.DeletedAt,
	}
}

func toAppointmentResponses(items []appointment.Appointment, today time.Time) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for i := range items {
		out = append(out, toAppointmentResponse(&items[i], today))
	}
	return out
}
