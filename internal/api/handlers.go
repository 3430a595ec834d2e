package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reflexoperu/clinic-appointments/internal/appointment"
)

// Service is the slice of the appointment service the HTTP layer needs.
// Tests stub it.
type Service interface {
	Create(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error)
	CreateWithSync(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetTicket(ctx context.Context, id uuid.UUID) (*appointment.Ticket, error)
	List(ctx context.Context, f appointment.ListFilter) (*appointment.ListResult, error)
	ByDateRange(ctx context.Context, start, end time.Time, f appointment.ListFilter) ([]appointment.Appointment, error)
	Completed(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	Pending(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, in appointment.UpdateInput) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, newDate, newHour string) (*appointment.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CheckAvailability(ctx context.Context, date, hour string, durationMinutes *int) (*appointment.AvailabilityResult, error)
	Now() time.Time
}

func createAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeCreateRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.Create(r.Context(), in)
		if err != nil {
			handleServiceError(w, "create", err)
			return
		}

		writeJSON(w, http.StatusCreated, buildCreateResponse(res, svc.Now()))
	}
}

// createWithGHLHandler forces the external sync: local creation without a
// mirrored calendar event is reported as a failure, though the local
// appointment stays committed.
func createWithGHLHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeCreateRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.CreateWithSync(r.Context(), in)
		if err != nil {
			if errors.Is(err, appointment.ErrSyncRequired) {
				writeError(w, http.StatusBadRequest, "sync_failed", err.Error())
				return
			}
			handleServiceError(w, "create_with_ghl", err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateWithGHLResponse{
			Message:       "appointment created and synced",
			AppointmentID: res.Appointment.ID,
			ExternalID:    res.Sync.ExternalID,
		})
	}
}

func getAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, "get", err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Now()))
	}
}

func listAppointmentsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		res, err := svc.List(r.Context(), f)
		if err != nil {
			handleServiceError(w, "list", err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Count:   res.Total,
			Results: toAppointmentResponses(res.Items, svc.Now()),
		})
	}
}

func updateAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in := appointment.UpdateInput{
			AppointmentDate: req.AppointmentDate,
			Hour:            req.Hour,
			DurationMinutes: req.DurationMinutes,
			Title:           req.Title,
			Ailments:        req.Ailments,
			Diagnosis:       req.Diagnosis,
			Observation:     req.Observation,
			AppointmentType: req.AppointmentType,
			Room:            req.Room,
			Payment:         req.Payment,
			PaymentDetail:   req.PaymentDetail,
			GHLContactID:    req.ContactID,
			GHLLocationID:   req.LocationID,
			GHLCalendarID:   req.CalendarID,
		}
		if req.TherapistID != nil {
			tid, err := uuid.Parse(*req.TherapistID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
				return
			}
			in.TherapistID = &tid
		}
		if req.Status != nil {
			st := appointment.Status(*req.Status)
			in.Status = &st
		}

		appt, err := svc.Update(r.Context(), id, in)
		if err != nil {
			handleServiceError(w, "update", err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Now()))
	}
}

func deleteAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleServiceError(w, "delete", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "appointment deleted"})
	}
}

func cancelAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleServiceError(w, "cancel", err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Now()))
	}
}

func rescheduleAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.AppointmentDate == "" || req.Hour == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "appointment_date and hour are required")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, req.AppointmentDate, req.Hour)
		if err != nil {
			handleServiceError(w, "reschedule", err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, svc.Now()))
	}
}

func completedAppointmentsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		items, err := svc.Completed(r.Context(), f)
		if err != nil {
			handleServiceError(w, "completed", err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Count:   len(items),
			Results: toAppointmentResponses(items, svc.Now()),
		})
	}
}

func pendingAppointmentsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		items, err := svc.Pending(r.Context(), f)
		if err != nil {
			handleServiceError(w, "pending", err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Count:   len(items),
			Results: toAppointmentResponses(items, svc.Now()),
		})
	}
}

func byDateRangeHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startStr := r.URL.Query().Get("start_date")
		endStr := r.URL.Query().Get("end_date")
		if startStr == "" || endStr == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "start_date and end_date are required")
			return
		}

		start, err := appointment.ParseDate(startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", err.Error())
			return
		}
		end, err := appointment.ParseDate(endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", err.Error())
			return
		}

		f, err := parseListFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		items, err := svc.ByDateRange(r.Context(), start, end, f)
		if err != nil {
			handleServiceError(w, "by_date_range", err)
			return
		}

		writeJSON(w, http.StatusOK, ListAppointmentsResponse{
			Count:   len(items),
			Results: toAppointmentResponses(items, svc.Now()),
		})
	}
}

func checkAvailabilityHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		date := q.Get("date")
		hour := q.Get("hour")
		if date == "" || hour == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "date and hour are required")
			return
		}

		var duration *int
		if d := q.Get("duration"); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be an integer")
				return
			}
			duration = &n
		}

		res, err := svc.CheckAvailability(r.Context(), date, hour, duration)
		if err != nil {
			handleServiceError(w, "check_availability", err)
			return
		}

		writeJSON(w, http.StatusOK, CheckAvailabilityResponse{
			IsAvailable:             res.Available,
			ConflictingAppointments: len(res.Conflicts),
		})
	}
}

func getTicketHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		ticket, err := svc.GetTicket(r.Context(), id)
		if err != nil {
			handleServiceError(w, "get_ticket", err)
			return
		}

		writeJSON(w, http.StatusOK, toTicketResponse(ticket))
	}
}

// Helpers

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (appointment.CreateInput, bool) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return appointment.CreateInput{}, false
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return appointment.CreateInput{}, false
	}

	in := appointment.CreateInput{
		PatientID:         patientID,
		AppointmentDate:   req.AppointmentDate,
		Hour:              req.Hour,
		DurationMinutes:   req.DurationMinutes,
		Title:             req.Title,
		Ailments:          req.Ailments,
		Diagnosis:         req.Diagnosis,
		Observation:       req.Observation,
		AppointmentType:   req.AppointmentType,
		Room:              req.Room,
		Payment:           req.Payment,
		PaymentDetail:     req.PaymentDetail,
		GHLContactID:      req.ContactID,
		GHLLocationID:     req.LocationID,
		GHLCalendarID:     req.CalendarID,
		CheckAvailability: req.CheckAvailability,
	}

	if req.TherapistID != nil {
		tid, err := uuid.Parse(*req.TherapistID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_therapist_id", "therapist_id must be a valid UUID")
			return appointment.CreateInput{}, false
		}
		in.TherapistID = &tid
	}

	return in, true
}

func buildCreateResponse(res *appointment.CreateResult, today time.Time) CreateAppointmentResponse {
	out := CreateAppointmentResponse{
		Appointment:  toAppointmentResponse(res.Appointment, today),
		TicketNumber: res.Ticket.TicketNumber,
		SyncStatus:   string(res.Sync.Status),
		ExternalID:   res.Sync.ExternalID,
	}
	if res.Sync.Err != nil {
		out.SyncError = res.Sync.Err.Error()
	}
	return out
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (appointment.ListFilter, error) {
	q := r.URL.Query()
	var f appointment.ListFilter

	if v := q.Get("appointment_date"); v != "" {
		d, err := appointment.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	if v := q.Get("appointment_status"); v != "" {
		st := appointment.Status(v)
		if !appointment.ValidStatus(st) {
			return f, fmt.Errorf("unknown appointment_status %q", v)
		}
		f.Status = &st
	}
	if v := q.Get("patient"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("patient must be a valid UUID")
		}
		f.PatientID = &id
	}
	if v := q.Get("therapist"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, fmt.Errorf("therapist must be a valid UUID")
		}
		f.TherapistID = &id
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("page must be an integer")
		}
		f.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("page_size must be an integer")
		}
		f.PageSize = n
	}

	return f, nil
}

func handleServiceError(w http.ResponseWriter, op string, err error) {
	var slotErr *appointment.SlotUnavailableError

	switch {
	case errors.As(err, &slotErr):
		writeError(w, http.StatusBadRequest, "slot_unavailable",
			fmt.Sprintf("the requested slot conflicts with %d existing appointment(s)", len(slotErr.Conflicts)))
	case errors.Is(err, appointment.ErrValidation),
		errors.Is(err, appointment.ErrMissingField),
		errors.Is(err, appointment.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "ticket_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrTherapistNotFound):
		writeError(w, http.StatusNotFound, "therapist_not_found", err.Error())
	default:
		log.Printf("op=%s internal error: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
