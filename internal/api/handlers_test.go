package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reflexoperu/clinic-appointments/internal/appointment"
)

// stubService implements Service with overridable function fields.
type stubService struct {
	createFn            func(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error)
	createWithSyncFn    func(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error)
	getFn               func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	getTicketFn         func(ctx context.Context, id uuid.UUID) (*appointment.Ticket, error)
	listFn              func(ctx context.Context, f appointment.ListFilter) (*appointment.ListResult, error)
	byDateRangeFn       func(ctx context.Context, start, end time.Time, f appointment.ListFilter) ([]appointment.Appointment, error)
	completedFn         func(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	pendingFn           func(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error)
	updateFn            func(ctx context.Context, id uuid.UUID, in appointment.UpdateInput) (*appointment.Appointment, error)
	cancelFn            func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	rescheduleFn        func(ctx context.Context, id uuid.UUID, newDate, newHour string) (*appointment.Appointment, error)
	deleteFn            func(ctx context.Context, id uuid.UUID) error
	checkAvailabilityFn func(ctx context.Context, date, hour string, durationMinutes *int) (*appointment.AvailabilityResult, error)
}

func (s *stubService) Create(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error) {
	return s.createFn(ctx, in)
}

func (s *stubService) CreateWithSync(ctx context.Context, in appointment.CreateInput) (*appointment.CreateResult, error) {
	return s.createWithSyncFn(ctx, in)
}

func (s *stubService) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.getFn(ctx, id)
}

func (s *stubService) GetTicket(ctx context.Context, id uuid.UUID) (*appointment.Ticket, error) {
	return s.getTicketFn(ctx, id)
}

func (s *stubService) List(ctx context.Context, f appointment.ListFilter) (*appointment.ListResult, error) {
	return s.listFn(ctx, f)
}

func (s *stubService) ByDateRange(ctx context.Context, start, end time.Time, f appointment.ListFilter) ([]appointment.Appointment, error) {
	return s.byDateRangeFn(ctx, start, end, f)
}

func (s *stubService) Completed(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	return s.completedFn(ctx, f)
}

func (s *stubService) Pending(ctx context.Context, f appointment.ListFilter) ([]appointment.Appointment, error) {
	return s.pendingFn(ctx, f)
}

func (s *stubService) Update(ctx context.Context, id uuid.UUID, in appointment.UpdateInput) (*appointment.Appointment, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubService) Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.cancelFn(ctx, id)
}

func (s *stubService) Reschedule(ctx context.Context, id uuid.UUID, newDate, newHour string) (*appointment.Appointment, error) {
	return s.rescheduleFn(ctx, id, newDate, newHour)
}

func (s *stubService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}

func (s *stubService) CheckAvailability(ctx context.Context, date, hour string, durationMinutes *int) (*appointment.AvailabilityResult, error) {
	return s.checkAvailabilityFn(ctx, date, hour, durationMinutes)
}

func (s *stubService) Now() time.Time {
	return time.Date(2030, 4, 10, 12, 0, 0, 0, time.UTC)
}

func newTestRouter(svc Service) http.Handler {
	return NewRouter(RouterConfig{Service: svc, Env: "test", Version: "test"})
}

func sampleAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		AppointmentDate: time.Date(2030, 4, 11, 0, 0, 0, 0, time.UTC),
		Hour:            "10:00",
		Status:          appointment.StatusPending,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func sampleTicket(appointmentID uuid.UUID) *appointment.Ticket {
	return &appointment.Ticket{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		TicketNumber:  "TKT-000042",
		Status:        appointment.TicketActive,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAppointment_Created(t *testing.T) {
	appt := sampleAppointment()
	svc := &stubService{
		createFn: func(_ context.Context, in appointment.CreateInput) (*appointment.CreateResult, error) {
			assert.Equal(t, "10:00", in.Hour)
			return &appointment.CreateResult{
				Appointment: appt,
				Ticket:      sampleTicket(appt.ID),
				Sync:        appointment.SyncResult{Status: appointment.SyncSkipped},
			}, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID:       appt.PatientID.String(),
		AppointmentDate: "2030-04-11",
		Hour:            "10:00",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateAppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "TKT-000042", resp.TicketNumber)
	assert.Equal(t, "skipped", resp.SyncStatus)
	assert.Equal(t, "2030-04-11", resp.Appointment.AppointmentDate)
	assert.Equal(t, "PENDING", resp.Appointment.Status)
}

func TestCreateAppointment_SyncFailureStill201(t *testing.T) {
	appt := sampleAppointment()
	svc := &stubService{
		createFn: func(_ context.Context, _ appointment.CreateInput) (*appointment.CreateResult, error) {
			return &appointment.CreateResult{
				Appointment: appt,
				Ticket:      sampleTicket(appt.ID),
				Sync: appointment.SyncResult{
					Status: appointment.SyncFailed,
					Err:    errors.New("calendar unreachable"),
				},
			}, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID:       appt.PatientID.String(),
		AppointmentDate: "2030-04-11",
		Hour:            "10:00",
	})

	// the local booking succeeded, so the API reports 201 with the failure in the body
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateAppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp.SyncStatus)
	assert.Contains(t, resp.SyncError, "calendar unreachable")
}

func TestCreateAppointment_InvalidPatientID(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID:       "not-a-uuid",
		AppointmentDate: "2030-04-11",
		Hour:            "10:00",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_patient_id", resp.Error)
}

func TestCreateAppointment_SlotConflict(t *testing.T) {
	svc := &stubService{
		createFn: func(_ context.Context, _ appointment.CreateInput) (*appointment.CreateResult, error) {
			return nil, &appointment.SlotUnavailableError{Conflicts: []appointment.Appointment{*sampleAppointment()}}
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID:         uuid.NewString(),
		AppointmentDate:   "2030-04-11",
		Hour:              "10:00",
		CheckAvailability: true,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_unavailable", resp.Error)
}

func TestCreateWithGHL_SyncFailureIsBadRequest(t *testing.T) {
	appt := sampleAppointment()
	svc := &stubService{
		createWithSyncFn: func(_ context.Context, _ appointment.CreateInput) (*appointment.CreateResult, error) {
			res := &appointment.CreateResult{
				Appointment: appt,
				Ticket:      sampleTicket(appt.ID),
				Sync:        appointment.SyncResult{Status: appointment.SyncFailed, Err: errors.New("boom")},
			}
			return res, fmt.Errorf("%w: boom", appointment.ErrSyncRequired)
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments/create_with_ghl", CreateAppointmentRequest{
		PatientID:       appt.PatientID.String(),
		AppointmentDate: "2030-04-11",
		Hour:            "10:00",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sync_failed", resp.Error)
}

func TestCreateWithGHL_Success(t *testing.T) {
	appt := sampleAppointment()
	svc := &stubService{
		createWithSyncFn: func(_ context.Context, _ appointment.CreateInput) (*appointment.CreateResult, error) {
			return &appointment.CreateResult{
				Appointment: appt,
				Ticket:      sampleTicket(appt.ID),
				Sync:        appointment.SyncResult{Status: appointment.SyncOK, ExternalID: "evt-777"},
			}, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments/create_with_ghl", CreateAppointmentRequest{
		PatientID:       appt.PatientID.String(),
		AppointmentDate: "2030-04-11",
		Hour:            "10:00",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp CreateWithGHLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, appt.ID, resp.AppointmentID)
	assert.Equal(t, "evt-777", resp.ExternalID)
}

func TestGetAppointment_NotFound(t *testing.T) {
	svc := &stubService{
		getFn: func(_ context.Context, _ uuid.UUID) (*appointment.Appointment, error) {
			return nil, appointment.ErrAppointmentNotFound
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "appointment_not_found", resp.Error)
}

func TestGetAppointment_DerivesStatusFromDate(t *testing.T) {
	// stub clock is 2030-04-10; a 2030-04-05 appointment reads as COMPLETED
	appt := sampleAppointment()
	appt.AppointmentDate = time.Date(2030, 4, 5, 0, 0, 0, 0, time.UTC)

	svc := &stubService{
		getFn: func(_ context.Context, _ uuid.UUID) (*appointment.Appointment, error) {
			return appt, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments/"+appt.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "COMPLETED", resp.Status)
}

func TestListAppointments_FilterParsing(t *testing.T) {
	patientID := uuid.New()
	var captured appointment.ListFilter

	svc := &stubService{
		listFn: func(_ context.Context, f appointment.ListFilter) (*appointment.ListResult, error) {
			captured = f
			return &appointment.ListResult{Items: []appointment.Appointment{*sampleAppointment()}, Total: 25}, nil
		},
	}

	path := "/appointments?appointment_date=2030-04-11&appointment_status=PENDING&patient=" +
		patientID.String() + "&page=2&page_size=10"
	rec := doJSON(t, newTestRouter(svc), http.MethodGet, path, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured.Date)
	assert.Equal(t, "2030-04-11", captured.Date.Format("2006-01-02"))
	require.NotNil(t, captured.Status)
	assert.Equal(t, appointment.StatusPending, *captured.Status)
	require.NotNil(t, captured.PatientID)
	assert.Equal(t, patientID, *captured.PatientID)
	assert.Equal(t, 2, captured.Page)
	assert.Equal(t, 10, captured.PageSize)

	var resp ListAppointmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 25, resp.Count)
	assert.Len(t, resp.Results, 1)
}

func TestListAppointments_BadStatusFilter(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments?appointment_status=NOPE", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReschedule_ConflictIsBadRequest(t *testing.T) {
	svc := &stubService{
		rescheduleFn: func(_ context.Context, _ uuid.UUID, _, _ string) (*appointment.Appointment, error) {
			return nil, &appointment.SlotUnavailableError{Conflicts: []appointment.Appointment{*sampleAppointment()}}
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments/"+uuid.NewString()+"/reschedule",
		RescheduleRequest{AppointmentDate: "2030-04-12", Hour: "09:00"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "slot_unavailable", resp.Error)
	assert.Contains(t, resp.Details, "1 existing appointment")
}

func TestReschedule_MissingFields(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments/"+uuid.NewString()+"/reschedule",
		RescheduleRequest{Hour: "09:00"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_fields", resp.Error)
}

func TestCancelAppointment_OK(t *testing.T) {
	appt := sampleAppointment()
	appt.Status = appointment.StatusCancelled

	svc := &stubService{
		cancelFn: func(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
			assert.Equal(t, appt.ID, id)
			return appt, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Status)
}

func TestDeleteAppointment_SecondDeleteIs404(t *testing.T) {
	svc := &stubService{
		deleteFn: func(_ context.Context, _ uuid.UUID) error {
			return appointment.ErrAppointmentNotFound
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodDelete, "/appointments/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckAvailability_WireFormat(t *testing.T) {
	svc := &stubService{
		checkAvailabilityFn: func(_ context.Context, date, hour string, durationMinutes *int) (*appointment.AvailabilityResult, error) {
			assert.Equal(t, "2030-04-11", date)
			assert.Equal(t, "10:00", hour)
			require.NotNil(t, durationMinutes)
			assert.Equal(t, 30, *durationMinutes)
			return &appointment.AvailabilityResult{
				Available: false,
				Conflicts: []appointment.Appointment{*sampleAppointment(), *sampleAppointment()},
			}, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet,
		"/appointments/check_availability?date=2030-04-11&hour=10:00&duration=30", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckAvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsAvailable)
	assert.Equal(t, 2, resp.ConflictingAppointments)
}

func TestCheckAvailability_MissingParams(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments/check_availability?date=2030-04-11", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestByDateRange_RequiresBothBounds(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments/by_date_range?start_date=2030-04-01", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_fields", resp.Error)
}

func TestByDateRange_PassesParsedBounds(t *testing.T) {
	var gotStart, gotEnd time.Time
	svc := &stubService{
		byDateRangeFn: func(_ context.Context, start, end time.Time, _ appointment.ListFilter) ([]appointment.Appointment, error) {
			gotStart, gotEnd = start, end
			return nil, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet,
		"/appointments/by_date_range?start_date=2030-04-01&end_date=2030-04-30", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2030-04-01", gotStart.Format("2006-01-02"))
	assert.Equal(t, "2030-04-30", gotEnd.Format("2006-01-02"))

	var resp ListAppointmentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
	assert.Empty(t, resp.Results)
}

func TestGetTicket_OK(t *testing.T) {
	ticket := sampleTicket(uuid.New())
	svc := &stubService{
		getTicketFn: func(_ context.Context, id uuid.UUID) (*appointment.Ticket, error) {
			assert.Equal(t, ticket.ID, id)
			return ticket, nil
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/tickets/"+ticket.ID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TicketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "TKT-000042", resp.TicketNumber)
	assert.Equal(t, "active", resp.Status)
}

func TestGetTicket_NotFound(t *testing.T) {
	svc := &stubService{
		getTicketFn: func(_ context.Context, _ uuid.UUID) (*appointment.Ticket, error) {
			return nil, appointment.ErrTicketNotFound
		},
	}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/tickets/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidIDParam(t *testing.T) {
	svc := &stubService{}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/appointments/not-a-uuid", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_id", resp.Error)
}
