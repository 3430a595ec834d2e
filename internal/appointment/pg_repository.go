package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, therapist_id, appointment_date, hour, duration_minutes,
	title, ailments, diagnosis, observation, appointment_type, room,
	payment, payment_detail, status,
	external_event_id, ghl_contact_id, ghl_location_id, ghl_calendar_id,
	created_at, updated_at, deleted_at`

const ticketColumns = `
	id, appointment_id, ticket_number, status, created_at, updated_at, deleted_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.TherapistID,
		&a.AppointmentDate,
		&a.Hour,
		&a.DurationMinutes,
		&a.Title,
		&a.Ailments,
		&a.Diagnosis,
		&a.Observation,
		&a.AppointmentType,
		&a.Room,
		&a.Payment,
		&a.PaymentDetail,
		&a.Status,
		&a.ExternalEventID,
		&a.GHLContactID,
		&a.GHLLocationID,
		&a.GHLCalendarID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanTicket(row pgx.Row) (*Ticket, error) {
	var t Ticket

	err := row.Scan(
		&t.ID,
		&t.AppointmentID,
		&t.TicketNumber,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return &t, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// filterClauses translates a ListFilter into WHERE fragments. The first
// positional placeholder starts at startArg.
func filterClauses(f ListFilter, startArg int) ([]string, []any) {
	var conds []string
	var args []any
	n := startArg

	if f.Date != nil {
		conds = append(conds, fmt.Sprintf("appointment_date = $%d", n))
		args = append(args, *f.Date)
		n++
	}
	if f.Status != nil {
		conds = append(conds, fmt.Sprintf("status = $%d", n))
		args = append(args, *f.Status)
		n++
	}
	if f.PatientID != nil {
		conds = append(conds, fmt.Sprintf("patient_id = $%d", n))
		args = append(args, *f.PatientID)
		n++
	}
	if f.TherapistID != nil {
		conds = append(conds, fmt.Sprintf("therapist_id = $%d", n))
		args = append(args, *f.TherapistID)
		n++
	}

	return conds, args
}

func pageBounds(f ListFilter) (limit, offset int) {
	size := f.PageSize
	if size <= 0 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return size, (page - 1) * size
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)

	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetTherapistByID(ctx context.Context, id uuid.UUID) (*Therapist, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM therapists
		WHERE id = $1
	`, id)

	var t Therapist
	err := row.Scan(&t.ID, &t.Name, &t.Specialty, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTherapistNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsOnDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date = $1 AND deleted_at IS NULL
		ORDER BY hour
	`, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointmentWithTicket(ctx context.Context, appt *Appointment, ticketNumber string) (*Appointment, *Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin create transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, therapist_id, appointment_date, hour, duration_minutes,
			title, ailments, diagnosis, observation, appointment_type, room,
			payment, payment_detail, status,
			ghl_contact_id, ghl_location_id, ghl_calendar_id,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())
		RETURNING `+appointmentColumns+`
	`,
		uuid.New(), appt.PatientID, appt.TherapistID, appt.AppointmentDate, appt.Hour, appt.DurationMinutes,
		appt.Title, appt.Ailments, appt.Diagnosis, appt.Observation, appt.AppointmentType, appt.Room,
		appt.Payment, appt.PaymentDetail, StatusPending,
		appt.GHLContactID, appt.GHLLocationID, appt.GHLCalendarID,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, nil, fmt.Errorf("insert appointment: %w", err)
	}

	ticketRow := tx.QueryRow(ctx, `
		INSERT INTO tickets (id, appointment_id, ticket_number, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING `+ticketColumns+`
	`, uuid.New(), created.ID, ticketNumber, TicketActive)

	ticket, err := scanTicket(ticketRow)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("insert ticket %s: %w", ticketNumber, ErrDuplicateTicket)
		}
		return nil, nil, fmt.Errorf("insert ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit create transaction: %w", err)
	}

	return created, ticket, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET patient_id = $2,
		    therapist_id = $3,
		    appointment_date = $4,
		    hour = $5,
		    duration_minutes = $6,
		    title = $7,
		    ailments = $8,
		    diagnosis = $9,
		    observation = $10,
		    appointment_type = $11,
		    room = $12,
		    payment = $13,
		    payment_detail = $14,
		    status = $15,
		    ghl_contact_id = $16,
		    ghl_location_id = $17,
		    ghl_calendar_id = $18,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+appointmentColumns+`
	`,
		appt.ID, appt.PatientID, appt.TherapistID, appt.AppointmentDate, appt.Hour, appt.DurationMinutes,
		appt.Title, appt.Ailments, appt.Diagnosis, appt.Observation, appt.AppointmentType, appt.Room,
		appt.Payment, appt.PaymentDetail, appt.Status,
		appt.GHLContactID, appt.GHLLocationID, appt.GHLCalendarID,
	)
	return scanAppointment(row)
}

func (r *PgRepository) SetExternalEventID(ctx context.Context, id uuid.UUID, externalID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET external_event_id = $2,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, externalID)
	if err != nil {
		return fmt.Errorf("set external event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+appointmentColumns+`
	`, id, StatusCancelled)

	cancelled, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tickets
		SET status = $2,
		    updated_at = now()
		WHERE appointment_id = $1 AND deleted_at IS NULL
	`, id, TicketCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel transaction: %w", err)
	}

	return cancelled, nil
}

func (r *PgRepository) SoftDeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET deleted_at = now(),
		    updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE tickets
		SET deleted_at = now(),
		    updated_at = now()
		WHERE appointment_id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}

	return nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	conds := []string{"deleted_at IS NULL"}
	extra, args := filterClauses(f, 1)
	conds = append(conds, extra...)
	where := strings.Join(conds, " AND ")

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments WHERE `+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	limit, offset := pageBounds(f)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY appointment_date DESC, hour DESC
		LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}

	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PgRepository) ListAppointmentsInRange(ctx context.Context, start, end time.Time, f ListFilter) ([]Appointment, error) {
	conds := []string{"deleted_at IS NULL", "appointment_date BETWEEN $1 AND $2"}
	args := []any{start, end}
	extra, extraArgs := filterClauses(f, 3)
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY appointment_date DESC, hour DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListCompletedAppointments(ctx context.Context, today time.Time, f ListFilter) ([]Appointment, error) {
	return r.listRelativeToday(ctx, "appointment_date < $1", today, f)
}

func (r *PgRepository) ListPendingAppointments(ctx context.Context, today time.Time, f ListFilter) ([]Appointment, error) {
	return r.listRelativeToday(ctx, "appointment_date >= $1", today, f)
}

func (r *PgRepository) listRelativeToday(ctx context.Context, dateCond string, today time.Time, f ListFilter) ([]Appointment, error) {
	conds := []string{"deleted_at IS NULL", dateCond}
	args := []any{today}
	extra, extraArgs := filterClauses(f, 2)
	conds = append(conds, extra...)
	args = append(args, extraArgs...)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY appointment_date DESC, hour DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetTicketByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanTicket(row)
}

func (r *PgRepository) GetTicketByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE appointment_id = $1 AND deleted_at IS NULL
	`, appointmentID)
	return scanTicket(row)
}
