package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reflexoperu/clinic-appointments/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedTherapists(context.Background(), pool, 20); err != nil {
		log.Fatalf("seed therapists: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAppointments(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

func seedTherapists(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d therapists", count)

	specialties := []string{
		"Reflexology",
		"Physiotherapy",
		"Massage Therapy",
		"Acupuncture",
		"Chiropractic",
		"Occupational Therapy",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO therapists (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), spec)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("therapists seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, phone, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedAppointments books past and future visits for random patients, each
// with its billing ticket, matching what the service writes at runtime.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d appointments", count)

	patientIDs, err := loadIDs(ctx, pool, "patients")
	if err != nil {
		return err
	}
	therapistIDs, err := loadIDs(ctx, pool, "therapists")
	if err != nil {
		return err
	}
	if len(patientIDs) == 0 || len(therapistIDs) == 0 {
		return fmt.Errorf("patients and therapists must be seeded first")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for i := 0; i < count; i++ {
		apptID := uuid.New()
		patient := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
		therapist := therapistIDs[gofakeit.Number(0, len(therapistIDs)-1)]

		// spread over +-30 days, working hours, half-hour grid
		day := today.AddDate(0, 0, gofakeit.Number(-30, 30))
		hour := fmt.Sprintf("%02d:%02d", gofakeit.Number(8, 18), 30*gofakeit.Number(0, 1))
		duration := 30 * gofakeit.Number(1, 3)
		payment := float64(gofakeit.Number(30, 150))

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (
				id, patient_id, therapist_id, appointment_date, hour, duration_minutes,
				title, payment, status, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'PENDING', now(), now())
		`, apptID, patient, therapist, day, hour, duration,
			gofakeit.Sentence(3), payment)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO tickets (id, appointment_id, ticket_number, status, created_at, updated_at)
			VALUES ($1, $2, $3, 'active', now(), now())
		`, uuid.New(), apptID, fmt.Sprintf("TKT-S%05d", i+1))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, table string) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM `+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
