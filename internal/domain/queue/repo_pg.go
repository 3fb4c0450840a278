package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruralcare/telemed/internal/domain/triage"
	"github.com/ruralcare/telemed/internal/platform/db"
)

// Partial unique index on patient_id over waiting and in_progress rows.
const activeEntryConstraint = "queue_entries_one_active_per_patient"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.ConnFromContext(ctx, r.pool)
}

const entryCols = `id, seq, patient_id, doctor_id, status, priority, symptoms_brief,
	estimated_wait_time, created_at, started_at, completed_at, updated_at`

const waitingOrder = `ORDER BY priority DESC, created_at ASC, seq ASC`

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO queue_entries (id, patient_id, doctor_id, status, priority, symptoms_brief, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING seq, created_at, updated_at`,
		e.ID, e.PatientID, e.DoctorID, string(e.Status), int16(e.Priority), e.SymptomsBrief, e.CreatedAt,
	).Scan(&e.Seq, &e.CreatedAt, &e.UpdatedAt)
	if db.IsUniqueViolation(err, activeEntryConstraint) {
		return ErrDuplicateActiveEntry
	}
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM queue_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("queue entry %s: %w", id, ErrNotFound)
	}
	return e, err
}

func (r *repoPG) HasActive(ctx context.Context, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE patient_id = $1 AND status IN ('waiting', 'in_progress')
		)`, patientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active entry: %w", err)
	}
	return exists, nil
}

func (r *repoPG) Transition(ctx context.Context, t Transition) (*Entry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `
		UPDATE queue_entries SET
			status = $3::varchar,
			doctor_id = COALESCE(doctor_id, $4::uuid),
			started_at = CASE WHEN $3::varchar = 'in_progress' THEN $5::timestamptz ELSE started_at END,
			completed_at = CASE WHEN $3::varchar IN ('completed', 'cancelled') THEN $5::timestamptz ELSE completed_at END,
			updated_at = $5::timestamptz
		WHERE id = $1 AND status = $2::varchar
			AND ($4::uuid IS NULL OR doctor_id IS NULL OR doctor_id = $4::uuid)
		RETURNING `+entryCols,
		t.ID, string(t.From), string(t.To), t.DoctorID, t.At))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	return e, err
}

func (r *repoPG) WaitingRank(ctx context.Context, id uuid.UUID) (int, error) {
	var rank int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_entries w, queue_entries e
		WHERE e.id = $1 AND w.status = 'waiting'
			AND (w.priority > e.priority
				OR (w.priority = e.priority AND (w.created_at, w.seq) <= (e.created_at, e.seq)))`,
		id).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("waiting rank: %w", err)
	}
	if rank == 0 {
		return 0, fmt.Errorf("queue entry %s: %w", id, ErrNotFound)
	}
	return rank, nil
}

func (r *repoPG) SetEstimatedWait(ctx context.Context, id uuid.UUID, minutes int) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE queue_entries SET estimated_wait_time = $2 WHERE id = $1`, id, minutes)
	return err
}

func (r *repoPG) ListWaiting(ctx context.Context) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE status = 'waiting' `+waitingOrder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List filters by status when one is given.
func (r *repoPG) List(ctx context.Context, status Status, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM queue_entries WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE ($1 = '' OR status = $1) `+waitingOrder+` LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	entries, err := collectEntries(rows)
	return entries, total, err
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE doctor_id = $1 `+waitingOrder, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+entryCols+` FROM queue_entries WHERE patient_id = $1 ORDER BY created_at DESC, seq DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *repoPG) Statistics(ctx context.Context, since time.Time) (*Statistics, error) {
	stats := &Statistics{
		StatusDistribution: []StatusCount{},
		AverageWaitTimes:   []PriorityWait{},
		DailyTrends:        []DailyCount{},
	}
	q := r.conn(ctx)

	rows, err := q.Query(ctx, `SELECT status, COUNT(*) FROM queue_entries GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("status distribution: %w", err)
	}
	for rows.Next() {
		var sc StatusCount
		var status string
		if err := rows.Scan(&status, &sc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		sc.Status = Status(status)
		stats.StatusDistribution = append(stats.StatusDistribution, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT priority, AVG(estimated_wait_time)::float8 FROM queue_entries
		WHERE estimated_wait_time IS NOT NULL
		GROUP BY priority ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("average wait: %w", err)
	}
	for rows.Next() {
		var pw PriorityWait
		var priority int16
		if err := rows.Scan(&priority, &pw.AvgWaitMinutes); err != nil {
			rows.Close()
			return nil, err
		}
		pw.Priority = triage.Priority(priority)
		stats.AverageWaitTimes = append(stats.AverageWaitTimes, pw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, `
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day, COUNT(*)
		FROM queue_entries WHERE created_at >= $1
		GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("daily trends: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Date, &dc.QueueCount); err != nil {
			return nil, err
		}
		stats.DailyTrends = append(stats.DailyTrends, dc)
	}
	return stats, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string
	var priority int16
	var wait *int32
	if err := row.Scan(&e.ID, &e.Seq, &e.PatientID, &e.DoctorID, &status, &priority, &e.SymptomsBrief,
		&wait, &e.CreatedAt, &e.StartedAt, &e.CompletedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Status = Status(status)
	e.Priority = triage.Priority(priority)
	if wait != nil {
		minutes := int(*wait)
		e.EstimatedWaitTime = &minutes
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*Entry, error) {
	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type directoryPG struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) Directory {
	return &directoryPG{pool: pool}
}

const patientCols = `id, user_id, full_name, COALESCE(age, 0), COALESCE(gender, ''),
	COALESCE(village, ''), COALESCE(medical_history, '')`

const doctorCols = `id, user_id, full_name, COALESCE(specialization, ''), is_available`

func (d *directoryPG) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return d.patient(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
}

func (d *directoryPG) PatientByUserID(ctx context.Context, userID string) (*Patient, error) {
	return d.patient(ctx, `SELECT `+patientCols+` FROM patients WHERE user_id = $1`, userID)
}

func (d *directoryPG) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return d.doctor(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id)
}

func (d *directoryPG) DoctorByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return d.doctor(ctx, `SELECT `+doctorCols+` FROM doctors WHERE user_id = $1`, userID)
}

func (d *directoryPG) patient(ctx context.Context, query string, arg interface{}) (*Patient, error) {
	var p Patient
	var age int32
	err := db.ConnFromContext(ctx, d.pool).QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &p.FullName, &age, &p.Gender, &p.Village, &p.MedicalHistory)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patient: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Age = int(age)
	return &p, nil
}

func (d *directoryPG) doctor(ctx context.Context, query string, arg interface{}) (*Doctor, error) {
	var doc Doctor
	err := db.ConnFromContext(ctx, d.pool).QueryRow(ctx, query, arg).Scan(
		&doc.ID, &doc.UserID, &doc.FullName, &doc.Specialization, &doc.IsAvailable)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("doctor: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
