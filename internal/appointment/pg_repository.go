package appointment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	activeSlotIndex = "appointments_active_slot_idx"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// pgConstraint reports the violated constraint when err is a postgres
// error with the given SQLSTATE.
func pgConstraint(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Helpers

const userColumns = `id, name, email, photo, phone, city, state, role, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Photo,
		&u.Phone,
		&u.City,
		&u.State,
		&role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if u.Role, err = ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %v", u.ID, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

const appointmentColumns = `id, client_id, professional_id, scheduled_time, service, notes, status, rated, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.ProfessionalID,
		&a.ScheduledTime,
		&a.Service,
		&a.Notes,
		&status,
		&a.Rated,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.ScheduledTime = a.ScheduledTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// detailSelect reads an appointment aliased a with both parties.
const detailSelect = `
	SELECT a.id, a.client_id, a.professional_id, a.scheduled_time, a.service, a.notes,
	       a.status, a.rated, a.created_at, a.updated_at,
	       c.name, c.photo, p.name, p.photo
	FROM a
	JOIN users c ON c.id = a.client_id
	JOIN users p ON p.id = a.professional_id
`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var status string

	err := row.Scan(
		&d.ID,
		&d.ClientID,
		&d.ProfessionalID,
		&d.ScheduledTime,
		&d.Service,
		&d.Notes,
		&status,
		&d.Rated,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Client.Name,
		&d.Client.Photo,
		&d.Professional.Name,
		&d.Professional.Photo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Status = Status(status)
	d.ScheduledTime = d.ScheduledTime.UTC()
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	d.Client.ID = d.ClientID
	d.Professional.ID = d.ProfessionalID
	return &d, nil
}

const feedbackColumns = `id, appointment_id, client_id, professional_id, rating, comment, created_at`

func scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback

	err := row.Scan(
		&f.ID,
		&f.AppointmentID,
		&f.ClientID,
		&f.ProfessionalID,
		&f.Rating,
		&f.Comment,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	f.CreatedAt = f.CreatedAt.UTC()
	return &f, nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, u User) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, photo, phone, city, state, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		u.ID, u.Name, u.Email, u.Photo, u.Phone, u.City, u.State, u.Role.String(), u.CreatedAt, u.UpdatedAt)

	created, err := scanUser(row)
	if _, ok := pgConstraint(err, pgUniqueViolation); ok {
		return nil, ErrEmailTaken
	}
	return created, err
}

func (r *PgRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgRepository) ListProfessionals(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'professional'
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) RecordLogin(ctx context.Context, userID uuid.UUID, issuedAt, recordedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO logins (user_id, issued_at, recorded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, issued_at) DO NOTHING
	`, userID, issuedAt, recordedAt)
	if _, ok := pgConstraint(err, pgForeignKeyViolation); ok {
		return ErrUserNotFound
	}
	return err
}

// Appointments

func (r *PgRepository) InsertAppointment(ctx context.Context, a NewAppointment) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO appointments (id, client_id, professional_id, scheduled_time, service, notes, status, rated, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending', false, $7, $7)
			RETURNING *
		)`+detailSelect,
		a.ID, a.ClientID, a.ProfessionalID, a.ScheduledTime, a.Service, a.Notes, a.CreatedAt)

	d, err := scanDetail(row)
	if err == nil {
		return d, nil
	}
	if constraint, ok := pgConstraint(err, pgUniqueViolation); ok && constraint == activeSlotIndex {
		return nil, ErrSlotTaken
	}
	if constraint, ok := pgConstraint(err, pgForeignKeyViolation); ok {
		if constraint == "appointments_professional_id_fkey" {
			return nil, ErrProfessionalNotFound
		}
		return nil, ErrClientNotFound
	}
	return nil, err
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (SELECT * FROM appointments WHERE id = $1)`+detailSelect, id)

	d, err := scanDetail(row)
	if err != nil {
		return nil, err
	}
	if !d.Rated {
		return d, nil
	}

	fb, err := scanFeedback(r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedbacks WHERE appointment_id = $1`, id))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	d.Feedback = fb
	return d, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			UPDATE appointments
			SET status = $3,
			    updated_at = $4
			WHERE id = $1
			  AND status = $2
			RETURNING *
		)`+detailSelect,
		id, string(from), string(to), at)

	return scanDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, q ListQuery) iter.Seq2[*AppointmentDetail, error] {
	return func(yield func(*AppointmentDetail, error) bool) {
		order := "ASC"
		if q.Descending {
			order = "DESC"
		}

		rows, err := r.pool.Query(ctx, `
			WITH a AS (
				SELECT * FROM appointments
				WHERE (client_id = $1 OR professional_id = $1)
				  AND status = ANY($2)
			)`+detailSelect+`
			ORDER BY a.scheduled_time `+order+`, a.id`,
			q.UserID, statusStrings(q.Statuses))
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			d, err := scanDetail(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(d, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Feedback

func (r *PgRepository) CreateFeedback(ctx context.Context, f NewFeedback) (*Feedback, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// the row lock serializes concurrent submissions for one appointment
	var professionalID uuid.UUID
	var rated bool
	err = tx.QueryRow(ctx, `
		SELECT professional_id, rated
		FROM appointments
		WHERE id = $1
		  AND client_id = $2
		  AND status = 'completed'
		FOR UPDATE
	`, f.AppointmentID, f.ClientID).Scan(&professionalID, &rated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRateable
		}
		return nil, err
	}
	if rated {
		return nil, ErrFeedbackExists
	}

	created, err := scanFeedback(tx.QueryRow(ctx, `
		INSERT INTO feedbacks (id, appointment_id, client_id, professional_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+feedbackColumns,
		f.ID, f.AppointmentID, f.ClientID, professionalID, f.Rating, f.Comment, f.CreatedAt))
	if err != nil {
		if _, ok := pgConstraint(err, pgUniqueViolation); ok {
			return nil, ErrFeedbackExists
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET rated = true,
		    updated_at = $2
		WHERE id = $1
	`, f.AppointmentID, f.CreatedAt); err != nil {
		return nil, fmt.Errorf("mark rated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit feedback: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ListFeedbackByProfessional(ctx context.Context, professionalID uuid.UUID) ([]FeedbackDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.appointment_id, f.client_id, f.professional_id, f.rating, f.comment, f.created_at,
		       c.name, c.photo, a.service
		FROM feedbacks f
		JOIN users c ON c.id = f.client_id
		JOIN appointments a ON a.id = f.appointment_id
		WHERE f.professional_id = $1
		ORDER BY f.created_at DESC, f.id
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []FeedbackDetail
	for rows.Next() {
		var fd FeedbackDetail
		err := rows.Scan(
			&fd.ID,
			&fd.AppointmentID,
			&fd.ClientID,
			&fd.ProfessionalID,
			&fd.Rating,
			&fd.Comment,
			&fd.CreatedAt,
			&fd.Client.Name,
			&fd.Client.Photo,
			&fd.Service,
		)
		if err != nil {
			return nil, err
		}
		fd.CreatedAt = fd.CreatedAt.UTC()
		fd.Client.ID = fd.ClientID
		result = append(result, fd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Stats

func (r *PgRepository) ListCompletedTimes(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_time
		FROM appointments
		WHERE professional_id = $1
		  AND status = 'completed'
		  AND scheduled_time >= $2
		  AND scheduled_time < $3
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (r *PgRepository) CountActivity(ctx context.Context, from, to time.Time) (*Activity, error) {
	var a Activity
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM logins WHERE issued_at BETWEEN $1 AND $2),
			count(*),
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'cancelled'),
			count(*) FILTER (WHERE status = 'declined')
		FROM appointments
		WHERE created_at BETWEEN $1 AND $2
	`, from, to).Scan(&a.Logins, &a.Created, &a.Pending, &a.Completed, &a.Cancelled, &a.Declined)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
