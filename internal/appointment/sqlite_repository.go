package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository stores timestamps as unix microseconds, the same
// precision NormalizeInstant keeps.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func micros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func sqliteConstraint(err error, extended int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == extended
}

func isSQLiteUnique(err error) bool {
	return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isSQLiteForeignKey(err error) bool {
	return sqliteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

func sqliteScanUser(row rowScanner) (*User, error) {
	var u User
	var role string
	var created, updated int64

	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Photo, &u.Phone, &u.City, &u.State, &role, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if u.Role, err = ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %v", u.ID, err)
	}
	u.CreatedAt = fromMicros(created)
	u.UpdatedAt = fromMicros(updated)
	return &u, nil
}

func sqliteScanAppointment(row rowScanner) (*Appointment, error) {
	var a Appointment
	var status string
	var scheduled, created, updated int64

	err := row.Scan(&a.ID, &a.ClientID, &a.ProfessionalID, &scheduled, &a.Service, &a.Notes, &status, &a.Rated, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.ScheduledTime = fromMicros(scheduled)
	a.CreatedAt = fromMicros(created)
	a.UpdatedAt = fromMicros(updated)
	return &a, nil
}

const sqliteDetailSelect = `
	SELECT a.id, a.client_id, a.professional_id, a.scheduled_time, a.service, a.notes,
	       a.status, a.rated, a.created_at, a.updated_at,
	       c.name, c.photo, p.name, p.photo
	FROM appointments a
	JOIN users c ON c.id = a.client_id
	JOIN users p ON p.id = a.professional_id
`

func sqliteScanDetail(row rowScanner) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var status string
	var scheduled, created, updated int64

	err := row.Scan(
		&d.ID, &d.ClientID, &d.ProfessionalID, &scheduled, &d.Service, &d.Notes,
		&status, &d.Rated, &created, &updated,
		&d.Client.Name, &d.Client.Photo, &d.Professional.Name, &d.Professional.Photo,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.Status = Status(status)
	d.ScheduledTime = fromMicros(scheduled)
	d.CreatedAt = fromMicros(created)
	d.UpdatedAt = fromMicros(updated)
	d.Client.ID = d.ClientID
	d.Professional.ID = d.ProfessionalID
	return &d, nil
}

func sqliteScanFeedback(row rowScanner) (*Feedback, error) {
	var f Feedback
	var created int64

	if err := row.Scan(&f.ID, &f.AppointmentID, &f.ClientID, &f.ProfessionalID, &f.Rating, &f.Comment, &created); err != nil {
		return nil, err
	}
	f.CreatedAt = fromMicros(created)
	return &f, nil
}

// Users

func (r *SQLiteRepository) CreateUser(ctx context.Context, u User) (*User, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, photo, phone, city, state, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.Photo, u.Phone, u.City, u.State, u.Role.String(), micros(u.CreatedAt), micros(u.UpdatedAt))
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return r.GetUser(ctx, u.ID)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return sqliteScanUser(row)
}

func (r *SQLiteRepository) ListProfessionals(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
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
		u, err := sqliteScanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) RecordLogin(ctx context.Context, userID uuid.UUID, issuedAt, recordedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO logins (user_id, issued_at, recorded_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, issued_at) DO NOTHING
	`, userID, micros(issuedAt), micros(recordedAt))
	if isSQLiteForeignKey(err) {
		return ErrUserNotFound
	}
	return err
}

// Appointments

func (r *SQLiteRepository) InsertAppointment(ctx context.Context, a NewAppointment) (*AppointmentDetail, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin appointment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (id, client_id, professional_id, scheduled_time, service, notes, status, rated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)
	`, a.ID, a.ClientID, a.ProfessionalID, micros(a.ScheduledTime), a.Service, a.Notes, micros(a.CreatedAt), micros(a.CreatedAt))
	if err != nil {
		switch {
		case isSQLiteUnique(err):
			return nil, ErrSlotTaken
		case isSQLiteForeignKey(err):
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	d, err := sqliteScanDetail(tx.QueryRowContext(ctx, sqliteDetailSelect+` WHERE a.id = ?`, a.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit appointment: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return sqliteScanAppointment(row)
}

func (r *SQLiteRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	d, err := sqliteScanDetail(r.db.QueryRowContext(ctx, sqliteDetailSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if !d.Rated {
		return d, nil
	}

	fb, err := sqliteScanFeedback(r.db.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedbacks WHERE appointment_id = ?`, id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load feedback: %w", err)
	}
	d.Feedback = fb
	return d, nil
}

func (r *SQLiteRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*AppointmentDetail, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin status tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET status = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status = ?
	`, string(to), micros(at), id, string(from))
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrAppointmentNotFound
	}

	d, err := sqliteScanDetail(tx.QueryRowContext(ctx, sqliteDetailSelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit status: %w", err)
	}
	return d, nil
}

// ListAppointments reads the whole result before yielding. The handle has a
// single connection, so holding the cursor open would block any query the
// caller makes inside the loop.
func (r *SQLiteRepository) ListAppointments(ctx context.Context, q ListQuery) iter.Seq2[*AppointmentDetail, error] {
	return func(yield func(*AppointmentDetail, error) bool) {
		if len(q.Statuses) == 0 {
			return
		}

		order := "ASC"
		if q.Descending {
			order = "DESC"
		}

		args := []any{q.UserID, q.UserID}
		marks := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}

		rows, err := r.db.QueryContext(ctx, sqliteDetailSelect+`
			WHERE (a.client_id = ? OR a.professional_id = ?)
			  AND a.status IN (`+strings.Join(marks, ", ")+`)
			ORDER BY a.scheduled_time `+order+`, a.id`, args...)
		if err != nil {
			yield(nil, err)
			return
		}
		var list []*AppointmentDetail
		for rows.Next() {
			d, err := sqliteScanDetail(rows)
			if err != nil {
				rows.Close()
				yield(nil, err)
				return
			}
			list = append(list, d)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			yield(nil, err)
			return
		}

		for _, d := range list {
			if !yield(d, nil) {
				return
			}
		}
	}
}

// Feedback

func (r *SQLiteRepository) CreateFeedback(ctx context.Context, f NewFeedback) (*Feedback, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var professionalID uuid.UUID
	var rated bool
	err = tx.QueryRowContext(ctx, `
		SELECT professional_id, rated
		FROM appointments
		WHERE id = ?
		  AND client_id = ?
		  AND status = 'completed'
	`, f.AppointmentID, f.ClientID).Scan(&professionalID, &rated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotRateable
		}
		return nil, err
	}
	if rated {
		return nil, ErrFeedbackExists
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedbacks (id, appointment_id, client_id, professional_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.AppointmentID, f.ClientID, professionalID, f.Rating, f.Comment, micros(f.CreatedAt))
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrFeedbackExists
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET rated = 1,
		    updated_at = ?
		WHERE id = ?
	`, micros(f.CreatedAt), f.AppointmentID); err != nil {
		return nil, fmt.Errorf("mark rated: %w", err)
	}

	created, err := sqliteScanFeedback(tx.QueryRowContext(ctx, `SELECT `+feedbackColumns+` FROM feedbacks WHERE id = ?`, f.ID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit feedback: %w", err)
	}
	return created, nil
}

func (r *SQLiteRepository) ListFeedbackByProfessional(ctx context.Context, professionalID uuid.UUID) ([]FeedbackDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT f.id, f.appointment_id, f.client_id, f.professional_id, f.rating, f.comment, f.created_at,
		       c.name, c.photo, a.service
		FROM feedbacks f
		JOIN users c ON c.id = f.client_id
		JOIN appointments a ON a.id = f.appointment_id
		WHERE f.professional_id = ?
		ORDER BY f.created_at DESC, f.id
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []FeedbackDetail
	for rows.Next() {
		var fd FeedbackDetail
		var created int64
		err := rows.Scan(
			&fd.ID, &fd.AppointmentID, &fd.ClientID, &fd.ProfessionalID, &fd.Rating, &fd.Comment, &created,
			&fd.Client.Name, &fd.Client.Photo, &fd.Service,
		)
		if err != nil {
			return nil, err
		}
		fd.CreatedAt = fromMicros(created)
		fd.Client.ID = fd.ClientID
		result = append(result, fd)
	}
	return result, rows.Err()
}

// Stats

func (r *SQLiteRepository) ListCompletedTimes(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scheduled_time
		FROM appointments
		WHERE professional_id = ?
		  AND status = 'completed'
		  AND scheduled_time >= ?
		  AND scheduled_time < ?
	`, professionalID, micros(from), micros(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []time.Time
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, fromMicros(v))
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) CountActivity(ctx context.Context, from, to time.Time) (*Activity, error) {
	var a Activity
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM logins WHERE issued_at BETWEEN ? AND ?),
			count(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(status = 'declined'), 0)
		FROM appointments
		WHERE created_at BETWEEN ? AND ?
	`, micros(from), micros(to), micros(from), micros(to)).Scan(&a.Logins, &a.Created, &a.Pending, &a.Completed, &a.Cancelled, &a.Declined)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
