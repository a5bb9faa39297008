package appointment

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"net/mail"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/booking-lifecycle/internal/config"
	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultEmitTimeout  = 2 * time.Second

	// maxStatusAttempts bounds reload-and-recheck rounds when the stored
	// status moved under a concurrent update.
	maxStatusAttempts = 3

	maxServiceLen = 200
	maxNotesLen   = 2000
)

type CreateInput struct {
	ProfessionalID uuid.UUID
	ScheduledTime  time.Time
	Service        string
	Notes          *string
}

type Service struct {
	repo    Repository
	slots   *SlotGuard
	emitter Emitter
	cfg     config.Config
	now     func() time.Time
}

// NewService wires the lifecycle manager. locker and emitter may be nil.
func NewService(repo Repository, locker redisclient.Locker, emitter Emitter, cfg config.Config) *Service {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Service{
		repo:    repo,
		slots:   NewSlotGuard(repo, locker),
		emitter: emitter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// bound applies the per-operation persistence timeout.
func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) location() *time.Location {
	if s.cfg.Location != nil {
		return s.cfg.Location
	}
	return time.UTC
}

// CreateAppointment books a slot for the requesting client. The new
// appointment starts in pending.
func (s *Service) CreateAppointment(ctx context.Context, req Requester, in CreateInput) (*AppointmentDetail, error) {
	switch req.Role {
	case RoleClient:
	case RoleProfessional:
		return nil, fmt.Errorf("%w: professionals cannot book appointments", ErrForbidden)
	default:
		return nil, fmt.Errorf("%w: unknown role", ErrForbidden)
	}

	// service and notes are stored exactly as given
	switch {
	case in.ProfessionalID == uuid.Nil:
		return nil, invalid("professional_id is required")
	case in.ScheduledTime.IsZero():
		return nil, invalid("scheduled_time is required")
	case !wholeMicros(in.ScheduledTime):
		return nil, invalid("scheduled_time must not be finer than a microsecond")
	case strings.TrimSpace(in.Service) == "":
		return nil, invalid("service is required")
	case len(in.Service) > maxServiceLen:
		return nil, invalid("service must be at most %d characters", maxServiceLen)
	case in.Notes != nil && len(*in.Notes) > maxNotesLen:
		return nil, invalid("notes must be at most %d characters", maxNotesLen)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var created *AppointmentDetail
	err := s.slots.Reserve(ctx, in.ProfessionalID, in.ScheduledTime, func(ctx context.Context, r Reservation) error {
		d, err := s.repo.InsertAppointment(ctx, NewAppointment{
			ID:             uuid.New(),
			ClientID:       req.ID,
			ProfessionalID: r.ProfessionalID,
			ScheduledTime:  r.ScheduledTime,
			Service:        in.Service,
			Notes:          in.Notes,
			CreatedAt:      NormalizeInstant(s.now()),
		})
		if err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		return nil, classify("create appointment", err)
	}

	s.emit(Event{
		Type:        EventCreated,
		Appointment: created,
		NewStatus:   created.Status,
		OccurredAt:  created.CreatedAt,
	})

	return created, nil
}

// actorRole is the role req plays on a given appointment.
func actorRole(req Requester, a *Appointment) Role {
	switch req.ID {
	case a.ProfessionalID:
		return RoleProfessional
	case a.ClientID:
		return RoleClient
	default:
		return RoleUnknown
	}
}

// UpdateStatus moves an appointment to status to on behalf of req.
func (s *Service) UpdateStatus(ctx context.Context, req Requester, id uuid.UUID, to Status) (*AppointmentDetail, error) {
	if !to.Valid() {
		return nil, invalid("unknown status %q", to)
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.repo.GetAppointment(ctx, id)
		if err != nil {
			return nil, classify("load appointment", err)
		}

		if err := CheckTransition(current.Status, to, actorRole(req, current)); err != nil {
			return nil, err
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, current.Status, to, NormalizeInstant(s.now()))
		if errors.Is(err, ErrAppointmentNotFound) {
			// status moved since the read; recheck against the new one
			continue
		}
		if err != nil {
			return nil, classify("update appointment status", err)
		}

		s.emit(Event{
			Type:        EventStatusChanged,
			Appointment: updated,
			OldStatus:   current.Status,
			NewStatus:   updated.Status,
			OccurredAt:  updated.UpdatedAt,
		})
		return updated, nil
	}

	return nil, ErrStaleStatus
}

// GetAppointment returns an appointment visible to req, with its feedback.
func (s *Service) GetAppointment(ctx context.Context, req Requester, id uuid.UUID) (*AppointmentDetail, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	d, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, classify("get appointment", err)
	}
	if actorRole(req, &d.Appointment) == RoleUnknown {
		return nil, ErrAppointmentNotFound
	}
	return d, nil
}

// ListAppointments yields the appointments of req in bucket b. The whole
// iteration shares one query timeout, and the sequence can be ranged over
// only once. With the Postgres store the rows stream from an open cursor
// that holds a pooled connection until the loop ends; the SQLite store
// buffers them first, so calling the Service inside the loop is safe there.
func (s *Service) ListAppointments(ctx context.Context, req Requester, b Bucket) iter.Seq2[*AppointmentDetail, error] {
	var consumed atomic.Bool

	return func(yield func(*AppointmentDetail, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrSequenceConsumed)
			return
		}

		statuses := b.Statuses()
		if statuses == nil {
			yield(nil, invalid("unknown bucket %q", b))
			return
		}

		ctx, cancel := s.bound(ctx)
		defer cancel()

		q := ListQuery{UserID: req.ID, Statuses: statuses, Descending: b.Descending()}
		for d, err := range s.repo.ListAppointments(ctx, q) {
			if err != nil {
				yield(nil, classify("list appointments", err))
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

// emit hands ev to the emitter in the background. Failures are logged.
func (s *Service) emit(ev Event) {
	timeout := s.cfg.EmitTimeout
	if timeout <= 0 {
		timeout = defaultEmitTimeout
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("emitter panic type=%s appointment_id=%s panic=%v", ev.Type, ev.Appointment.ID, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.emitter.Emit(ctx, ev); err != nil {
			log.Printf("emit failed type=%s appointment_id=%s err=%v", ev.Type, ev.Appointment.ID, err)
		}
	}()
}

// Users

func (s *Service) CreateUser(ctx context.Context, u User) (*User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Name == "" {
		return nil, invalid("name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return nil, invalid("invalid email %q", u.Email)
	}
	switch u.Role {
	case RoleClient, RoleProfessional:
	default:
		return nil, invalid("role must be client or professional")
	}
	u.Photo = optionalText(u.Photo)
	u.Phone = optionalText(u.Phone)
	u.City = optionalText(u.City)
	u.State = optionalText(u.State)

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := NormalizeInstant(s.now())
	u.CreatedAt, u.UpdatedAt = now, now

	ctx, cancel := s.bound(ctx)
	defer cancel()

	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return nil, classify("create user", err)
	}
	return created, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, classify("get user", err)
	}
	return u, nil
}

func (s *Service) ListProfessionals(ctx context.Context) ([]User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	pros, err := s.repo.ListProfessionals(ctx)
	if err != nil {
		return nil, classify("list professionals", err)
	}
	return pros, nil
}

// RecordLogin stores one login per token issuance. Repeats are ignored.
func (s *Service) RecordLogin(ctx context.Context, userID uuid.UUID, issuedAt time.Time) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	err := s.repo.RecordLogin(ctx, userID, NormalizeInstant(issuedAt), NormalizeInstant(s.now()))
	return classify("record login", err)
}

// optionalText trims p and maps blank text to nil.
func optionalText(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
