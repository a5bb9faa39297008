package appointment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/booking-lifecycle/internal/redis"
)

// Reservation identifies the slot a booking attempt holds while fn runs.
type Reservation struct {
	ProfessionalID uuid.UUID
	ScheduledTime  time.Time
	// Locked is true when the advisory redis lock was held.
	Locked bool
}

// SlotGuard serializes booking attempts for one (professional, instant).
//
// The store's partial unique index is what makes a reservation atomic and
// the only thing that reports ErrSlotTaken. The redis lock, when configured,
// only lets the first of several concurrent attempts run uncontended; the
// others still reach the store, so a failed holder never blocks the slot.
type SlotGuard struct {
	repo   Repository
	locker redisclient.Locker
}

func NewSlotGuard(repo Repository, locker redisclient.Locker) *SlotGuard {
	return &SlotGuard{repo: repo, locker: locker}
}

// Reserve validates the professional and runs fn with the slot held. fn
// must perform the conflicting write itself so that the existence check
// and the insert happen in one statement.
func (g *SlotGuard) Reserve(ctx context.Context, professionalID uuid.UUID, at time.Time, fn func(ctx context.Context, r Reservation) error) error {
	if at.IsZero() {
		return invalid("scheduled_time is required")
	}
	if !wholeMicros(at) {
		return invalid("scheduled_time must not be finer than a microsecond")
	}

	pro, err := g.repo.GetUser(ctx, professionalID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrProfessionalNotFound
		}
		return classify("load professional", err)
	}
	if pro.Role != RoleProfessional {
		return ErrProfessionalNotFound
	}

	r := Reservation{ProfessionalID: professionalID, ScheduledTime: NormalizeInstant(at)}

	if g.locker == nil {
		return fn(ctx, r)
	}

	key := redisclient.SlotKey(professionalID, r.ScheduledTime)
	err = g.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		r.Locked = true
		return fn(lockCtx, r)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return fn(ctx, r)
	case errors.Is(err, redisclient.ErrLockBackend):
		log.Printf("slot lock unavailable, falling back to store constraint key=%s err=%v", key, err)
		return fn(ctx, r)
	default:
		return err
	}
}
