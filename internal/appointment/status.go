package appointment

import "fmt"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeclined   Status = "declined"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusDeclined, StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDeclined, StatusCancelled:
		return true
	}
	return false
}

// Active statuses occupy the slot.
func (s Status) Active() bool {
	return s.Valid() && s != StatusCancelled
}

// professionalTransitions is the whole rule set for status changes.
// Creation into pending is handled by CreateAppointment.
var professionalTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusDeclined, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CheckTransition decides whether an actor with role may move an
// appointment from one status to another. The caller has already
// established that the actor is a participant of the appointment.
func CheckTransition(from, to Status, role Role) error {
	switch role {
	case RoleProfessional:
	case RoleClient:
		return fmt.Errorf("%w: only the assigned professional may change the status", ErrForbidden)
	default:
		return fmt.Errorf("%w: unknown role", ErrForbidden)
	}

	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	for _, allowed := range professionalTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Bucket groups appointments for listing.
type Bucket string

const (
	BucketPending    Bucket = "pending"
	BucketConfirmed  Bucket = "confirmed"
	BucketInProgress Bucket = "in_progress"
	BucketCompleted  Bucket = "completed"
	BucketHistory    Bucket = "history"
)

func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case BucketPending, BucketConfirmed, BucketInProgress, BucketCompleted, BucketHistory:
		return b, nil
	}
	return "", fmt.Errorf("%w: unknown bucket %q", ErrValidation, s)
}

func (b Bucket) Statuses() []Status {
	switch b {
	case BucketPending:
		return []Status{StatusPending}
	case BucketConfirmed:
		return []Status{StatusConfirmed}
	case BucketInProgress:
		return []Status{StatusInProgress}
	case BucketCompleted:
		return []Status{StatusCompleted}
	case BucketHistory:
		return []Status{StatusCompleted, StatusCancelled, StatusDeclined}
	}
	return nil
}

// Descending reports whether the bucket lists most recent first.
func (b Bucket) Descending() bool {
	return b == BucketCompleted || b == BucketHistory
}
