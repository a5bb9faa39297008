package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const maxCommentLen = 2000

type FeedbackInput struct {
	AppointmentID uuid.UUID
	Rating        int
	Comment       *string
}

// SubmitFeedback rates a completed appointment owned by the requesting
// client. Only one feedback per appointment is ever accepted.
func (s *Service) SubmitFeedback(ctx context.Context, req Requester, in FeedbackInput) (*Feedback, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, invalid("appointment_id is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("rating must be between 1 and 5, got %d", in.Rating)
	}
	if in.Comment != nil && len(*in.Comment) > maxCommentLen {
		return nil, invalid("comment must be at most %d characters", maxCommentLen)
	}

	// only the owning client may rate; anyone else sees the appointment as absent
	if req.Role != RoleClient {
		return nil, ErrNotRateable
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	fb, err := s.repo.CreateFeedback(ctx, NewFeedback{
		ID:            uuid.New(),
		AppointmentID: in.AppointmentID,
		ClientID:      req.ID,
		Rating:        in.Rating,
		Comment:       in.Comment,
		CreatedAt:     NormalizeInstant(s.now()),
	})
	if err != nil {
		return nil, classify("submit feedback", err)
	}
	return fb, nil
}

// ListProfessionalFeedback lists a professional's feedback, newest first.
func (s *Service) ListProfessionalFeedback(ctx context.Context, professionalID uuid.UUID) ([]FeedbackDetail, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.requireProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	list, err := s.repo.ListFeedbackByProfessional(ctx, professionalID)
	if err != nil {
		return nil, classify("list feedback", err)
	}
	return list, nil
}

func (s *Service) requireProfessional(ctx context.Context, id uuid.UUID) error {
	u, err := s.repo.GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return ErrProfessionalNotFound
	}
	if err != nil {
		return classify("load professional", err)
	}
	if u.Role != RoleProfessional {
		return ErrProfessionalNotFound
	}
	return nil
}
