package controllers

import (
	"errors"

	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
	"github.com/zaqqye/exam_session_v1/internal/storage"
)

// RuntimeService bridges HTTP/websocket handlers and the session registry.
type RuntimeService struct {
	DB       *gorm.DB
	Registry *session.Registry
}

// Attach ensures a submission row exists for the attempt and returns its
// live session runtime, creating one when needed.
func (s *RuntimeService) Attach(attempt models.Attempt) (*session.Guard, error) {
	sub, err := s.EnsureSubmission(attempt.ID)
	if err != nil {
		return nil, err
	}
	if sub.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}
	if sub.TerminatedAt != nil {
		return nil, ErrAlreadyTerminated
	}
	return s.Registry.Attach(session.AttemptInfo{
		AttemptID:    attempt.ID,
		SubmissionID: sub.ID,
		End:          attempt.EndAt,
		Start:        attempt.StartAt,
		Identity: storage.StudentData{
			Email:     attempt.Email,
			FirstName: attempt.FirstName,
			LastName:  attempt.LastName,
		},
	})
}

// EnsureSubmission is idempotent per attempt thanks to the unique index on
// attempt_id_ref. Two concurrent first calls race on that index; the loser's
// create fails with a duplicate key and re-fetches the winner's row.
func (s *RuntimeService) EnsureSubmission(attemptID string) (models.Submission, error) {
	var sub models.Submission
	err := s.DB.Where("attempt_id_ref = ?", attemptID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = models.Submission{AttemptIDRef: attemptID}
		err = s.DB.Create(&sub).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = s.DB.Where("attempt_id_ref = ?", attemptID).First(&sub).Error
		}
	}
	return sub, err
}

var (
	ErrAlreadySubmitted  = errors.New("already_submitted")
	ErrAlreadyTerminated = errors.New("terminated")
)
