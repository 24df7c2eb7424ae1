package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission holds the answers for one attempt. SubmittedAt moves from nil
// to a value at most once; every writer goes through the check-then-set
// finalize transaction.
type Submission struct {
	ID              string     `gorm:"type:uuid;primaryKey"`
	AttemptIDRef    string     `gorm:"uniqueIndex"`
	SubmittedAt     *time.Time `gorm:"index"`
	TerminatedAt    *time.Time
	TerminateReason string `gorm:"size:32"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s *Submission) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type Answer struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	SubmissionIDRef string `gorm:"uniqueIndex:uniq_submission_question"`
	QuestionIDRef   string `gorm:"uniqueIndex:uniq_submission_question"`
	Text            string
	Score           *float64
	Feedback        string
	IsCorrect       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *Answer) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
