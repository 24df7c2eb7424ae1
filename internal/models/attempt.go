package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attempt is one student's bounded exam window. EndAt is the absolute
// instant the session clock counts toward.
type Attempt struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ExamIDRef string `gorm:"uniqueIndex:uniq_exam_email"`
	Email     string `gorm:"uniqueIndex:uniq_exam_email"`
	FirstName string
	LastName  string
	StartAt   time.Time
	EndAt     time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Attempt) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
