package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Exam struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Title           string
	AccessCodeHash  string // bcrypt hash of the entry code handed to students
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e *Exam) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

type Question struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ExamIDRef string `gorm:"index"`
	Position  int
	Prompt    string
	Language  string `gorm:"size:32"` // hint for the grading collaborator
	CreatedAt time.Time
}

func (q *Question) BeforeCreate(tx *gorm.DB) (err error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
