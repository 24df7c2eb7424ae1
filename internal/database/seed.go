package database

import (
	"log"

	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/config"
	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/utils"
)

// SeedDemoExam creates one exam with a fresh entry code if no exam exists
// yet, so a new deployment is immediately usable.
func SeedDemoExam(db *gorm.DB, cfg *config.Config) error {
	var count int64
	if err := db.Model(&models.Exam{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	code, err := utils.GenerateCode(6)
	if err != nil {
		return err
	}
	hash, err := utils.HashKey(code)
	if err != nil {
		return err
	}
	exam := models.Exam{
		Title:           cfg.SeedExamTitle,
		AccessCodeHash:  hash,
		DurationMinutes: cfg.SeedExamDurationMinutes,
		Active:          true,
	}
	if err := db.Create(&exam).Error; err != nil {
		return err
	}

	questions := []models.Question{
		{ExamIDRef: exam.ID, Position: 1, Prompt: "Describe the difference between a process and a thread.", Language: ""},
		{ExamIDRef: exam.ID, Position: 2, Prompt: "Write a function that reverses a linked list.", Language: "go"},
	}
	for i := range questions {
		if err := db.Create(&questions[i]).Error; err != nil {
			return err
		}
	}

	// The plaintext code exists only here; hand it to the students.
	log.Printf("seeded demo exam %q with entry code %s", exam.Title, code)
	return nil
}
