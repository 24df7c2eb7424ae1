package controllers

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
)

// testDB opens a throwaway sqlite database with the same error translation
// the production postgres connection uses.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Exam{},
		&models.Question{},
		&models.Attempt{},
		&models.Submission{},
		&models.Answer{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
