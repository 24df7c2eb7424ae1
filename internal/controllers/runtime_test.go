package controllers

import (
	"testing"

	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
)

func TestEnsureSubmissionIsIdempotent(t *testing.T) {
	db := testDB(t)
	attempt := models.Attempt{ExamIDRef: "exam-1", Email: "ada@lovelace.test"}
	if err := db.Create(&attempt).Error; err != nil {
		t.Fatal(err)
	}

	svc := &RuntimeService{DB: db}
	first, err := svc.EnsureSubmission(attempt.ID)
	if err != nil {
		t.Fatalf("first EnsureSubmission: %v", err)
	}
	second, err := svc.EnsureSubmission(attempt.ID)
	if err != nil {
		t.Fatalf("second EnsureSubmission: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("second call returned a different submission: %s vs %s", first.ID, second.ID)
	}
}

func TestEnsureSubmissionRecoversFromDuplicateCreate(t *testing.T) {
	db := testDB(t)
	attempt := models.Attempt{ExamIDRef: "exam-1", Email: "ada@lovelace.test"}
	if err := db.Create(&attempt).Error; err != nil {
		t.Fatal(err)
	}

	// Simulate losing the race on the unique attempt_id_ref index: a rival
	// row lands between the not-found lookup and the create.
	var rival models.Submission
	raced := false
	err := db.Callback().Create().Before("gorm:create").Register("rival_insert", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "submissions" {
			return
		}
		raced = true
		rival = models.Submission{AttemptIDRef: attempt.ID}
		if err := db.Create(&rival).Error; err != nil {
			t.Errorf("rival insert: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	svc := &RuntimeService{DB: db}
	sub, err := svc.EnsureSubmission(attempt.ID)
	if err != nil {
		t.Fatalf("EnsureSubmission after duplicate create: %v", err)
	}
	if sub.ID != rival.ID {
		t.Fatalf("EnsureSubmission returned %s, want the winner's row %s", sub.ID, rival.ID)
	}

	var count int64
	if err := db.Model(&models.Submission{}).Where("attempt_id_ref = ?", attempt.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("submission rows = %d, want 1", count)
	}
}
