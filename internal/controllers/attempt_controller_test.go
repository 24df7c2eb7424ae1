package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func resolveRouter(ctrl *AttemptController) *gin.Engine {
	r := gin.New()
	r.POST("/resolve", ctrl.Resolve)
	return r
}

func postResolve(t *testing.T, r *gin.Engine, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/resolve", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResolveVerifiesHashedAccessCode(t *testing.T) {
	db := testDB(t)

	hash, err := utils.HashKey("QUIZ42")
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}
	exam := models.Exam{Title: "Algorithms", AccessCodeHash: hash, DurationMinutes: 30, Active: true}
	if err := db.Create(&exam).Error; err != nil {
		t.Fatalf("create exam: %v", err)
	}

	r := resolveRouter(&AttemptController{DB: db, JWTSecret: "test-secret"})

	w := postResolve(t, r, map[string]string{"code": "QUIZ42", "email": "ada@lovelace.test"})
	if w.Code != http.StatusOK {
		t.Fatalf("resolve with correct code = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		AttemptID string `json:"attempt_id"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AttemptID == "" || resp.Token == "" {
		t.Fatalf("resolve response missing attempt or token: %s", w.Body.String())
	}

	if w := postResolve(t, r, map[string]string{"code": "WRONG1", "email": "ada@lovelace.test"}); w.Code != http.StatusNotFound {
		t.Fatalf("resolve with wrong code = %d, want 404", w.Code)
	}

	// The plaintext code must never land in the database.
	var stored models.Exam
	if err := db.First(&stored, "id = ?", exam.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.AccessCodeHash == "QUIZ42" {
		t.Fatal("entry code stored in plaintext")
	}
}

func TestResolveIgnoresInactiveExams(t *testing.T) {
	db := testDB(t)

	hash, err := utils.HashKey("CLOSED")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.Exam{Title: "Archived", AccessCodeHash: hash, DurationMinutes: 30, Active: false}).Error; err != nil {
		t.Fatal(err)
	}

	r := resolveRouter(&AttemptController{DB: db, JWTSecret: "test-secret"})
	if w := postResolve(t, r, map[string]string{"code": "CLOSED", "email": "ada@lovelace.test"}); w.Code != http.StatusNotFound {
		t.Fatalf("resolve against inactive exam = %d, want 404", w.Code)
	}
}

func TestMatchExamByCode(t *testing.T) {
	first, err := utils.HashKey("AAAA11")
	if err != nil {
		t.Fatal(err)
	}
	second, err := utils.HashKey("BBBB22")
	if err != nil {
		t.Fatal(err)
	}
	exams := []models.Exam{
		{ID: "exam-a", AccessCodeHash: first},
		{ID: "exam-b", AccessCodeHash: second},
	}

	if got, ok := matchExamByCode(exams, "BBBB22"); !ok || got.ID != "exam-b" {
		t.Fatalf("match = (%s, %v), want (exam-b, true)", got.ID, ok)
	}
	if _, ok := matchExamByCode(exams, "CCCC33"); ok {
		t.Fatal("unknown code matched an exam")
	}
	if _, ok := matchExamByCode(nil, "AAAA11"); ok {
		t.Fatal("empty exam list matched")
	}
}
