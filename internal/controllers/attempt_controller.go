package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/middleware"
	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/utils"
)

type AttemptController struct {
	DB        *gorm.DB
	JWTSecret string
}

type resolveRequest struct {
	Code      string `json:"code" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Resolve exchanges an exam entry code plus email for an attempt and a
// session token. Resuming an open attempt returns the same attempt; an
// already-finalized or expired attempt is rejected with a tagged error so
// the entry screen can explain why.
func (a *AttemptController) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var active []models.Exam
	if err := a.DB.Where("active = ?", true).Find(&active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	exam, ok := matchExamByCode(active, req.Code)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}

	now := time.Now().UTC()
	var attempt models.Attempt
	err := a.DB.Where("exam_id_ref = ? AND email = ?", exam.ID, req.Email).First(&attempt).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		attempt = models.Attempt{
			ExamIDRef: exam.ID,
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			StartAt:   now,
			EndAt:     now.Add(time.Duration(exam.DurationMinutes) * time.Minute),
		}
		if err := a.DB.Create(&attempt).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	default:
		var sub models.Submission
		if err := a.DB.Where("attempt_id_ref = ?", attempt.ID).First(&sub).Error; err == nil {
			if sub.SubmittedAt != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
				return
			}
			if sub.TerminatedAt != nil {
				c.JSON(http.StatusConflict, gin.H{"error": "terminated", "reason": sub.TerminateReason})
				return
			}
		}
		if now.After(attempt.EndAt) {
			c.JSON(http.StatusGone, gin.H{"error": "expired"})
			return
		}
	}

	token, err := a.issueToken(attempt)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	var questions []models.Question
	if err := a.DB.Where("exam_id_ref = ?", exam.ID).Order("position asc").Find(&questions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id": attempt.ID,
		"token":      token,
		"exam_title": exam.Title,
		"start_at":   attempt.StartAt,
		"end_at":     attempt.EndAt,
		"questions":  questions,
	})
}

// matchExamByCode finds the active exam whose stored hash verifies the
// presented entry code. Codes are never stored in plaintext, so the lookup
// checks each candidate instead of querying by value.
func matchExamByCode(exams []models.Exam, code string) (models.Exam, bool) {
	for _, exam := range exams {
		if utils.CheckKey(exam.AccessCodeHash, code) {
			return exam, true
		}
	}
	return models.Exam{}, false
}

func (a *AttemptController) issueToken(attempt models.Attempt) (string, error) {
	// Valid a little past the exam end so the final submit and the redirect
	// handshake still authenticate.
	expiry := attempt.EndAt.Add(time.Hour)
	claims := middleware.Claims{
		AttemptID: attempt.ID,
		Email:     attempt.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}
