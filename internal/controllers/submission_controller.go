package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/grading"
	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

type SubmissionController struct {
	DB      *gorm.DB
	Runtime *RuntimeService
	Grader  grading.Grader
}

// CreateOrResume returns the attempt's submission, creating it on first
// call. Finalized submissions are rejected here so the client lands on the
// entry screen instead of an editable exam.
func (sc *SubmissionController) CreateOrResume(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)

	sub, err := sc.Runtime.EnsureSubmission(attempt.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sub.SubmittedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": sub.ID,
		"attempt_id":    sub.AttemptIDRef,
		"submitted_at":  sub.SubmittedAt,
	})
}

type saveAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Text       string `json:"text"`
}

// SaveAnswer writes one answer through the session gate: while the session
// is paused the request blocks until the punishment is acknowledged. When no
// runtime is live (e.g. right after a server restart) the write goes to the
// database directly; the finalize transaction still protects it.
func (sc *SubmissionController) SaveAnswer(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)
	submissionID := c.Param("id")

	var sub models.Submission
	if err := sc.DB.Where("id = ? AND attempt_id_ref = ?", submissionID, attempt.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return
	}

	var req saveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	edit := session.Edit{
		SubmissionID: sub.ID,
		QuestionID:   req.QuestionID,
		Text:         req.Text,
	}

	if guard, ok := sc.Runtime.Registry.Get(attempt.ID); ok {
		if err := guard.SaveAnswer(c.Request.Context(), edit); err != nil {
			status := http.StatusConflict
			if errors.Is(err, session.ErrEditBacklog) {
				status = http.StatusTooManyRequests
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"saved": true})
		return
	}

	answer, err := UpsertAnswer(sc.DB, edit)
	if err != nil {
		if errors.Is(err, errSubmissionFinalized) {
			c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	GradeAnswerAsync(sc.DB, sc.Grader, answer.ID)
	c.JSON(http.StatusOK, gin.H{"saved": true, "answer_id": answer.ID})
}

// Finalize submits the exam on behalf of the user. It rides the session
// coordinator when a runtime is live so the user action and the expiry
// trigger converge; otherwise it calls the check-then-set transaction
// directly, which is idempotent on its own.
func (sc *SubmissionController) Finalize(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)
	submissionID := c.Param("id")

	var sub models.Submission
	if err := sc.DB.Where("id = ? AND attempt_id_ref = ?", submissionID, attempt.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return
	}

	if guard, ok := sc.Runtime.Registry.Get(attempt.ID); ok {
		rec, err := guard.RequestSubmit(c.Request.Context())
		if err != nil {
			if errors.Is(err, session.ErrSessionEnded) {
				c.JSON(http.StatusConflict, gin.H{"error": "terminated"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"submission_id": rec.SubmissionID,
			"submitted_at":  rec.SubmittedAt,
		})
		return
	}

	rec, err := NewDBFinalizer(sc.DB)(c.Request.Context(), sub.ID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submission_id": rec.SubmissionID,
		"submitted_at":  rec.SubmittedAt,
	})
}

// GetAnswers lists the attempt's answers with any grading results.
func (sc *SubmissionController) GetAnswers(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)
	submissionID := c.Param("id")

	var sub models.Submission
	if err := sc.DB.Where("id = ? AND attempt_id_ref = ?", submissionID, attempt.ID).First(&sub).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return
	}

	var answers []models.Answer
	if err := sc.DB.Where("submission_id_ref = ?", sub.ID).Find(&answers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": answers})
}
