package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

// SessionController is the REST fallback for clients without a websocket.
type SessionController struct {
	DB      *gorm.DB
	Runtime *RuntimeService
}

func (sc *SessionController) attach(c *gin.Context) (*session.Guard, bool) {
	attempt := c.MustGet("attempt").(models.Attempt)
	guard, err := sc.Runtime.Attach(attempt)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": "already_submitted"})
		case errors.Is(err, ErrAlreadyTerminated):
			c.JSON(http.StatusConflict, gin.H{"error": "terminated"})
		case errors.Is(err, session.ErrInvalidEnd):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "attempt has no valid end instant"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return guard, true
}

// GetState starts (or resumes) the session runtime and returns its snapshot.
func (sc *SessionController) GetState(c *gin.Context) {
	guard, ok := sc.attach(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, guard.Snapshot())
}

type signalRequest struct {
	Type string `json:"type" binding:"required"`
}

// Signal ingests one raw platform signal over REST.
func (sc *SessionController) Signal(c *gin.Context) {
	guard, ok := sc.attach(c)
	if !ok {
		return
	}
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := guard.HandleSignal(session.SignalKind(req.Type)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// AcknowledgePunishment closes a completed pause window.
func (sc *SessionController) AcknowledgePunishment(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)
	guard, ok := sc.Runtime.Registry.Get(attempt.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no live session"})
		return
	}
	if !guard.AcknowledgePunishment() {
		c.JSON(http.StatusConflict, gin.H{"error": "no punishment awaiting acknowledgement"})
		return
	}
	c.JSON(http.StatusOK, guard.Snapshot())
}

// RedirectReason tells the entry screen why the student landed back on it.
// The live tab-scoped value is consumed exactly once; after the runtime is
// gone the submission row still carries the reason.
func (sc *SessionController) RedirectReason(c *gin.Context) {
	attempt := c.MustGet("attempt").(models.Attempt)
	if guard, ok := sc.Runtime.Registry.Get(attempt.ID); ok {
		if reason, found := guard.RedirectReason(); found {
			c.JSON(http.StatusOK, gin.H{"reason": reason})
			return
		}
	}
	var sub models.Submission
	if err := sc.DB.Where("attempt_id_ref = ?", attempt.ID).First(&sub).Error; err == nil && sub.TerminateReason != "" {
		c.JSON(http.StatusOK, gin.H{"reason": sub.TerminateReason})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
