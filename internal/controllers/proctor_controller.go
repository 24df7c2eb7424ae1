package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

// ProctorController serves the monitoring dashboard's REST surface. It only
// relays what the session runtimes report; there is no detection logic here.
type ProctorController struct {
	DB       *gorm.DB
	Registry *session.Registry
}

// ListSessions returns every attempt with its submission status and, for
// live runtimes, the current session snapshot.
func (pc *ProctorController) ListSessions(c *gin.Context) {
	var attempts []models.Attempt
	if err := pc.DB.Order("created_at desc").Limit(200).Find(&attempts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(attempts))
	for _, attempt := range attempts {
		entry := gin.H{
			"attempt_id": attempt.ID,
			"email":      attempt.Email,
			"first_name": attempt.FirstName,
			"last_name":  attempt.LastName,
			"start_at":   attempt.StartAt,
			"end_at":     attempt.EndAt,
		}
		var sub models.Submission
		if err := pc.DB.Where("attempt_id_ref = ?", attempt.ID).First(&sub).Error; err == nil {
			entry["submitted_at"] = sub.SubmittedAt
			entry["terminated_at"] = sub.TerminatedAt
			entry["terminate_reason"] = sub.TerminateReason
		}
		if guard, ok := pc.Registry.Get(attempt.ID); ok {
			entry["live"] = true
			entry["session"] = guard.Snapshot()
		} else {
			entry["live"] = false
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}
