package routes

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/config"
	"github.com/zaqqye/exam_session_v1/internal/controllers"
	"github.com/zaqqye/exam_session_v1/internal/grading"
	"github.com/zaqqye/exam_session_v1/internal/middleware"
	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
	"github.com/zaqqye/exam_session_v1/internal/ws"
)

// Register wires the session registry, hubs and controllers onto the router
// and returns the registry so main can shut it down cleanly.
func Register(r *gin.Engine, db *gorm.DB, cfg *config.Config) *session.Registry {
	hubs := ws.NewHubs()
	hubs.Run()

	var grader grading.Grader
	if cfg.GradingAPIURL != "" {
		grader = grading.NewHTTPGrader(cfg.GradingAPIURL)
	}

	registry := session.NewRegistry(session.RuntimeConfig{
		DataDir: cfg.SessionDataDir,
		Policy: session.PolicyConfig{
			TabHiddenAction:     cfg.TabHiddenAction,
			FocusLossAction:     cfg.FocusLossAction,
			DevtoolsAction:      cfg.DevtoolsAction,
			ResizeAction:        cfg.ResizeAction,
			PunishmentThreshold: cfg.PunishmentThreshold,
			PunishmentDuration:  cfg.PunishmentDuration(),
			FocusLossGrace:      cfg.FocusLossGrace(),
		},
		DebounceWindow: cfg.ViolationDebounce(),
	}, controllers.NewDBFinalizer(db), session.Hooks{
		ApplyEdit: func(ctx context.Context, e session.Edit) error {
			answer, err := controllers.UpsertAnswer(db, e)
			if err != nil {
				return err
			}
			controllers.GradeAnswerAsync(db, grader, answer.ID)
			return nil
		},
		OnSnapshot: func(snap session.Snapshot) {
			hubs.Session.Notify(snap.AttemptID, ws.SessionMessage{Type: "session_state", Snapshot: &snap})
		},
		OnViolation: func(attemptID string, ev session.ViolationEvent) {
			hubs.Proctor.Broadcast(ws.ProctorEvent{
				Type:           "violation",
				AttemptID:      attemptID,
				Kind:           string(ev.Kind),
				ViolationCount: ev.CountAfter,
				At:             ev.At,
			})
		},
		OnTerminated: func(attemptID string, reason session.TerminateReason) {
			now := time.Now().UTC()
			err := db.Model(&models.Submission{}).
				Where("attempt_id_ref = ? AND terminated_at IS NULL", attemptID).
				Updates(map[string]interface{}{
					"terminated_at":    now,
					"terminate_reason": string(reason),
				}).Error
			if err != nil {
				log.Printf("recording termination for %s: %v", attemptID, err)
			}
			hubs.Session.Notify(attemptID, ws.SessionMessage{Type: "redirect", Reason: string(reason)})
			hubs.Proctor.Broadcast(ws.ProctorEvent{
				Type:      "terminated",
				AttemptID: attemptID,
				Reason:    string(reason),
				At:        now,
			})
		},
		OnSubmitted: func(attemptID string, rec session.SubmissionRecord) {
			hubs.Proctor.Broadcast(ws.ProctorEvent{
				Type:      "submitted",
				AttemptID: attemptID,
				At:        rec.SubmittedAt,
			})
		},
	})

	runtimeSvc := &controllers.RuntimeService{DB: db, Registry: registry}
	attemptCtrl := &controllers.AttemptController{DB: db, JWTSecret: cfg.JWTSecret}
	submissionCtrl := &controllers.SubmissionController{DB: db, Runtime: runtimeSvc, Grader: grader}
	sessionCtrl := &controllers.SessionController{DB: db, Runtime: runtimeSvc}
	proctorCtrl := &controllers.ProctorController{DB: db, Registry: registry}

	// Public
	r.POST("/api/v1/attempts/resolve", attemptCtrl.Resolve)

	// Student surface, authenticated by the attempt token
	authMW := middleware.AttemptAuth(db, cfg.JWTSecret)
	api := r.Group("/api/v1", authMW)
	{
		api.POST("/submissions", submissionCtrl.CreateOrResume)
		api.PUT("/submissions/:id/answers", submissionCtrl.SaveAnswer)
		api.POST("/submissions/:id/finalize", submissionCtrl.Finalize)
		api.GET("/submissions/:id/answers", submissionCtrl.GetAnswers)

		api.GET("/session", sessionCtrl.GetState)
		api.POST("/session/signals", sessionCtrl.Signal)
		api.POST("/session/punishment/ack", sessionCtrl.AcknowledgePunishment)
		api.GET("/session/redirect-reason", sessionCtrl.RedirectReason)

		api.GET("/ws/session", ws.SessionHandler(hubs, runtimeSvc.Attach))
	}

	// Proctor surface, gated by the shared key
	proctor := r.Group("/api/v1/proctor", middleware.ProctorAuth(cfg.ProctorKeyHash))
	{
		proctor.GET("/sessions", proctorCtrl.ListSessions)
		proctor.GET("/ws", ws.ProctorHandler(hubs))
	}

	return registry
}
