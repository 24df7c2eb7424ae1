package controllers

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

// NewDBFinalizer returns the check-then-set finalize operation. The row is
// locked for the duration of the transaction, submittedAt is re-verified
// under the lock, and a second call returns the already-finalized record as
// a success. Two coordinators in two tabs, or a replayed request, therefore
// converge on one submittedAt.
func NewDBFinalizer(db *gorm.DB) session.FinalizeFunc {
	return func(ctx context.Context, submissionID string) (session.SubmissionRecord, error) {
		var rec session.SubmissionRecord
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var sub models.Submission
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", submissionID).First(&sub).Error; err != nil {
				return err
			}
			if sub.SubmittedAt == nil {
				now := time.Now().UTC()
				if err := tx.Model(&sub).Update("submitted_at", now).Error; err != nil {
					return err
				}
				sub.SubmittedAt = &now
			}
			rec = session.SubmissionRecord{
				SubmissionID: sub.ID,
				SubmittedAt:  *sub.SubmittedAt,
			}
			return nil
		})
		return rec, err
	}
}
