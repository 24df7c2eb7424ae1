package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/grading"
	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/session"
)

var errSubmissionFinalized = errors.New("submission already finalized")

// UpsertAnswer writes one answer, refusing once the submission is finalized.
// It backs both the REST path and the guard's ApplyEdit hook.
func UpsertAnswer(db *gorm.DB, edit session.Edit) (models.Answer, error) {
	var answer models.Answer
	err := db.Transaction(func(tx *gorm.DB) error {
		var sub models.Submission
		if err := tx.Where("id = ?", edit.SubmissionID).First(&sub).Error; err != nil {
			return err
		}
		if sub.SubmittedAt != nil {
			return errSubmissionFinalized
		}
		err := tx.Where("submission_id_ref = ? AND question_id_ref = ?",
			edit.SubmissionID, edit.QuestionID).First(&answer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			answer = models.Answer{
				SubmissionIDRef: edit.SubmissionID,
				QuestionIDRef:   edit.QuestionID,
				Text:            edit.Text,
			}
			return tx.Create(&answer).Error
		}
		if err != nil {
			return err
		}
		answer.Text = edit.Text
		return tx.Save(&answer).Error
	})
	return answer, err
}

// GradeAnswerAsync sends the answer to the grading collaborator and stores
// the result. Fire and forget: grading feeds UI state only, so failures are
// logged and the answer row is left ungraded.
func GradeAnswerAsync(db *gorm.DB, grader grading.Grader, answerID string) {
	if grader == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		var answer models.Answer
		if err := db.Where("id = ?", answerID).First(&answer).Error; err != nil {
			return
		}
		var question models.Question
		if err := db.Where("id = ?", answer.QuestionIDRef).First(&question).Error; err != nil {
			return
		}
		result, err := grader.Grade(ctx, question.Prompt, answer.Text, question.Language)
		if err != nil {
			log.Printf("grading answer %s: %v", answerID, err)
			return
		}
		updates := map[string]interface{}{
			"score":      result.Grade,
			"feedback":   result.Feedback,
			"is_correct": result.IsCorrect,
		}
		if err := db.Model(&models.Answer{}).Where("id = ?", answerID).Updates(updates).Error; err != nil {
			log.Printf("storing grade for answer %s: %v", answerID, err)
		}
	}()
}
