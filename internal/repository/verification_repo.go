package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

var (
	// ErrSubscriptionInactive indicates the teacher has no plan or it expired.
	ErrSubscriptionInactive = errors.New("subscription is not active")
	// ErrInsufficientChecks indicates the plan does not cover the requested verifications.
	ErrInsufficientChecks = errors.New("not enough verifications left")
)

// Reservation describes a batch of files sent to handwriting recognition.
type Reservation struct {
	TeacherID uint
	WorkID    uint
	FileIDs   []uint
	Now       time.Time
}

// VerificationRepository persists the quota and file state of handwriting recognition.
type VerificationRepository interface {
	// Reserve charges the teacher's subscription for the files, marks them pending and runs
	// publish inside the same transaction; a publish error rolls everything back.
	Reserve(ctx context.Context, reservation Reservation, publish func(ctx context.Context) error) error
	// ApplyResult stores recognised file statuses and generated comments and reports
	// whether the work has no pending file left.
	ApplyResult(ctx context.Context, workID uint, files []models.AnswerFile, comments []models.Comment) (bool, error)
	Subscription(ctx context.Context, userID uint) (models.Subscription, error)
}

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository instantiates the repository.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Subscription(ctx context.Context, userID uint) (models.Subscription, error) {
	return NewSubscriptionRepository(r.db).ForUser(ctx, userID)
}

func (r *verificationRepository) Reserve(ctx context.Context, reservation Reservation, publish func(ctx context.Context) error) error {
	count := len(reservation.FileIDs)
	if count == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Plan").
			Where("user_id = ?", reservation.TeacherID).
			First(&subscription).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionInactive
		}
		if err != nil {
			return err
		}

		if !subscription.Active(reservation.Now) {
			return ErrSubscriptionInactive
		}
		if subscription.RemainingChecks() < count {
			return ErrInsufficientChecks
		}

		if err := tx.Model(&models.Subscription{}).
			Where("id = ?", subscription.ID).
			Update("used_checks", gorm.Expr("used_checks + ?", count)).Error; err != nil {
			return err
		}

		res := tx.Model(&models.AnswerFile{}).
			Where("id IN ? AND ai_status = ?", reservation.FileIDs, models.FileAIStatusDraft).
			Update("ai_status", models.FileAIStatusPending)
		if res.Error != nil {
			return res.Error
		}
		if int(res.RowsAffected) != count {
			return grading.ErrConcurrentModification
		}

		if err := tx.Model(&models.Work{}).
			Where("id = ?", reservation.WorkID).
			Updates(map[string]interface{}{
				"ai_verified": false,
				"version":     gorm.Expr("version + 1"),
			}).Error; err != nil {
			return err
		}

		return publish(ctx)
	})
}

func (r *verificationRepository) ApplyResult(ctx context.Context, workID uint, files []models.AnswerFile, comments []models.Comment) (bool, error) {
	verified := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, file := range files {
			if err := tx.Model(&models.AnswerFile{}).
				Where("id = ?", file.ID).
				Update("ai_status", file.AIStatus).Error; err != nil {
				return err
			}
		}

		if len(comments) > 0 {
			created := append([]models.Comment(nil), comments...)
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
		}

		var pending int64
		if err := tx.Model(&models.AnswerFile{}).
			Joins("JOIN answers ON answers.id = answer_files.answer_id").
			Where("answers.work_id = ? AND answer_files.ai_status = ?", workID, models.FileAIStatusPending).
			Count(&pending).Error; err != nil {
			return err
		}
		verified = pending == 0

		res := tx.Model(&models.Work{}).
			Where("id = ?", workID).
			Updates(map[string]interface{}{
				"ai_verified": verified,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return verified, nil
}
