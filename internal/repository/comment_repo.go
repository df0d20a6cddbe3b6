package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// CommentRepository persists comments left on answers.
type CommentRepository interface {
	Get(ctx context.Context, id uint) (models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	// Update writes the comment fields, attaches added files and drops removedFileIDs.
	Update(ctx context.Context, comment *models.Comment, added []models.CommentFile, removedFileIDs []uint) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository instantiates the repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Get(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Files").First(&comment, id).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment, added []models.CommentFile, removedFileIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Comment{}).Where("id = ?", comment.ID).Updates(map[string]interface{}{
			"description": comment.Description,
			"type_id":     comment.TypeID,
			"file_key":    comment.FileKey,
			"coordinates": comment.Coordinates,
			"updated_at":  time.Now(),
		}).Error; err != nil {
			return err
		}

		if len(removedFileIDs) > 0 {
			if err := tx.Where("comment_id = ? AND id IN ?", comment.ID, removedFileIDs).Delete(&models.CommentFile{}).Error; err != nil {
				return err
			}
		}

		if len(added) > 0 {
			files := append([]models.CommentFile(nil), added...)
			for i := range files {
				files[i].CommentID = comment.ID
			}
			if err := tx.Create(&files).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.CommentFile{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
