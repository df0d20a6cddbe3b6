package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

// WorkListFilter narrows work list queries. TeacherID and StudentID scope the rows to
// the caller; the remaining fields are user supplied.
type WorkListFilter struct {
	TeacherID *uint
	StudentID *uint
	TaskID    *uint
	Statuses  []models.WorkStatus
	Page      int
	PageSize  int
}

// WorkSummary is one row of a work list with its aggregated score.
type WorkSummary struct {
	ID        uint
	TaskID    uint
	TaskName  string
	StudentID uint
	FirstName string
	LastName  string
	Status    models.WorkStatus
	Score     int
	MaxScore  int
	UpdatedAt time.Time
}

// WorkRepository loads and persists work aggregates.
type WorkRepository interface {
	GetAggregate(ctx context.Context, id uint) (models.Work, error)
	Save(ctx context.Context, work *models.Work, changes grading.Result, expectedVersion int) error
	List(ctx context.Context, filter WorkListFilter) ([]WorkSummary, error)
	CreateForTask(ctx context.Context, task models.Task, studentIDs []uint) ([]models.Work, error)
}

type workRepository struct {
	db *gorm.DB
}

// NewWorkRepository instantiates the repository.
func NewWorkRepository(db *gorm.DB) WorkRepository {
	return &workRepository{db: db}
}

func (r *workRepository) GetAggregate(ctx context.Context, id uint) (models.Work, error) {
	var work models.Work
	err := r.db.WithContext(ctx).
		Preload("Task.Subject.CommentTypes").
		Preload("Task.Exercises", func(db *gorm.DB) *gorm.DB { return db.Order("exercises.position ASC, exercises.id ASC") }).
		Preload("Task.Exercises.Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("criteria.id ASC") }).
		Preload("Student").
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("answers.id ASC") }).
		Preload("Answers.Files", func(db *gorm.DB) *gorm.DB { return db.Order("answer_files.id ASC") }).
		Preload("Answers.Assessments", func(db *gorm.DB) *gorm.DB { return db.Order("assessments.id ASC") }).
		Preload("Answers.Comments", func(db *gorm.DB) *gorm.DB { return db.Order("comments.id ASC") }).
		Preload("Answers.Comments.Files").
		First(&work, id).Error
	if err != nil {
		return models.Work{}, err
	}

	return work, nil
}

// Save writes the work row guarded by expectedVersion, then every record listed in changes,
// in one transaction. It returns grading.ErrConcurrentModification when the version moved.
func (r *workRepository) Save(ctx context.Context, work *models.Work, changes grading.Result, expectedVersion int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Work{}).
			Where("id = ? AND version = ?", work.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":      work.Status,
				"conclusion":  work.Conclusion,
				"finish_date": work.FinishDate,
				"ai_verified": work.AIVerified,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return grading.ErrConcurrentModification
		}

		for _, answerID := range changes.UpdatedAnswers {
			answer := work.AnswerByID(answerID)
			if answer == nil {
				continue
			}
			if err := tx.Model(&models.Answer{}).Where("id = ?", answerID).Updates(map[string]interface{}{
				"text":            answer.Text,
				"general_comment": answer.GeneralComment,
				"updated_at":      time.Now(),
			}).Error; err != nil {
				return err
			}
		}

		if len(changes.RemovedFiles) > 0 {
			ids := make([]uint, 0, len(changes.RemovedFiles))
			for _, file := range changes.RemovedFiles {
				ids = append(ids, file.ID)
			}
			if err := tx.Where("id IN ?", ids).Delete(&models.AnswerFile{}).Error; err != nil {
				return err
			}
		}

		if len(changes.AddedFiles) > 0 {
			added := append([]models.AnswerFile(nil), changes.AddedFiles...)
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
		}

		for _, file := range changes.UpdatedFiles {
			if err := tx.Model(&models.AnswerFile{}).
				Where("answer_id = ? AND key = ?", file.AnswerID, file.Key).
				Update("ai_status", file.AIStatus).Error; err != nil {
				return err
			}
		}

		if len(changes.CreatedAssessments) > 0 {
			created := append([]models.Assessment(nil), changes.CreatedAssessments...)
			if err := tx.Create(&created).Error; err != nil {
				return err
			}
		}

		for _, assessment := range changes.UpdatedAssessments {
			query := tx.Model(&models.Assessment{})
			if assessment.ID != 0 {
				query = query.Where("id = ?", assessment.ID)
			} else {
				query = query.Where("answer_id = ? AND criterion_id = ?", assessment.AnswerID, assessment.CriterionID)
			}
			if err := query.Update("points", assessment.Points).Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	work.Version = expectedVersion + 1
	return nil
}

func (r *workRepository) List(ctx context.Context, filter WorkListFilter) ([]WorkSummary, error) {
	query := r.db.WithContext(ctx).Table("works").
		Select(`works.id, works.task_id, works.student_id, works.status, works.updated_at,
			tasks.name AS task_name, users.first_name, users.last_name,
			COALESCE((SELECT SUM(assessments.points) FROM assessments
				JOIN answers ON answers.id = assessments.answer_id
				WHERE answers.work_id = works.id), 0) AS score,
			COALESCE((SELECT SUM(criteria.max_score) FROM criteria
				JOIN exercises ON exercises.id = criteria.exercise_id
				WHERE exercises.task_id = works.task_id), 0) AS max_score`).
		Joins("JOIN tasks ON tasks.id = works.task_id").
		Joins("JOIN users ON users.id = works.student_id")

	if filter.TeacherID != nil {
		query = query.Where("tasks.teacher_id = ?", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("works.student_id = ?", *filter.StudentID)
	}
	if filter.TaskID != nil {
		query = query.Where("works.task_id = ?", *filter.TaskID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("works.status IN ?", filter.Statuses)
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var rows []WorkSummary
	if err := query.Order("works.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// CreateForTask assigns task to every student that does not already have a work for it.
// Each work gets one answer per exercise and a zero assessment per criterion.
func (r *workRepository) CreateForTask(ctx context.Context, task models.Task, studentIDs []uint) ([]models.Work, error) {
	var created []models.Work

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assigned []uint
		if err := tx.Model(&models.Work{}).
			Where("task_id = ? AND student_id IN ?", task.ID, studentIDs).
			Pluck("student_id", &assigned).Error; err != nil {
			return err
		}

		skip := make(map[uint]struct{}, len(assigned))
		for _, id := range assigned {
			skip[id] = struct{}{}
		}

		for _, studentID := range studentIDs {
			if _, ok := skip[studentID]; ok {
				continue
			}
			skip[studentID] = struct{}{}
			created = append(created, models.Work{
				TaskID:    task.ID,
				StudentID: studentID,
				Status:    models.WorkStatusDraft,
				Version:   1,
				Answers:   blankAnswers(task),
			})
		}

		if len(created) == 0 {
			return nil
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func blankAnswers(task models.Task) []models.Answer {
	answers := make([]models.Answer, 0, len(task.Exercises))
	for _, exercise := range task.Exercises {
		assessments := make([]models.Assessment, 0, len(exercise.Criteria))
		for _, criterion := range exercise.Criteria {
			assessments = append(assessments, models.Assessment{CriterionID: criterion.ID})
		}
		answers = append(answers, models.Answer{
			ExerciseID:  exercise.ID,
			Assessments: assessments,
		})
	}
	return answers
}
