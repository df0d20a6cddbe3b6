package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// TaskSummary is one row of a teacher's task list.
type TaskSummary struct {
	ID          uint
	Name        string
	SubjectID   *uint
	SubjectName string
	Exercises   int
	Works       int
	MaxScore    int
	UpdatedAt   time.Time
}

// TaskRepository stores authored tasks and reads the rosters they are assigned to.
type TaskRepository interface {
	GetWithExercises(ctx context.Context, id uint) (models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	List(ctx context.Context, teacherID uint, subjectID *uint) ([]TaskSummary, error)
	// Update writes the task columns and, when replaceExercises is set, swaps the whole
	// exercise tree for task.Exercises.
	Update(ctx context.Context, task *models.Task, replaceExercises bool) error
	Delete(ctx context.Context, id uint) error
	CountWorks(ctx context.Context, taskID uint) (int64, error)
	// ClassroomStudentIDs returns the students of teacherID placed in any of classroomIDs.
	ClassroomStudentIDs(ctx context.Context, teacherID uint, classroomIDs []uint) ([]uint, error)
	// ExistingStudentIDs keeps the ids that belong to student accounts.
	ExistingStudentIDs(ctx context.Context, ids []uint) ([]uint, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates the repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) GetWithExercises(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Preload("Exercises", func(db *gorm.DB) *gorm.DB { return db.Order("exercises.position ASC, exercises.id ASC") }).
		Preload("Exercises.Criteria", func(db *gorm.DB) *gorm.DB { return db.Order("criteria.id ASC") }).
		First(&task, id).Error
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) List(ctx context.Context, teacherID uint, subjectID *uint) ([]TaskSummary, error) {
	query := r.db.WithContext(ctx).Table("tasks").
		Select(`tasks.id, tasks.name, tasks.subject_id, tasks.updated_at,
			COALESCE(subjects.name, '') AS subject_name,
			(SELECT COUNT(*) FROM exercises WHERE exercises.task_id = tasks.id) AS exercises,
			(SELECT COUNT(*) FROM works WHERE works.task_id = tasks.id) AS works,
			COALESCE((SELECT SUM(criteria.max_score) FROM criteria
				JOIN exercises ON exercises.id = criteria.exercise_id
				WHERE exercises.task_id = tasks.id), 0) AS max_score`).
		Joins("LEFT JOIN subjects ON subjects.id = tasks.subject_id").
		Where("tasks.teacher_id = ?", teacherID)

	if subjectID != nil {
		query = query.Where("tasks.subject_id = ?", *subjectID)
	}

	var rows []TaskSummary
	if err := query.Order("tasks.updated_at DESC, tasks.id DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task, replaceExercises bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"name":        task.Name,
			"description": task.Description,
			"subject_id":  task.SubjectID,
			"deadline":    task.Deadline,
			"updated_at":  time.Now(),
		}).Error; err != nil {
			return err
		}

		if !replaceExercises {
			return nil
		}

		var exerciseIDs []uint
		if err := tx.Model(&models.Exercise{}).Where("task_id = ?", task.ID).Pluck("id", &exerciseIDs).Error; err != nil {
			return err
		}
		if len(exerciseIDs) > 0 {
			if err := tx.Where("exercise_id IN ?", exerciseIDs).Delete(&models.Criterion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", exerciseIDs).Delete(&models.Exercise{}).Error; err != nil {
				return err
			}
		}

		for i := range task.Exercises {
			task.Exercises[i].ID = 0
			task.Exercises[i].TaskID = task.ID
		}
		if len(task.Exercises) == 0 {
			return nil
		}
		return tx.Create(&task.Exercises).Error
	})
}

func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exerciseIDs []uint
		if err := tx.Model(&models.Exercise{}).Where("task_id = ?", id).Pluck("id", &exerciseIDs).Error; err != nil {
			return err
		}
		if len(exerciseIDs) > 0 {
			if err := tx.Where("exercise_id IN ?", exerciseIDs).Delete(&models.Criterion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id = ?", id).Delete(&models.Exercise{}).Error; err != nil {
				return err
			}
		}

		res := tx.Delete(&models.Task{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *taskRepository) CountWorks(ctx context.Context, taskID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Work{}).Where("task_id = ?", taskID).Count(&count).Error
	return count, err
}

func (r *taskRepository) ClassroomStudentIDs(ctx context.Context, teacherID uint, classroomIDs []uint) ([]uint, error) {
	if len(classroomIDs) == 0 {
		return nil, nil
	}

	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ClassroomMember{}).
		Where("teacher_id = ? AND classroom_id IN ?", teacherID, classroomIDs).
		Distinct().
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *taskRepository) ExistingStudentIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existing []uint
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND role = ?", ids, models.RoleStudent).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}
