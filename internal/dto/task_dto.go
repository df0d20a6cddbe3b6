package dto

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// TaskCreateRequest authors a task together with its exercises and rubric.
type TaskCreateRequest struct {
	SubjectID   *uint             `json:"subject_id"`
	Name        string            `json:"name" validate:"required,max=255"`
	Description string            `json:"description" validate:"omitempty,max=10000"`
	Deadline    *time.Time        `json:"deadline"`
	Exercises   []ExerciseRequest `json:"exercises" validate:"required,min=1,dive"`
}

// TaskUpdateRequest changes a task. Exercises, when present, replaces the whole tree.
type TaskUpdateRequest struct {
	SubjectID   *uint             `json:"subject_id"`
	Name        *string           `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string           `json:"description" validate:"omitempty,max=10000"`
	Deadline    *time.Time        `json:"deadline"`
	Exercises   []ExerciseRequest `json:"exercises" validate:"omitempty,min=1,dive"`
}

// ExerciseRequest is one exercise of an authored task.
type ExerciseRequest struct {
	Title    string             `json:"title" validate:"required,max=255"`
	Body     string             `json:"body" validate:"omitempty,max=20000"`
	Position int                `json:"position" validate:"gte=0"`
	Criteria []CriterionRequest `json:"criteria" validate:"required,min=1,dive"`
}

// CriterionRequest is one rubric line of an exercise.
type CriterionRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	MaxScore int    `json:"max_score" validate:"gte=0,lte=1000"`
}

// TaskListQuery filters the teacher's tasks.
type TaskListQuery struct {
	SubjectID *uint
}

// TaskListItem is one row of the teacher's task list.
type TaskListItem struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	SubjectID   *uint     `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Exercises   int       `json:"exercises"`
	Works       int       `json:"works"`
	MaxScore    int       `json:"max_score"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToModelExercises builds the exercise tree in request order. A zero position takes the
// exercise's index, counted from one.
func ToModelExercises(exercises []ExerciseRequest) []models.Exercise {
	out := make([]models.Exercise, 0, len(exercises))
	for i, exercise := range exercises {
		position := exercise.Position
		if position == 0 {
			position = i + 1
		}
		criteria := make([]models.Criterion, 0, len(exercise.Criteria))
		for _, criterion := range exercise.Criteria {
			criteria = append(criteria, models.Criterion{Name: criterion.Name, MaxScore: criterion.MaxScore})
		}
		out = append(out, models.Exercise{
			Position: position,
			Title:    exercise.Title,
			Body:     exercise.Body,
			Criteria: criteria,
		})
	}
	return out
}
