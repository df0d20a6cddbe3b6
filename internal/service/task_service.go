package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// ErrTaskInUse indicates the task already has works, so its rubric or the task itself
// cannot be removed.
var ErrTaskInUse = errors.New("task already has works")

// TaskService lets teachers author tasks, their exercises and rubric criteria.
type TaskService interface {
	Create(ctx context.Context, actor grading.Actor, req dto.TaskCreateRequest) (dto.TaskResponse, error)
	List(ctx context.Context, actor grading.Actor, query dto.TaskListQuery) ([]dto.TaskListItem, error)
	Get(ctx context.Context, actor grading.Actor, id uint) (dto.TaskResponse, error)
	Update(ctx context.Context, actor grading.Actor, id uint, req dto.TaskUpdateRequest) (dto.TaskResponse, error)
	Delete(ctx context.Context, actor grading.Actor, id uint) error
}

type taskService struct {
	tasks     repository.TaskRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(tasks repository.TaskRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		tasks:     tasks,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

func (s *taskService) Create(ctx context.Context, actor grading.Actor, req dto.TaskCreateRequest) (dto.TaskResponse, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return dto.TaskResponse{}, ErrPermissionDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.TaskResponse{}, err
	}

	task := models.Task{
		TeacherID:   teacher.ID,
		SubjectID:   req.SubjectID,
		Name:        strings.TrimSpace(req.Name),
		Description: plainText(req.Description),
		Deadline:    req.Deadline,
		Exercises:   dto.ToModelExercises(req.Exercises),
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		s.logger.Error().Err(err).Uint("teacher_id", teacher.ID).Msg("failed to create task")
		return dto.TaskResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionTaskCreated, "task", task.ID, map[string]interface{}{
		"exercises": len(task.Exercises),
	})

	return s.reload(ctx, task.ID)
}

func (s *taskService) List(ctx context.Context, actor grading.Actor, query dto.TaskListQuery) ([]dto.TaskListItem, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return nil, ErrPermissionDenied
	}

	rows, err := s.tasks.List(ctx, teacher.ID, query.SubjectID)
	if err != nil {
		s.logger.Error().Err(err).Uint("teacher_id", teacher.ID).Msg("failed to list tasks")
		return nil, err
	}

	items := make([]dto.TaskListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.TaskListItem{
			ID:          row.ID,
			Name:        row.Name,
			SubjectID:   row.SubjectID,
			SubjectName: row.SubjectName,
			Exercises:   row.Exercises,
			Works:       row.Works,
			MaxScore:    row.MaxScore,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return items, nil
}

func (s *taskService) Get(ctx context.Context, actor grading.Actor, id uint) (dto.TaskResponse, error) {
	task, err := s.owned(ctx, actor, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}

func (s *taskService) Update(ctx context.Context, actor grading.Actor, id uint, req dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TaskResponse{}, err
	}

	task, err := s.owned(ctx, actor, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if req.Name != nil {
		task.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		task.Description = plainText(*req.Description)
	}
	if req.SubjectID != nil {
		task.SubjectID = req.SubjectID
	}
	if req.Deadline != nil {
		task.Deadline = req.Deadline
	}

	replace := req.Exercises != nil
	if replace {
		// Answers and assessments point at exercises and criteria.
		works, err := s.tasks.CountWorks(ctx, id)
		if err != nil {
			return dto.TaskResponse{}, err
		}
		if works > 0 {
			return dto.TaskResponse{}, ErrTaskInUse
		}
		task.Exercises = dto.ToModelExercises(req.Exercises)
	}

	if err := s.tasks.Update(ctx, &task, replace); err != nil {
		s.logger.Error().Err(err).Uint("task_id", id).Msg("failed to update task")
		return dto.TaskResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionTaskUpdated, "task", id, map[string]interface{}{
		"exercises_replaced": replace,
	})

	return s.reload(ctx, id)
}

func (s *taskService) Delete(ctx context.Context, actor grading.Actor, id uint) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}

	works, err := s.tasks.CountWorks(ctx, id)
	if err != nil {
		return err
	}
	if works > 0 {
		return ErrTaskInUse
	}

	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		s.logger.Error().Err(err).Uint("task_id", id).Msg("failed to delete task")
		return err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionTaskDeleted, "task", id, nil)
	return nil
}

func (s *taskService) owned(ctx context.Context, actor grading.Actor, id uint) (models.Task, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return models.Task{}, ErrPermissionDenied
	}

	task, err := s.tasks.GetWithExercises(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	if task.TeacherID != teacher.ID {
		return models.Task{}, ErrPermissionDenied
	}
	return task, nil
}

func (s *taskService) reload(ctx context.Context, id uint) (dto.TaskResponse, error) {
	task, err := s.tasks.GetWithExercises(ctx, id)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(task), nil
}
