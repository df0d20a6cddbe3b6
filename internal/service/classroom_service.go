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

var (
	// ErrClassroomNotFound indicates the classroom does not exist or belongs to another teacher.
	ErrClassroomNotFound = errors.New("classroom not found")
	// ErrClassroomNameTaken indicates the teacher already has a classroom with that name.
	ErrClassroomNameTaken = errors.New("classroom with this name already exists")
	// ErrStudentNotInClassroom indicates the student is not placed in the classroom.
	ErrStudentNotInClassroom = errors.New("student is not in this classroom")
)

// ClassroomService manages a teacher's classrooms and their rosters.
type ClassroomService interface {
	Create(ctx context.Context, actor grading.Actor, req dto.ClassroomRequest) (dto.ClassroomResponse, error)
	List(ctx context.Context, actor grading.Actor) ([]dto.ClassroomResponse, error)
	Rename(ctx context.Context, actor grading.Actor, id uint, req dto.ClassroomRequest) error
	Delete(ctx context.Context, actor grading.Actor, id uint, removeStudents bool) error
	AddStudents(ctx context.Context, actor grading.Actor, id uint, req dto.ClassroomStudentsRequest) (dto.ClassroomStudentsResponse, error)
	RemoveStudent(ctx context.Context, actor grading.Actor, id, studentID uint) error
}

type classroomService struct {
	classrooms repository.ClassroomRepository
	tasks      repository.TaskRepository
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewClassroomService constructs the classroom service. tasks resolves student accounts.
func NewClassroomService(classrooms repository.ClassroomRepository, tasks repository.TaskRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ClassroomService {
	return &classroomService{
		classrooms: classrooms,
		tasks:      tasks,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "classroom_service").Logger(),
	}
}

func (s *classroomService) Create(ctx context.Context, actor grading.Actor, req dto.ClassroomRequest) (dto.ClassroomResponse, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return dto.ClassroomResponse{}, ErrPermissionDenied
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ClassroomResponse{}, err
	}

	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, teacher.ID, name, 0); err != nil {
		return dto.ClassroomResponse{}, err
	}

	classroom := models.Classroom{TeacherID: teacher.ID, Name: name}
	if err := s.classrooms.Create(ctx, &classroom); err != nil {
		s.logger.Error().Err(err).Uint("teacher_id", teacher.ID).Msg("failed to create classroom")
		return dto.ClassroomResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionClassroomCreated, "classroom", classroom.ID, nil)
	return dto.ClassroomResponse{ID: classroom.ID, Name: classroom.Name, CreatedAt: classroom.CreatedAt}, nil
}

func (s *classroomService) List(ctx context.Context, actor grading.Actor) ([]dto.ClassroomResponse, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return nil, ErrPermissionDenied
	}

	rows, err := s.classrooms.List(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ClassroomResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.ClassroomResponse{ID: row.ID, Name: row.Name, Students: row.Students, CreatedAt: row.CreatedAt})
	}
	return items, nil
}

func (s *classroomService) Rename(ctx context.Context, actor grading.Actor, id uint, req dto.ClassroomRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return err
	}
	classroom, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(req.Name)
	if name == classroom.Name {
		return nil
	}
	if err := s.ensureNameFree(ctx, classroom.TeacherID, name, classroom.ID); err != nil {
		return err
	}
	if err := s.classrooms.Rename(ctx, classroom.ID, name); err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionClassroomRenamed, "classroom", classroom.ID, map[string]interface{}{
		"from": classroom.Name,
		"to":   name,
	})
	return nil
}

func (s *classroomService) Delete(ctx context.Context, actor grading.Actor, id uint, removeStudents bool) error {
	classroom, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.classrooms.Delete(ctx, classroom, removeStudents); err != nil {
		s.logger.Error().Err(err).Uint("classroom_id", id).Msg("failed to delete classroom")
		return err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionClassroomDeleted, "classroom", id, map[string]interface{}{
		"remove_students": removeStudents,
	})
	return nil
}

func (s *classroomService) AddStudents(ctx context.Context, actor grading.Actor, id uint, req dto.ClassroomStudentsRequest) (dto.ClassroomStudentsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ClassroomStudentsResponse{}, err
	}
	classroom, err := s.owned(ctx, actor, id)
	if err != nil {
		return dto.ClassroomStudentsResponse{}, err
	}

	candidates := mergeIDs(req.StudentIDs)
	students, err := s.tasks.ExistingStudentIDs(ctx, candidates)
	if err != nil {
		return dto.ClassroomStudentsResponse{}, err
	}
	if len(students) == 0 {
		return dto.ClassroomStudentsResponse{}, ErrNoStudents
	}

	if err := s.classrooms.Assign(ctx, classroom.TeacherID, classroom.ID, students); err != nil {
		s.logger.Error().Err(err).Uint("classroom_id", id).Msg("failed to assign students")
		return dto.ClassroomStudentsResponse{}, err
	}

	response := dto.ClassroomStudentsResponse{
		ClassroomID: classroom.ID,
		Assigned:    len(students),
		Skipped:     len(candidates) - len(students),
	}
	recordActivity(ctx, s.activity, s.logger, actor, ActionClassroomStudents, "classroom", classroom.ID, map[string]interface{}{
		"assigned": response.Assigned,
		"skipped":  response.Skipped,
	})
	return response, nil
}

func (s *classroomService) RemoveStudent(ctx context.Context, actor grading.Actor, id, studentID uint) error {
	classroom, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	removed, err := s.classrooms.Unassign(ctx, classroom.TeacherID, classroom.ID, studentID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrStudentNotInClassroom
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionClassroomStudents, "classroom", classroom.ID, map[string]interface{}{
		"removed": studentID,
	})
	return nil
}

func (s *classroomService) owned(ctx context.Context, actor grading.Actor, id uint) (models.Classroom, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return models.Classroom{}, ErrPermissionDenied
	}

	classroom, err := s.classrooms.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Classroom{}, ErrClassroomNotFound
	}
	if err != nil {
		return models.Classroom{}, err
	}
	if classroom.TeacherID != teacher.ID {
		return models.Classroom{}, ErrClassroomNotFound
	}
	return classroom, nil
}

func (s *classroomService) ensureNameFree(ctx context.Context, teacherID uint, name string, exceptID uint) error {
	taken, err := s.classrooms.NameTaken(ctx, teacherID, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ErrClassroomNameTaken
	}
	return nil
}
