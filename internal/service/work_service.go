package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

var (
	// ErrPermissionDenied indicates the actor neither owns the work nor teaches its task.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTaskNotFound indicates the task does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrNoStudents indicates a work creation request resolved to no student.
	ErrNoStudents = errors.New("no students to assign")
)

const (
	listScopeTeacher = "teacher"
	listScopeStudent = "student"
)

// WorkServiceOptions tune the work service.
type WorkServiceOptions struct {
	EventsSubject    string
	CacheTTL         time.Duration
	StrictReferences bool
}

// WorkService drives the lifecycle of works: creation, reads, status changes and full updates.
type WorkService interface {
	Get(ctx context.Context, actor grading.Actor, id uint) (dto.WorkDetailResponse, error)
	ListForTeacher(ctx context.Context, teacherID uint, query dto.WorkListQuery) (dto.WorkListResponse, error)
	ListForStudent(ctx context.Context, studentID uint, query dto.WorkListQuery) (dto.WorkListResponse, error)
	UpdateStatus(ctx context.Context, actor grading.Actor, id uint, req dto.WorkStatusRequest) (dto.WorkStatusResponse, error)
	Update(ctx context.Context, actor grading.Actor, id uint, req dto.WorkUpdateRequest) (dto.WorkDetailResponse, error)
	CreateForTask(ctx context.Context, actor grading.Actor, taskID uint, req dto.WorkCreateRequest) (dto.WorkCreateResponse, error)
}

type workService struct {
	works     repository.WorkRepository
	tasks     repository.TaskRepository
	files     FileService
	activity  ActivityRecorder
	events    *workEvents
	cache     *workListCache
	strict    bool
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewWorkService constructs the work service. events and cache may be nil.
func NewWorkService(
	works repository.WorkRepository,
	tasks repository.TaskRepository,
	files FileService,
	activity ActivityRecorder,
	events EventPublisher,
	cache *redis.Client,
	opts WorkServiceOptions,
	validate *validator.Validate,
	logger zerolog.Logger,
) WorkService {
	return &workService{
		works:     works,
		tasks:     tasks,
		files:     files,
		activity:  activity,
		events:    newWorkEvents(events, opts.EventsSubject, logger),
		cache:     newWorkListCache(cache, opts.CacheTTL, logger),
		strict:    opts.StrictReferences,
		validator: validate,
		logger:    logger.With().Str("component", "work_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/work"),
		now:       time.Now,
	}
}

func (s *workService) Get(ctx context.Context, actor grading.Actor, id uint) (dto.WorkDetailResponse, error) {
	work, err := s.load(ctx, id)
	if err != nil {
		return dto.WorkDetailResponse{}, err
	}
	if err := authorizeWork(&work, actor); err != nil {
		return dto.WorkDetailResponse{}, err
	}

	return s.detail(ctx, work), nil
}

func (s *workService) ListForTeacher(ctx context.Context, teacherID uint, query dto.WorkListQuery) (dto.WorkListResponse, error) {
	filter := repository.WorkListFilter{TeacherID: &teacherID, StudentID: query.StudentID}
	return s.list(ctx, listScopeTeacher, teacherID, query, filter)
}

func (s *workService) ListForStudent(ctx context.Context, studentID uint, query dto.WorkListQuery) (dto.WorkListResponse, error) {
	filter := repository.WorkListFilter{StudentID: &studentID}
	return s.list(ctx, listScopeStudent, studentID, query, filter)
}

func (s *workService) list(ctx context.Context, scope string, userID uint, query dto.WorkListQuery, filter repository.WorkListFilter) (dto.WorkListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.WorkListResponse{}, err
	}

	filter.TaskID = query.TaskID
	filter.Page = maxInt(query.Page, 1)
	filter.PageSize = query.PageSize
	if filter.PageSize == 0 {
		filter.PageSize = 50
	}
	for _, status := range query.Statuses {
		filter.Statuses = append(filter.Statuses, models.WorkStatus(status))
	}

	cacheKey := listCacheKey(filter)
	var response dto.WorkListResponse
	if s.cache.get(ctx, scope, userID, cacheKey, &response) {
		return response, nil
	}

	rows, err := s.works.List(ctx, filter)
	if err != nil {
		s.logger.Error().Err(err).Str("scope", scope).Uint("user_id", userID).Msg("failed to list works")
		return dto.WorkListResponse{}, err
	}

	response = dto.WorkListResponse{Items: make([]dto.WorkListItem, 0, len(rows)), Page: filter.Page}
	for _, row := range rows {
		response.Items = append(response.Items, dto.WorkListItem{
			ID:          row.ID,
			TaskID:      row.TaskID,
			TaskName:    row.TaskName,
			StudentID:   row.StudentID,
			StudentName: strings.TrimSpace(row.FirstName + " " + row.LastName),
			Status:      row.Status.String(),
			Score:       row.Score,
			MaxScore:    row.MaxScore,
			Percent:     dto.ScorePercent(row.Score, row.MaxScore),
			UpdatedAt:   row.UpdatedAt,
		})
	}

	s.cache.set(ctx, scope, userID, cacheKey, response)
	return response, nil
}

func (s *workService) UpdateStatus(ctx context.Context, actor grading.Actor, id uint, req dto.WorkStatusRequest) (dto.WorkStatusResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.WorkStatusResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "works.update_status", trace.WithAttributes(
		attribute.Int("work.id", int(id)),
		attribute.String("work.requested_status", req.Status),
	))
	defer span.End()

	work, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.WorkStatusResponse{}, err
	}
	if err := authorizeWrite(&work, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forbidden")
		return dto.WorkStatusResponse{}, err
	}

	previous := work.Status
	expected := work.Version
	conclusion := plainTextPtr(req.Conclusion)
	requested := models.WorkStatus(strings.TrimSpace(req.Status))

	if err := grading.ApplyTransition(&work, requested, conclusion, actor); err != nil {
		observability.WorkTransitions().WithLabelValues(previous.String(), requested.String(), "rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		return dto.WorkStatusResponse{}, err
	}

	// An empty update only contributes the automatic finish date.
	changes, err := grading.Reconcile(&work, grading.WorkUpdate{}, actor, grading.Options{PreviousStatus: previous, Now: s.now()})
	if err != nil {
		span.RecordError(err)
		return dto.WorkStatusResponse{}, err
	}

	if previous != work.Status || conclusion != nil || changes.Changed() {
		if err := s.works.Save(ctx, &work, changes, expected); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist failed")
			return dto.WorkStatusResponse{}, err
		}
	}

	observability.WorkTransitions().WithLabelValues(previous.String(), work.Status.String(), "accepted").Inc()
	s.afterWrite(ctx, actor, &work, previous, ActionWorkStatusChanged, map[string]interface{}{
		"from": previous.String(),
		"to":   work.Status.String(),
	})

	span.SetStatus(codes.Ok, "status updated")
	return dto.NewWorkStatusResponse(work), nil
}

func (s *workService) Update(ctx context.Context, actor grading.Actor, id uint, req dto.WorkUpdateRequest) (dto.WorkDetailResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.WorkDetailResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "works.update", trace.WithAttributes(attribute.Int("work.id", int(id))))
	defer span.End()

	work, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.WorkDetailResponse{}, err
	}
	if err := authorizeWrite(&work, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forbidden")
		return dto.WorkDetailResponse{}, err
	}

	previous := work.Status
	expected := work.Version
	update := sanitizeUpdate(req.ToWorkUpdate())

	if req.Status != nil {
		requested := models.WorkStatus(strings.TrimSpace(*req.Status))
		if err := grading.ApplyTransition(&work, requested, update.Conclusion, actor); err != nil {
			observability.WorkTransitions().WithLabelValues(previous.String(), requested.String(), "rejected").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "transition rejected")
			return dto.WorkDetailResponse{}, err
		}
	} else if err := grading.ValidateEdit(work.Status, actor); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "edit rejected")
		return dto.WorkDetailResponse{}, err
	}

	changes, err := grading.Reconcile(&work, update, actor, grading.Options{
		PreviousStatus: previous,
		Now:            s.now(),
		Strict:         s.strict,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile rejected")
		return dto.WorkDetailResponse{}, err
	}
	for _, skipped := range changes.Skipped {
		s.logger.Debug().Uint("work_id", id).Str("entity", skipped.Entity).Msg("skipped reference outside the work")
	}

	if err := s.files.Promote(ctx, changes.AddedKeys()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "promote failed")
		return dto.WorkDetailResponse{}, err
	}

	if err := s.works.Save(ctx, &work, changes, expected); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.WorkDetailResponse{}, err
	}

	s.files.DeleteOrphans(ctx, changes.RemovedKeys())

	if previous != work.Status {
		observability.WorkTransitions().WithLabelValues(previous.String(), work.Status.String(), "accepted").Inc()
	}
	s.afterWrite(ctx, actor, &work, previous, ActionWorkUpdated, map[string]interface{}{
		"from":                previous.String(),
		"to":                  work.Status.String(),
		"updated_answers":     len(changes.UpdatedAnswers),
		"added_files":         len(changes.AddedFiles),
		"removed_files":       len(changes.RemovedFiles),
		"updated_assessments": len(changes.UpdatedAssessments) + len(changes.CreatedAssessments),
		"skipped":             len(changes.Skipped),
	})

	saved, err := s.load(ctx, id)
	if err != nil {
		return dto.WorkDetailResponse{}, err
	}

	span.SetStatus(codes.Ok, "work updated")
	return s.detail(ctx, saved), nil
}

func (s *workService) CreateForTask(ctx context.Context, actor grading.Actor, taskID uint, req dto.WorkCreateRequest) (dto.WorkCreateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.WorkCreateResponse{}, err
	}
	if len(req.StudentIDs) == 0 && len(req.ClassroomIDs) == 0 {
		return dto.WorkCreateResponse{}, ErrNoStudents
	}

	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return dto.WorkCreateResponse{}, ErrPermissionDenied
	}

	task, err := s.tasks.GetWithExercises(ctx, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.WorkCreateResponse{}, ErrTaskNotFound
	}
	if err != nil {
		return dto.WorkCreateResponse{}, err
	}
	if task.TeacherID != teacher.ID {
		return dto.WorkCreateResponse{}, ErrPermissionDenied
	}

	fromClassrooms, err := s.tasks.ClassroomStudentIDs(ctx, teacher.ID, req.ClassroomIDs)
	if err != nil {
		return dto.WorkCreateResponse{}, err
	}
	candidates := mergeIDs(req.StudentIDs, fromClassrooms)

	studentIDs, err := s.tasks.ExistingStudentIDs(ctx, candidates)
	if err != nil {
		return dto.WorkCreateResponse{}, err
	}
	if len(studentIDs) == 0 {
		return dto.WorkCreateResponse{}, ErrNoStudents
	}
	sort.Slice(studentIDs, func(i, j int) bool { return studentIDs[i] < studentIDs[j] })

	created, err := s.works.CreateForTask(ctx, task, studentIDs)
	if err != nil {
		s.logger.Error().Err(err).Uint("task_id", taskID).Msg("failed to create works")
		return dto.WorkCreateResponse{}, err
	}

	response := dto.WorkCreateResponse{TaskID: task.ID, WorkIDs: make([]uint, 0, len(created))}
	students := make([]uint, 0, len(created)+1)
	for _, work := range created {
		response.WorkIDs = append(response.WorkIDs, work.ID)
		students = append(students, work.StudentID)
	}
	response.Skipped = len(candidates) - len(created)

	s.cache.invalidate(ctx, append(students, teacher.ID)...)
	recordActivity(ctx, s.activity, s.logger, actor, ActionWorksCreated, "task", task.ID, map[string]interface{}{
		"created": len(created),
		"skipped": response.Skipped,
	})

	return response, nil
}

func (s *workService) load(ctx context.Context, id uint) (models.Work, error) {
	work, err := s.works.GetAggregate(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Work{}, grading.ErrAggregateNotFound
	}
	if err != nil {
		return models.Work{}, fmt.Errorf("load work %d: %w", id, err)
	}
	return work, nil
}

func (s *workService) detail(ctx context.Context, work models.Work) dto.WorkDetailResponse {
	resolve := func(key string) string { return s.files.DownloadURL(ctx, key) }
	return dto.WorkDetailResponse{
		Task: dto.NewTaskResponse(work.Task),
		Work: dto.NewWorkResponse(work, resolve),
	}
}

// afterWrite runs the side effects of a committed write: cache invalidation, the
// status event and the audit entry.
func (s *workService) afterWrite(ctx context.Context, actor grading.Actor, work *models.Work, previous models.WorkStatus, action string, metadata map[string]interface{}) {
	s.cache.invalidate(ctx, work.StudentID, work.Task.TeacherID)

	if previous != work.Status {
		s.events.statusChanged(WorkStatusChangedEvent{
			WorkID:     work.ID,
			TaskID:     work.TaskID,
			StudentID:  work.StudentID,
			TeacherID:  work.Task.TeacherID,
			From:       previous.String(),
			To:         work.Status.String(),
			ActorID:    actor.UserID(),
			ActorRole:  actor.Role(),
			OccurredAt: s.now().UTC(),
		})
	}

	recordActivity(ctx, s.activity, s.logger, actor, action, "work", work.ID, metadata)
}

// sanitizeUpdate strips markup from teacher prose. Answer text is stored as submitted.
func sanitizeUpdate(update grading.WorkUpdate) grading.WorkUpdate {
	update.Conclusion = plainTextPtr(update.Conclusion)
	for i := range update.Answers {
		update.Answers[i].GeneralComment = plainTextPtr(update.Answers[i].GeneralComment)
	}
	return update
}

// authorizeWork allows the owning student and the teacher of the work's task.
func authorizeWork(work *models.Work, actor grading.Actor) error {
	switch a := actor.(type) {
	case grading.StudentActor:
		if work.StudentID == a.ID {
			return nil
		}
	case grading.TeacherActor:
		if work.Task.TeacherID == a.ID {
			return nil
		}
	case nil:
		return grading.ErrUnauthorizedRole
	}
	return ErrPermissionDenied
}

// authorizeWrite is authorizeWork for mutations, except that admins pass through so
// the grading rules reject them with their own kind.
func authorizeWrite(work *models.Work, actor grading.Actor) error {
	if _, ok := actor.(grading.AdminActor); ok {
		return nil
	}
	return authorizeWork(work, actor)
}

func listCacheKey(filter repository.WorkListFilter) string {
	parts := []string{fmt.Sprintf("p%d-%d", filter.Page, filter.PageSize)}
	if filter.StudentID != nil {
		parts = append(parts, fmt.Sprintf("s%d", *filter.StudentID))
	}
	if filter.TaskID != nil {
		parts = append(parts, fmt.Sprintf("t%d", *filter.TaskID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, status.String())
		}
		sort.Strings(statuses)
		parts = append(parts, "st"+strings.Join(statuses, ","))
	}
	return strings.Join(parts, ":")
}

func mergeIDs(lists ...[]uint) []uint {
	seen := make(map[uint]struct{})
	var merged []uint
	for _, list := range lists {
		for _, id := range list {
			if id == 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}
