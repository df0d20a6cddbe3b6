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
	// ErrCommentNotFound indicates the comment does not belong to the work.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrAnswerNotFound indicates the answer does not belong to the work.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrInvalidCommentType indicates the comment type is not defined for the task's subject.
	ErrInvalidCommentType = errors.New("comment type not allowed for this subject")
	// ErrEmptyComment indicates the description is empty after sanitization.
	ErrEmptyComment = errors.New("comment description is empty")
)

// CommentService lets the teacher of a task annotate the answers of its works.
type CommentService interface {
	Create(ctx context.Context, actor grading.Actor, workID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error)
	Update(ctx context.Context, actor grading.Actor, workID, commentID uint, req dto.CommentUpdateRequest) (dto.CommentResponse, error)
	Delete(ctx context.Context, actor grading.Actor, workID, commentID uint) error
}

type commentService struct {
	works     repository.WorkRepository
	comments  repository.CommentRepository
	files     FileService
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCommentService constructs the comment service.
func NewCommentService(works repository.WorkRepository, comments repository.CommentRepository, files FileService, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) CommentService {
	return &commentService{
		works:     works,
		comments:  comments,
		files:     files,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "comment_service").Logger(),
	}
}

func (s *commentService) Create(ctx context.Context, actor grading.Actor, workID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CommentResponse{}, err
	}

	work, err := s.teacherWork(ctx, actor, workID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	if work.AnswerByID(req.AnswerID) == nil {
		return dto.CommentResponse{}, ErrAnswerNotFound
	}
	if err := checkCommentType(&work, req.TypeID); err != nil {
		return dto.CommentResponse{}, err
	}

	description := plainText(req.Description)
	if description == "" {
		return dto.CommentResponse{}, ErrEmptyComment
	}

	keys := grading.DiffKeys(nil, req.Files).Added
	if err := s.files.Promote(ctx, keys); err != nil {
		return dto.CommentResponse{}, err
	}

	comment := models.Comment{
		AnswerID:    req.AnswerID,
		TypeID:      req.TypeID,
		FileKey:     strings.TrimSpace(req.FileKey),
		Description: description,
		Human:       true,
		Coordinates: dto.ToModelCoordinates(req.Coordinates),
	}
	for _, key := range keys {
		comment.Files = append(comment.Files, models.CommentFile{Key: key})
	}

	if err := s.comments.Create(ctx, &comment); err != nil {
		s.logger.Error().Err(err).Uint("work_id", workID).Msg("failed to create comment")
		return dto.CommentResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionCommentCreated, "comment", comment.ID, map[string]interface{}{
		"work_id":   workID,
		"answer_id": comment.AnswerID,
		"files":     len(keys),
	})

	return dto.NewCommentResponse(comment, s.resolver(ctx)), nil
}

func (s *commentService) Update(ctx context.Context, actor grading.Actor, workID, commentID uint, req dto.CommentUpdateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CommentResponse{}, err
	}

	work, err := s.teacherWork(ctx, actor, workID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	comment, err := s.load(ctx, &work, commentID)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	if req.TypeID != nil {
		if err := checkCommentType(&work, req.TypeID); err != nil {
			return dto.CommentResponse{}, err
		}
		comment.TypeID = req.TypeID
	}
	if req.FileKey != nil {
		comment.FileKey = strings.TrimSpace(*req.FileKey)
	}
	if req.Description != nil {
		description := plainText(*req.Description)
		if description == "" {
			return dto.CommentResponse{}, ErrEmptyComment
		}
		comment.Description = description
	}
	if req.Coordinates != nil {
		comment.Coordinates = dto.ToModelCoordinates(req.Coordinates)
	}

	var added []models.CommentFile
	var removedIDs []uint
	var removedKeys []string
	if req.Files != nil {
		current := make([]string, 0, len(comment.Files))
		for _, file := range comment.Files {
			current = append(current, file.Key)
		}
		diff := grading.DiffKeys(current, req.Files)

		if err := s.files.Promote(ctx, diff.Added); err != nil {
			return dto.CommentResponse{}, err
		}
		for _, key := range diff.Added {
			added = append(added, models.CommentFile{Key: key})
		}

		removedSet := make(map[string]struct{}, len(diff.Removed))
		for _, key := range diff.Removed {
			removedSet[key] = struct{}{}
		}
		for _, file := range comment.Files {
			if _, ok := removedSet[file.Key]; ok {
				removedIDs = append(removedIDs, file.ID)
				removedKeys = append(removedKeys, file.Key)
			}
		}
	}

	if err := s.comments.Update(ctx, &comment, added, removedIDs); err != nil {
		s.logger.Error().Err(err).Uint("comment_id", commentID).Msg("failed to update comment")
		return dto.CommentResponse{}, err
	}
	s.files.DeleteOrphans(ctx, removedKeys)

	recordActivity(ctx, s.activity, s.logger, actor, ActionCommentUpdated, "comment", comment.ID, map[string]interface{}{
		"work_id":       workID,
		"added_files":   len(added),
		"removed_files": len(removedKeys),
	})

	saved, err := s.comments.Get(ctx, comment.ID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	return dto.NewCommentResponse(saved, s.resolver(ctx)), nil
}

func (s *commentService) Delete(ctx context.Context, actor grading.Actor, workID, commentID uint) error {
	work, err := s.teacherWork(ctx, actor, workID)
	if err != nil {
		return err
	}
	comment, err := s.load(ctx, &work, commentID)
	if err != nil {
		return err
	}

	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	keys := make([]string, 0, len(comment.Files))
	for _, file := range comment.Files {
		keys = append(keys, file.Key)
	}
	s.files.DeleteOrphans(ctx, keys)

	recordActivity(ctx, s.activity, s.logger, actor, ActionCommentDeleted, "comment", comment.ID, map[string]interface{}{
		"work_id": workID,
		"files":   len(keys),
	})
	return nil
}

func (s *commentService) teacherWork(ctx context.Context, actor grading.Actor, workID uint) (models.Work, error) {
	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return models.Work{}, ErrPermissionDenied
	}

	work, err := s.works.GetAggregate(ctx, workID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Work{}, grading.ErrAggregateNotFound
	}
	if err != nil {
		return models.Work{}, err
	}
	if work.Task.TeacherID != teacher.ID {
		return models.Work{}, ErrPermissionDenied
	}
	return work, nil
}

// load returns the comment only when it hangs off an answer of work.
func (s *commentService) load(ctx context.Context, work *models.Work, commentID uint) (models.Comment, error) {
	comment, err := s.comments.Get(ctx, commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Comment{}, ErrCommentNotFound
	}
	if err != nil {
		return models.Comment{}, err
	}
	if work.AnswerByID(comment.AnswerID) == nil {
		return models.Comment{}, ErrCommentNotFound
	}
	return comment, nil
}

func (s *commentService) resolver(ctx context.Context) dto.URLResolver {
	return func(key string) string { return s.files.DownloadURL(ctx, key) }
}

func checkCommentType(work *models.Work, typeID *uint) error {
	if typeID == nil {
		return nil
	}
	if work.Task.Subject != nil {
		for _, commentType := range work.Task.Subject.CommentTypes {
			if commentType.ID == *typeID {
				return nil
			}
		}
	}
	return ErrInvalidCommentType
}
