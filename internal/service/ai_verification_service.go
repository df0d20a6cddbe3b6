package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/htr"
)

// ErrNoFilesToVerify indicates the work has no file waiting for recognition.
var ErrNoFilesToVerify = errors.New("no files to verify")

// HTRPublisher sends recognition requests to the handwriting recognition worker.
type HTRPublisher interface {
	Publish(ctx context.Context, correlationID string, body []byte) error
}

// AIVerificationService charges a teacher's plan and dispatches draft files to recognition.
type AIVerificationService interface {
	Dispatch(ctx context.Context, actor grading.Actor, workID uint) (dto.AIVerificationResponse, error)
}

type aiVerificationService struct {
	works         repository.WorkRepository
	verifications repository.VerificationRepository
	publisher     HTRPublisher
	activity      ActivityRecorder
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewAIVerificationService constructs the dispatch service.
func NewAIVerificationService(works repository.WorkRepository, verifications repository.VerificationRepository, publisher HTRPublisher, activity ActivityRecorder, logger zerolog.Logger) AIVerificationService {
	return &aiVerificationService{
		works:         works,
		verifications: verifications,
		publisher:     publisher,
		activity:      activity,
		logger:        logger.With().Str("component", "ai_verification_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/ai_verification"),
		now:           time.Now,
	}
}

func (s *aiVerificationService) Dispatch(ctx context.Context, actor grading.Actor, workID uint) (dto.AIVerificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "htr.dispatch", trace.WithAttributes(attribute.Int("work.id", int(workID))))
	defer span.End()

	teacher, ok := actor.(grading.TeacherActor)
	if !ok {
		return dto.AIVerificationResponse{}, ErrPermissionDenied
	}

	work, err := s.works.GetAggregate(ctx, workID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AIVerificationResponse{}, grading.ErrAggregateNotFound
	}
	if err != nil {
		span.RecordError(err)
		return dto.AIVerificationResponse{}, err
	}
	if work.Task.TeacherID != teacher.ID {
		return dto.AIVerificationResponse{}, ErrPermissionDenied
	}

	request, fileIDs := buildHTRRequest(work)
	if len(fileIDs) == 0 {
		return dto.AIVerificationResponse{}, ErrNoFilesToVerify
	}
	span.SetAttributes(attribute.Int("htr.files", len(fileIDs)))

	body, err := json.Marshal(request)
	if err != nil {
		return dto.AIVerificationResponse{}, fmt.Errorf("encode htr request: %w", err)
	}

	correlationID := middleware.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	err = s.verifications.Reserve(ctx, repository.Reservation{
		TeacherID: teacher.ID,
		WorkID:    work.ID,
		FileIDs:   fileIDs,
		Now:       s.now(),
	}, func(ctx context.Context) error {
		return s.publisher.Publish(ctx, correlationID, body)
	})
	if err != nil {
		observability.HTRDispatch().WithLabelValues(dispatchResult(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		if !errors.Is(err, repository.ErrInsufficientChecks) && !errors.Is(err, repository.ErrSubscriptionInactive) {
			s.logger.Error().Err(err).Uint("work_id", work.ID).Msg("failed to dispatch htr request")
		}
		return dto.AIVerificationResponse{}, err
	}
	observability.HTRDispatch().WithLabelValues("published").Inc()

	remaining := 0
	if subscription, err := s.verifications.Subscription(ctx, teacher.ID); err == nil {
		remaining = subscription.RemainingChecks()
	}

	recordActivity(ctx, s.activity, s.logger, actor, ActionAIVerificationQueued, "work", work.ID, map[string]interface{}{
		"files":          len(fileIDs),
		"correlation_id": correlationID,
	})

	s.logger.Info().Uint("work_id", work.ID).Int("files", len(fileIDs)).Str("correlation_id", correlationID).Msg("htr request published")
	span.SetStatus(codes.Ok, "published")

	return dto.AIVerificationResponse{
		WorkID:          work.ID,
		Files:           len(fileIDs),
		RemainingChecks: remaining,
		CorrelationID:   correlationID,
	}, nil
}

// buildHTRRequest selects the draft files of the work, grouped by answer.
func buildHTRRequest(work models.Work) (htr.Request, []uint) {
	request := htr.Request{
		WorkID:       work.ID,
		TaskID:       work.TaskID,
		Status:       work.Status.String(),
		CommentTypes: []htr.RequestComment{},
		Answers:      []htr.RequestAnswer{},
	}
	if work.Task.Subject != nil {
		for _, commentType := range work.Task.Subject.CommentTypes {
			request.CommentTypes = append(request.CommentTypes, htr.RequestComment{
				ID:        commentType.ID,
				ShortName: commentType.ShortName,
				Name:      commentType.Name,
			})
		}
	}

	var fileIDs []uint
	for _, answer := range work.Answers {
		entry := htr.RequestAnswer{ID: answer.ID}
		for _, file := range answer.Files {
			if file.AIStatus != models.FileAIStatusDraft {
				continue
			}
			entry.Files = append(entry.Files, htr.RequestFile{ID: file.ID, Key: file.Key})
			fileIDs = append(fileIDs, file.ID)
		}
		if len(entry.Files) > 0 {
			request.Answers = append(request.Answers, entry)
		}
	}

	return request, fileIDs
}

func dispatchResult(err error) string {
	switch {
	case errors.Is(err, repository.ErrInsufficientChecks), errors.Is(err, repository.ErrSubscriptionInactive):
		return "quota"
	case errors.Is(err, grading.ErrConcurrentModification):
		return "conflict"
	default:
		return "failed"
	}
}
