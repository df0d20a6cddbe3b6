package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/htr"
)

// HTRConsumer delivers recognition results from the result queue.
type HTRConsumer interface {
	Consume(ctx context.Context) (<-chan htr.Message, error)
}

// IngestSummary describes what a recognition result changed.
type IngestSummary struct {
	WorkID         uint
	UpdatedFiles   int
	Comments       int
	SkippedAnswers int
	BannedKeys     []string
	AIVerified     bool
}

// AIResultService applies handwriting recognition results to works.
type AIResultService interface {
	// Run consumes results until ctx is cancelled or the delivery channel closes.
	Run(ctx context.Context) error
	Handle(ctx context.Context, msg htr.Message)
	Ingest(ctx context.Context, result htr.Result) (IngestSummary, error)
}

type aiResultService struct {
	consumer      HTRConsumer
	works         repository.WorkRepository
	verifications repository.VerificationRepository
	activity      ActivityRecorder
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewAIResultService constructs the ingestion service. consumer may be nil when only Ingest is used.
func NewAIResultService(consumer HTRConsumer, works repository.WorkRepository, verifications repository.VerificationRepository, activity ActivityRecorder, logger zerolog.Logger) AIResultService {
	return &aiResultService{
		consumer:      consumer,
		works:         works,
		verifications: verifications,
		activity:      activity,
		logger:        logger.With().Str("component", "ai_result_service").Logger(),
		tracer:        otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/ai_result"),
	}
}

func (s *aiResultService) Run(ctx context.Context) error {
	if s.consumer == nil {
		return errors.New("htr consumer not configured")
	}

	deliveries, err := s.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().Msg("htr result consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				s.logger.Warn().Msg("htr result channel closed")
				return nil
			}
			s.Handle(ctx, msg)
		}
	}
}

func (s *aiResultService) Handle(ctx context.Context, msg htr.Message) {
	logger := s.logger.With().Str("correlation_id", msg.CorrelationID).Logger()
	ctx = middleware.ContextWithCorrelation(ctx, msg.CorrelationID)

	result, err := htr.DecodeResult(msg.Body)
	if err != nil {
		observability.HTRResults().WithLabelValues("invalid").Inc()
		logger.Warn().Err(err).Msg("rejecting invalid htr result")
		settle(logger, msg.Nack(false))
		return
	}

	summary, err := s.Ingest(ctx, result)
	switch {
	case errors.Is(err, grading.ErrAggregateNotFound):
		observability.HTRResults().WithLabelValues("rejected").Inc()
		logger.Warn().Uint("work_id", result.WorkID).Msg("rejecting htr result for unknown work")
		settle(logger, msg.Nack(false))
	case err != nil:
		observability.HTRResults().WithLabelValues("failed").Inc()
		// A result that already failed once is not requeued again.
		logger.Error().Err(err).Uint("work_id", result.WorkID).Bool("redelivered", msg.Redelivered).Msg("failed to ingest htr result")
		settle(logger, msg.Nack(!msg.Redelivered))
	default:
		observability.HTRResults().WithLabelValues("applied").Inc()
		logger.Info().
			Uint("work_id", summary.WorkID).
			Int("files", summary.UpdatedFiles).
			Int("comments", summary.Comments).
			Bool("ai_verified", summary.AIVerified).
			Msg("htr result applied")
		settle(logger, msg.Ack())
	}
}

func (s *aiResultService) Ingest(ctx context.Context, result htr.Result) (IngestSummary, error) {
	ctx, span := s.tracer.Start(ctx, "htr.ingest", trace.WithAttributes(attribute.Int("work.id", int(result.WorkID))))
	defer span.End()

	work, err := s.works.GetAggregate(ctx, result.WorkID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, "work not found")
		return IngestSummary{}, grading.ErrAggregateNotFound
	}
	if err != nil {
		span.RecordError(err)
		return IngestSummary{}, err
	}

	commentTypes := map[uint]struct{}{}
	if work.Task.Subject != nil {
		for _, commentType := range work.Task.Subject.CommentTypes {
			commentTypes[commentType.ID] = struct{}{}
		}
	}

	summary := IngestSummary{WorkID: work.ID}
	var files []models.AnswerFile
	var comments []models.Comment

	for _, entry := range result.Answers {
		answer := work.AnswerByID(entry.ID)
		if answer == nil {
			summary.SkippedAnswers++
			continue
		}

		for _, reported := range entry.Files {
			status := models.FileAIStatus(reported.Status)
			for _, file := range answer.Files {
				if file.Key != reported.Key {
					continue
				}
				file.AIStatus = status
				files = append(files, file)
				if status == models.FileAIStatusBanned {
					summary.BannedKeys = append(summary.BannedKeys, file.Key)
				}
			}
		}

		for _, reported := range entry.Comments {
			description := plainText(reported.Description)
			if description == "" {
				continue
			}
			comment := models.Comment{
				AnswerID:    answer.ID,
				FileKey:     reported.FileKey,
				Description: description,
				Human:       false,
			}
			if reported.TypeID != nil {
				if _, ok := commentTypes[*reported.TypeID]; ok {
					comment.TypeID = reported.TypeID
				}
			}
			for _, rect := range reported.Coordinates {
				comment.Coordinates = append(comment.Coordinates, models.Coordinates{X1: rect.X1, Y1: rect.Y1, X2: rect.X2, Y2: rect.Y2})
			}
			comments = append(comments, comment)
		}
	}

	verified, err := s.verifications.ApplyResult(ctx, work.ID, files, comments)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return IngestSummary{}, grading.ErrAggregateNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return IngestSummary{}, err
	}

	summary.UpdatedFiles = len(files)
	summary.Comments = len(comments)
	summary.AIVerified = verified

	if len(summary.BannedKeys) > 0 {
		// Banned images stay referenced so the teacher can review them.
		s.logger.Warn().Uint("work_id", work.ID).Strs("keys", summary.BannedKeys).Msg("htr banned files")
	}

	recordActivity(ctx, s.activity, s.logger, nil, ActionAIResultIngested, "work", work.ID, map[string]interface{}{
		"files":       summary.UpdatedFiles,
		"comments":    summary.Comments,
		"banned":      len(summary.BannedKeys),
		"ai_verified": verified,
	})

	span.SetStatus(codes.Ok, "applied")
	return summary, nil
}

func settle(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Error().Err(err).Msg("failed to settle htr message")
	}
}
