package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// ErrSubscriptionNotFound indicates the user never subscribed.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionService exposes plans and the caller's verification quota.
type SubscriptionService interface {
	Current(ctx context.Context, userID uint) (dto.SubscriptionResponse, error)
	Plans(ctx context.Context) ([]dto.PlanResponse, error)
}

type subscriptionService struct {
	repo   repository.SubscriptionRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewSubscriptionService constructs the subscription service.
func NewSubscriptionService(repo repository.SubscriptionRepository, logger zerolog.Logger) SubscriptionService {
	return &subscriptionService{
		repo:   repo,
		logger: logger.With().Str("component", "subscription_service").Logger(),
		now:    time.Now,
	}
}

func (s *subscriptionService) Current(ctx context.Context, userID uint) (dto.SubscriptionResponse, error) {
	subscription, err := s.repo.ForUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubscriptionResponse{}, ErrSubscriptionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Uint("user_id", userID).Msg("failed to load subscription")
		return dto.SubscriptionResponse{}, err
	}
	return dto.NewSubscriptionResponse(subscription, s.now()), nil
}

func (s *subscriptionService) Plans(ctx context.Context) ([]dto.PlanResponse, error) {
	plans, err := s.repo.Plans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list plans")
		return nil, err
	}

	items := make([]dto.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		items = append(items, dto.NewPlanResponse(plan))
	}
	return items, nil
}
