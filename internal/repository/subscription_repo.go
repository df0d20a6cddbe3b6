package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// SubscriptionRepository reads plans and per-user subscriptions.
type SubscriptionRepository interface {
	ForUser(ctx context.Context, userID uint) (models.Subscription, error)
	Plans(ctx context.Context) ([]models.Plan, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository instantiates the repository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) ForUser(ctx context.Context, userID uint) (models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.WithContext(ctx).Preload("Plan").Where("user_id = ?", userID).First(&subscription).Error; err != nil {
		return models.Subscription{}, err
	}
	return subscription, nil
}

func (r *subscriptionRepository) Plans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).Order("price_cents ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
