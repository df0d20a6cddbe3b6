package dto

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// PlanResponse serializes a plan.
type PlanResponse struct {
	ID                 uint   `json:"id"`
	Name               string `json:"name"`
	VerificationsCount int    `json:"verifications_count"`
	PriceCents         int64  `json:"price_cents"`
}

// SubscriptionResponse serializes the caller's subscription and remaining quota.
type SubscriptionResponse struct {
	ID              uint          `json:"id"`
	Active          bool          `json:"active"`
	UsedChecks      int           `json:"used_checks"`
	RemainingChecks int           `json:"remaining_checks"`
	ExpiresAt       *time.Time    `json:"expires_at"`
	Plan            *PlanResponse `json:"plan"`
}

// NewPlanResponse converts a plan model.
func NewPlanResponse(plan models.Plan) PlanResponse {
	return PlanResponse{
		ID:                 plan.ID,
		Name:               plan.Name,
		VerificationsCount: plan.VerificationsCount,
		PriceCents:         plan.PriceCents,
	}
}

// NewSubscriptionResponse converts a subscription, evaluating activity at reference.
func NewSubscriptionResponse(subscription models.Subscription, reference time.Time) SubscriptionResponse {
	response := SubscriptionResponse{
		ID:              subscription.ID,
		Active:          subscription.Active(reference),
		UsedChecks:      subscription.UsedChecks,
		RemainingChecks: subscription.RemainingChecks(),
		ExpiresAt:       subscription.ExpiresAt,
	}
	if subscription.Plan != nil {
		plan := NewPlanResponse(*subscription.Plan)
		response.Plan = &plan
	}
	return response
}
