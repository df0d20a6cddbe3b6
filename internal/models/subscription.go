package models

import "time"

// Plan defines how many AI verifications a subscription grants.
type Plan struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	Name               string `gorm:"size:128;not null" json:"name"`
	VerificationsCount int    `gorm:"not null;default:0" json:"verifications_count"`
	PriceCents         int64  `gorm:"not null;default:0" json:"price_cents"`
}

// Subscription tracks a teacher's plan and AI verification usage.
type Subscription struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID     *uint      `json:"plan_id"`
	UsedChecks int        `gorm:"not null;default:0" json:"used_checks"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Plan       *Plan      `json:"plan,omitempty"`
}

// RemainingChecks returns the number of verifications still available.
func (s Subscription) RemainingChecks() int {
	if s.Plan == nil {
		return 0
	}
	remaining := s.Plan.VerificationsCount - s.UsedChecks
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Active reports whether the subscription has a plan and has not expired.
func (s Subscription) Active(reference time.Time) bool {
	if s.Plan == nil {
		return false
	}
	return s.ExpiresAt == nil || reference.Before(*s.ExpiresAt)
}
