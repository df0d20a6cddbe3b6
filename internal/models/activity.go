package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable grading events triggered by students, teachers and the HTR pipeline.
type ActivityLog struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ActorID    uint   `gorm:"not null;index" json:"actor_id"`
	ActorRole  string `gorm:"size:32;not null" json:"actor_role"`
	Action     string `gorm:"size:64;not null;index" json:"action"`
	EntityType string `gorm:"size:64;not null;index:idx_activity_entity" json:"entity_type"`
	EntityID   *uint  `gorm:"index:idx_activity_entity" json:"entity_id"`
	// CorrelationID ties the entry to the HTTP request or HTR message that produced it.
	CorrelationID string            `gorm:"size:64;index" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}
