package models

// FileAIStatus tracks the handwriting-recognition state of an uploaded answer file.
type FileAIStatus string

const (
	FileAIStatusDraft        FileAIStatus = "draft"
	FileAIStatusPending      FileAIStatus = "pending"
	FileAIStatusVerification FileAIStatus = "verification"
	FileAIStatusVerified     FileAIStatus = "verified"
	FileAIStatusBanned       FileAIStatus = "banned"
)

// Valid reports whether the AI status is one of the known values.
func (s FileAIStatus) Valid() bool {
	switch s {
	case FileAIStatusDraft, FileAIStatusPending, FileAIStatusVerification, FileAIStatusVerified, FileAIStatusBanned:
		return true
	default:
		return false
	}
}

// AnswerFile references an object stored in the permanent bucket.
type AnswerFile struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	AnswerID uint         `gorm:"not null;index" json:"answer_id"`
	Key      string       `gorm:"size:255;not null" json:"key"`
	AIStatus FileAIStatus `gorm:"size:32;not null;default:draft" json:"ai_status"`
}
