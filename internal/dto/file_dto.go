package dto

import "time"

// UploadLinkRequest asks for a presigned link to upload one image.
type UploadLinkRequest struct {
	Filename string `json:"filename" validate:"required,max=255"`
}

// UploadLinkResponse carries the key to reference later and the PUT link.
type UploadLinkResponse struct {
	Key        string    `json:"key"`
	UploadLink string    `json:"upload_link"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AIVerificationResponse reports a dispatched handwriting recognition request.
type AIVerificationResponse struct {
	WorkID          uint   `json:"work_id"`
	Files           int    `json:"files"`
	RemainingChecks int    `json:"remaining_checks"`
	CorrelationID   string `json:"correlation_id"`
}
