package dto

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// CoordinatesPayload is a rectangle on an answer image.
type CoordinatesPayload struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// CommentCreateRequest adds a teacher comment to an answer.
type CommentCreateRequest struct {
	AnswerID    uint                 `json:"answer_id" validate:"required,gt=0"`
	TypeID      *uint                `json:"type_id"`
	FileKey     string               `json:"file_key" validate:"omitempty,max=255"`
	Description string               `json:"description" validate:"required,max=10000"`
	Coordinates []CoordinatesPayload `json:"coordinates"`
	Files       []string             `json:"files" validate:"omitempty,dive,required,max=255"`
}

// CommentUpdateRequest changes a comment. Files, when present, is the complete attachment list.
type CommentUpdateRequest struct {
	TypeID      *uint                `json:"type_id"`
	FileKey     *string              `json:"file_key" validate:"omitempty,max=255"`
	Description *string              `json:"description" validate:"omitempty,min=1,max=10000"`
	Coordinates []CoordinatesPayload `json:"coordinates"`
	Files       []string             `json:"files" validate:"omitempty,dive,required,max=255"`
}

// CommentResponse serializes a comment.
type CommentResponse struct {
	ID          uint                  `json:"id"`
	AnswerID    uint                  `json:"answer_id"`
	TypeID      *uint                 `json:"type_id"`
	FileKey     string                `json:"file_key"`
	Description string                `json:"description"`
	Human       bool                  `json:"human"`
	Coordinates []CoordinatesPayload  `json:"coordinates"`
	Files       []CommentFileResponse `json:"files"`
	CreatedAt   time.Time             `json:"created_at"`
}

// CommentFileResponse is a comment attachment with its download link.
type CommentFileResponse struct {
	ID  uint   `json:"id"`
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// ToModelCoordinates converts request rectangles into the stored form.
func ToModelCoordinates(payload []CoordinatesPayload) []models.Coordinates {
	if payload == nil {
		return nil
	}
	coordinates := make([]models.Coordinates, 0, len(payload))
	for _, c := range payload {
		coordinates = append(coordinates, models.Coordinates{X1: c.X1, Y1: c.Y1, X2: c.X2, Y2: c.Y2})
	}
	return coordinates
}

// NewCommentResponse converts a comment model.
func NewCommentResponse(comment models.Comment, resolve URLResolver) CommentResponse {
	coordinates := make([]CoordinatesPayload, 0, len(comment.Coordinates))
	for _, c := range comment.Coordinates {
		coordinates = append(coordinates, CoordinatesPayload{X1: c.X1, Y1: c.Y1, X2: c.X2, Y2: c.Y2})
	}
	files := make([]CommentFileResponse, 0, len(comment.Files))
	for _, file := range comment.Files {
		response := CommentFileResponse{ID: file.ID, Key: file.Key}
		if resolve != nil {
			response.URL = resolve(file.Key)
		}
		files = append(files, response)
	}

	return CommentResponse{
		ID:          comment.ID,
		AnswerID:    comment.AnswerID,
		TypeID:      comment.TypeID,
		FileKey:     comment.FileKey,
		Description: comment.Description,
		Human:       comment.Human,
		Coordinates: coordinates,
		Files:       files,
		CreatedAt:   comment.CreatedAt,
	}
}
