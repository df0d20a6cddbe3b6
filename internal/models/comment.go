package models

import (
	"time"

	"gorm.io/datatypes"
)

// Coordinates is a rectangle on an answer image.
type Coordinates struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Comment is a remark left on an answer by a teacher or by the HTR pipeline.
type Comment struct {
	ID          uint                             `gorm:"primaryKey" json:"id"`
	AnswerID    uint                             `gorm:"not null;index" json:"answer_id"`
	TypeID      *uint                            `gorm:"index" json:"type_id"`
	FileKey     string                           `gorm:"size:255" json:"file_key"`
	Description string                           `gorm:"type:text;not null" json:"description"`
	Human       bool                             `gorm:"not null" json:"human"`
	Coordinates datatypes.JSONSlice[Coordinates] `gorm:"type:json" json:"coordinates"`
	Files       []CommentFile                    `gorm:"constraint:OnDelete:CASCADE" json:"files"`
	CreatedAt   time.Time                        `json:"created_at"`
	UpdatedAt   time.Time                        `json:"updated_at"`
}

// CommentFile is an attachment of a comment stored in the permanent bucket.
type CommentFile struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	CommentID uint   `gorm:"not null;index" json:"comment_id"`
	Key       string `gorm:"size:255;not null" json:"key"`
}

// CommentType classifies comments within a subject.
type CommentType struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SubjectID uint   `gorm:"not null;index" json:"subject_id"`
	ShortName string `gorm:"size:10;not null" json:"short_name"`
	Name      string `gorm:"size:50;not null" json:"name"`
}
