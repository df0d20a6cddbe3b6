package models

import "time"

// Task is a teacher-authored set of exercises that can be assigned to students.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TeacherID   uint       `gorm:"not null;index" json:"teacher_id"`
	SubjectID   *uint      `gorm:"index" json:"subject_id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Deadline    *time.Time `json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Subject     *Subject   `json:"subject,omitempty"`
	Exercises   []Exercise `gorm:"constraint:OnDelete:CASCADE" json:"exercises"`
}

// Exercise is one question of a task.
type Exercise struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	TaskID   uint        `gorm:"not null;index" json:"task_id"`
	Position int         `gorm:"not null;default:0" json:"position"`
	Title    string      `gorm:"size:255;not null" json:"title"`
	Body     string      `gorm:"type:text" json:"body"`
	Criteria []Criterion `gorm:"constraint:OnDelete:CASCADE" json:"criteria"`
}

// Criterion is a named, scored rubric line belonging to an exercise.
type Criterion struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExerciseID uint   `gorm:"not null;index" json:"exercise_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	MaxScore   int    `gorm:"not null;default:0" json:"max_score"`
}

// Subject groups tasks and owns the comment types the HTR worker may emit.
type Subject struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	CommentTypes []CommentType `gorm:"constraint:OnDelete:CASCADE" json:"comment_types"`
}

// TableName keeps the irregular plural.
func (Criterion) TableName() string {
	return "criteria"
}
