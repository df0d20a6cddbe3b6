package models

import (
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// User is any authenticated account of the platform.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FirstName string    `gorm:"size:128;not null" json:"first_name"`
	LastName  string    `gorm:"size:128" json:"last_name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Classroom is a teacher-owned group of students.
type Classroom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeacherID uint      `gorm:"not null;index" json:"teacher_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassroomMember links a student to a teacher, optionally through a classroom.
type ClassroomMember struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	TeacherID   uint  `gorm:"not null;index" json:"teacher_id"`
	StudentID   uint  `gorm:"not null;index" json:"student_id"`
	ClassroomID *uint `gorm:"index" json:"classroom_id"`
}
