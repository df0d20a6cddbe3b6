package dto

import "time"

// ClassroomRequest names a classroom.
type ClassroomRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// ClassroomStudentsRequest places students into a classroom.
type ClassroomStudentsRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1,dive,gt=0"`
}

// ClassroomResponse serializes a classroom with its roster size.
type ClassroomResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Students  int       `json:"students"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassroomStudentsResponse reports how many students were placed.
type ClassroomStudentsResponse struct {
	ClassroomID uint `json:"classroom_id"`
	Assigned    int  `json:"assigned"`
	Skipped     int  `json:"skipped"`
}
