// Package grading holds the pure decision logic of the work lifecycle: which status
// transitions an actor may perform and which fields of a work aggregate they may change.
// Nothing in this package performs I/O.
package grading

import (
	"fmt"
	"strings"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// Actor is the closed set of identities that can drive a work update.
// Only StudentActor, TeacherActor and AdminActor implement it.
type Actor interface {
	UserID() uint
	Role() string
	sealed()
}

// StudentActor is the student owning the work.
type StudentActor struct{ ID uint }

// TeacherActor is the teacher owning the work's task.
type TeacherActor struct{ ID uint }

// AdminActor is a platform administrator.
type AdminActor struct{ ID uint }

func (a StudentActor) UserID() uint { return a.ID }
func (a StudentActor) Role() string { return models.RoleStudent }
func (StudentActor) sealed()        {}

func (a TeacherActor) UserID() uint { return a.ID }
func (a TeacherActor) Role() string { return models.RoleTeacher }
func (TeacherActor) sealed()        {}

func (a AdminActor) UserID() uint { return a.ID }
func (a AdminActor) Role() string { return models.RoleAdmin }
func (AdminActor) sealed()        {}

// NewActor maps an authenticated role claim onto an actor variant.
func NewActor(id uint, role string) (Actor, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case models.RoleStudent:
		return StudentActor{ID: id}, nil
	case models.RoleTeacher:
		return TeacherActor{ID: id}, nil
	case models.RoleAdmin:
		return AdminActor{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown role %q: %w", role, ErrUnauthorizedRole)
	}
}
