package grading

import (
	"errors"
	"fmt"
)

// Kind identifies why a transition or update was rejected.
type Kind string

const (
	KindStatusRegression                 Kind = "status_regression"
	KindStudentForbiddenBeyondInProgress Kind = "student_forbidden_beyond_in_progress"
	KindStudentInvalidTarget             Kind = "student_invalid_target"
	KindStudentCannotSetConclusion       Kind = "student_cannot_set_conclusion"
	KindVerificatedRequiresVerification  Kind = "verificated_requires_verification"
	KindUnauthorizedRole                 Kind = "unauthorized_role"
	KindInvalidStatus                    Kind = "invalid_status"
	KindUnmatchedReference               Kind = "unmatched_reference"
)

// TransitionError is returned for every rejected transition. Kind is stable for a given input.
type TransitionError struct {
	Kind   Kind
	detail string
}

func (e *TransitionError) Error() string {
	return e.detail
}

// Is lets errors.Is match on kind through the sentinel values below.
func (e *TransitionError) Is(target error) bool {
	var other *TransitionError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func reject(kind Kind, format string, args ...interface{}) *TransitionError {
	return &TransitionError{Kind: kind, detail: fmt.Sprintf(format, args...)}
}

var (
	ErrStatusRegression                 = &TransitionError{Kind: KindStatusRegression, detail: "status can only be increased or kept the same"}
	ErrStudentForbiddenBeyondInProgress = &TransitionError{Kind: KindStudentForbiddenBeyondInProgress, detail: "student cannot update work with status beyond inProgress"}
	ErrStudentInvalidTarget             = &TransitionError{Kind: KindStudentInvalidTarget, detail: "student can only set status to inProgress or verification"}
	ErrStudentCannotSetConclusion       = &TransitionError{Kind: KindStudentCannotSetConclusion, detail: "student cannot set conclusion"}
	ErrVerificatedRequiresVerification  = &TransitionError{Kind: KindVerificatedRequiresVerification, detail: "verificated can only be set after verification"}
	ErrUnauthorizedRole                 = &TransitionError{Kind: KindUnauthorizedRole, detail: "unauthorized role"}
	ErrInvalidStatus                    = &TransitionError{Kind: KindInvalidStatus, detail: "unknown work status"}
	ErrUnmatchedReference               = &TransitionError{Kind: KindUnmatchedReference, detail: "update references an entity outside the work"}
)

// ErrAggregateNotFound signals that the work (or a nested entity) does not exist.
var ErrAggregateNotFound = errors.New("work not found")

// ErrConcurrentModification signals that the work changed between load and persist.
var ErrConcurrentModification = errors.New("work was modified concurrently")

// KindOf extracts the rejection kind, or "" when err is not a TransitionError.
func KindOf(err error) Kind {
	var transitionErr *TransitionError
	if errors.As(err, &transitionErr) {
		return transitionErr.Kind
	}
	return ""
}
