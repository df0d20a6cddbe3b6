package grading

import "github.com/noah-isme/gema-grading-api/internal/models"

// ValidateTransition decides whether actor may move a work from current to requested.
// A nil result means the transition is allowed.
func ValidateTransition(current, requested models.WorkStatus, actor Actor, conclusionProvided bool) error {
	if !current.Valid() || !requested.Valid() {
		return reject(KindInvalidStatus, "unknown work status %q -> %q", current, requested)
	}

	if requested.Weight() < current.Weight() {
		return reject(KindStatusRegression, "status can only be increased or kept the same, not %s -> %s", current, requested)
	}

	switch actor.(type) {
	case StudentActor:
		return validateStudent(current, requested, conclusionProvided)
	case TeacherActor:
		return validateTeacher(current, requested)
	case AdminActor:
		return ErrUnauthorizedRole
	default:
		return ErrUnauthorizedRole
	}
}

// ValidateEdit decides whether actor may change the fields of a work in status current
// when no status change is requested. Students lose write access once the work passed
// inProgress.
func ValidateEdit(current models.WorkStatus, actor Actor) error {
	if !current.Valid() {
		return reject(KindInvalidStatus, "unknown work status %q", current)
	}

	switch actor.(type) {
	case StudentActor:
		return studentMayEdit(current)
	case TeacherActor:
		return nil
	default:
		return ErrUnauthorizedRole
	}
}

func studentMayEdit(current models.WorkStatus) error {
	if current.Weight() > models.WorkStatusInProgress.Weight() {
		return reject(KindStudentForbiddenBeyondInProgress, "student cannot update work with status %s", current)
	}
	return nil
}

func validateStudent(current, requested models.WorkStatus, conclusionProvided bool) error {
	if err := studentMayEdit(current); err != nil {
		return err
	}

	if requested != models.WorkStatusInProgress && requested != models.WorkStatusVerification {
		return reject(KindStudentInvalidTarget, "student cannot set status %s", requested)
	}

	if conclusionProvided {
		return ErrStudentCannotSetConclusion
	}

	return nil
}

func validateTeacher(current, requested models.WorkStatus) error {
	switch requested {
	case models.WorkStatusVerificated:
		if current != models.WorkStatusVerification {
			return reject(KindVerificatedRequiresVerification, "teacher can set verificated only after verification, current is %s", current)
		}
	case models.WorkStatusCanceled:
		// allowed from any status
	}

	return nil
}

// ApplyTransition validates the transition and, when allowed, writes the status and the
// optional conclusion onto work. It never mutates work on rejection.
func ApplyTransition(work *models.Work, requested models.WorkStatus, conclusion *string, actor Actor) error {
	if work == nil {
		return ErrAggregateNotFound
	}

	if err := ValidateTransition(work.Status, requested, actor, conclusion != nil); err != nil {
		return err
	}

	work.Status = requested
	if conclusion != nil {
		work.Conclusion = *conclusion
	}

	return nil
}
