package grading

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestValidateTransitionScenarios(t *testing.T) {
	student := StudentActor{ID: 7}
	teacher := TeacherActor{ID: 3}

	cases := []struct {
		name       string
		current    models.WorkStatus
		requested  models.WorkStatus
		actor      Actor
		conclusion bool
		want       Kind
	}{
		{"student opens draft", models.WorkStatusDraft, models.WorkStatusInProgress, student, false, ""},
		{"student submits", models.WorkStatusInProgress, models.WorkStatusVerification, student, false, ""},
		{"student submits straight from draft", models.WorkStatusDraft, models.WorkStatusVerification, student, false, ""},
		{"student keeps inProgress", models.WorkStatusInProgress, models.WorkStatusInProgress, student, false, ""},
		{"student regresses from verification", models.WorkStatusVerification, models.WorkStatusInProgress, student, false, KindStatusRegression},
		{"student same status after submit", models.WorkStatusVerification, models.WorkStatusVerification, student, false, KindStudentForbiddenBeyondInProgress},
		{"student cancels after submit", models.WorkStatusVerification, models.WorkStatusCanceled, student, false, KindStudentForbiddenBeyondInProgress},
		{"student targets verificated", models.WorkStatusDraft, models.WorkStatusVerificated, student, false, KindStudentInvalidTarget},
		{"student targets canceled", models.WorkStatusInProgress, models.WorkStatusCanceled, student, false, KindStudentInvalidTarget},
		{"student keeps draft", models.WorkStatusDraft, models.WorkStatusDraft, student, false, KindStudentInvalidTarget},
		{"student sends conclusion", models.WorkStatusDraft, models.WorkStatusInProgress, student, true, KindStudentCannotSetConclusion},
		{"teacher verificates", models.WorkStatusVerification, models.WorkStatusVerificated, teacher, true, ""},
		{"teacher verificates too early", models.WorkStatusInProgress, models.WorkStatusVerificated, teacher, false, KindVerificatedRequiresVerification},
		{"teacher verificates twice", models.WorkStatusVerificated, models.WorkStatusVerificated, teacher, false, KindVerificatedRequiresVerification},
		{"teacher cancels in progress", models.WorkStatusInProgress, models.WorkStatusCanceled, teacher, false, ""},
		{"teacher cancels draft", models.WorkStatusDraft, models.WorkStatusCanceled, teacher, false, ""},
		{"teacher cancels verificated", models.WorkStatusVerificated, models.WorkStatusCanceled, teacher, false, ""},
		{"teacher regresses", models.WorkStatusVerificated, models.WorkStatusVerification, teacher, false, KindStatusRegression},
		{"teacher sets conclusion without move", models.WorkStatusVerification, models.WorkStatusVerification, teacher, true, ""},
		{"admin is rejected", models.WorkStatusDraft, models.WorkStatusInProgress, AdminActor{ID: 1}, false, KindUnauthorizedRole},
		{"unknown status", models.WorkStatus("archived"), models.WorkStatusDraft, teacher, false, KindInvalidStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTransition(tc.current, tc.requested, tc.actor, tc.conclusion)
			if tc.want == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Equal(t, tc.want, KindOf(err))
		})
	}
}

func TestValidateTransitionRegressionAlwaysWins(t *testing.T) {
	actors := []Actor{StudentActor{ID: 1}, TeacherActor{ID: 2}, AdminActor{ID: 3}}

	for _, current := range models.WorkStatuses() {
		for _, requested := range models.WorkStatuses() {
			if requested.Weight() >= current.Weight() {
				continue
			}
			for _, actor := range actors {
				for _, conclusion := range []bool{false, true} {
					err := ValidateTransition(current, requested, actor, conclusion)
					require.ErrorIs(t, err, ErrStatusRegression, "%s -> %s as %s", current, requested, actor.Role())
				}
			}
		}
	}
}

func TestValidateTransitionStudentLockedAfterSubmit(t *testing.T) {
	for _, current := range models.WorkStatuses() {
		if current.Weight() <= models.WorkStatusInProgress.Weight() {
			continue
		}
		for _, requested := range models.WorkStatuses() {
			if requested.Weight() < current.Weight() {
				continue
			}
			err := ValidateTransition(current, requested, StudentActor{ID: 1}, false)
			require.ErrorIs(t, err, ErrStudentForbiddenBeyondInProgress, "%s -> %s", current, requested)
		}
	}
}

func TestValidateTransitionVerificatedNeedsVerification(t *testing.T) {
	for _, current := range models.WorkStatuses() {
		if current == models.WorkStatusVerification || current.Weight() > models.WorkStatusVerificated.Weight() {
			continue
		}
		for _, conclusion := range []bool{false, true} {
			err := ValidateTransition(current, models.WorkStatusVerificated, TeacherActor{ID: 1}, conclusion)
			require.ErrorIs(t, err, ErrVerificatedRequiresVerification, "from %s", current)
		}
	}
}

func TestValidateTransitionKindIsStable(t *testing.T) {
	first := ValidateTransition(models.WorkStatusDraft, models.WorkStatusVerificated, StudentActor{ID: 1}, true)
	second := ValidateTransition(models.WorkStatusDraft, models.WorkStatusVerificated, StudentActor{ID: 1}, true)
	require.Equal(t, KindOf(first), KindOf(second))
	require.True(t, errors.Is(first, ErrStudentInvalidTarget))
}

func TestApplyTransitionWritesConclusion(t *testing.T) {
	work := &models.Work{ID: 1, Status: models.WorkStatusVerification}
	conclusion := "Good job"

	err := ApplyTransition(work, models.WorkStatusVerificated, &conclusion, TeacherActor{ID: 2})
	require.NoError(t, err)
	require.Equal(t, models.WorkStatusVerificated, work.Status)
	require.Equal(t, "Good job", work.Conclusion)
}

func TestApplyTransitionLeavesWorkOnReject(t *testing.T) {
	work := &models.Work{ID: 1, Status: models.WorkStatusInProgress, Conclusion: "keep"}
	conclusion := "overwrite"

	err := ApplyTransition(work, models.WorkStatusVerification, &conclusion, StudentActor{ID: 9})
	require.ErrorIs(t, err, ErrStudentCannotSetConclusion)
	require.Equal(t, models.WorkStatusInProgress, work.Status)
	require.Equal(t, "keep", work.Conclusion)
}

func TestApplyTransitionNilWork(t *testing.T) {
	err := ApplyTransition(nil, models.WorkStatusInProgress, nil, StudentActor{ID: 1})
	require.ErrorIs(t, err, ErrAggregateNotFound)
}

func TestNewActor(t *testing.T) {
	actor, err := NewActor(5, " Teacher ")
	require.NoError(t, err)
	require.Equal(t, TeacherActor{ID: 5}, actor)

	_, err = NewActor(5, "guest")
	require.ErrorIs(t, err, ErrUnauthorizedRole)
}

func TestValidateEdit(t *testing.T) {
	cases := []struct {
		name    string
		current models.WorkStatus
		actor   Actor
		want    Kind
	}{
		{"student edits draft", models.WorkStatusDraft, StudentActor{ID: 7}, ""},
		{"student edits in progress", models.WorkStatusInProgress, StudentActor{ID: 7}, ""},
		{"student edits submitted", models.WorkStatusVerification, StudentActor{ID: 7}, KindStudentForbiddenBeyondInProgress},
		{"student edits graded", models.WorkStatusVerificated, StudentActor{ID: 7}, KindStudentForbiddenBeyondInProgress},
		{"student edits canceled", models.WorkStatusCanceled, StudentActor{ID: 7}, KindStudentForbiddenBeyondInProgress},
		{"teacher edits graded", models.WorkStatusVerificated, TeacherActor{ID: 3}, ""},
		{"admin edits", models.WorkStatusDraft, AdminActor{ID: 1}, KindUnauthorizedRole},
		{"unknown status", models.WorkStatus("archived"), TeacherActor{ID: 3}, KindInvalidStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, KindOf(ValidateEdit(tc.current, tc.actor)))
		})
	}
}
