package grading

import (
	"time"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// WorkUpdate is the caller's desired state of a work. Nil pointers and nil slices mean
// "no change requested"; an explicit empty value is a real update.
type WorkUpdate struct {
	Conclusion *string
	FinishDate *time.Time
	Answers    []AnswerUpdate
}

// AnswerUpdate targets one existing answer of the work by id.
type AnswerUpdate struct {
	ID             *uint
	Text           *string
	GeneralComment *string
	Files          []FileUpdate
	Assessments    []AssessmentUpdate
}

// FileUpdate references a stored object by key.
type FileUpdate struct {
	Key      string
	AIStatus *models.FileAIStatus
}

// AssessmentUpdate targets an assessment by id, or by criterion when id is absent.
type AssessmentUpdate struct {
	ID          *uint
	CriterionID *uint
	Points      *int
}

// Options tune a reconciliation run.
type Options struct {
	// PreviousStatus is the work status before the transition of this request was applied.
	PreviousStatus models.WorkStatus
	// Now is used for the automatic finish date.
	Now time.Time
	// Strict rejects the whole update when it references entities outside the work.
	Strict bool
}

// Reference identifies an update entry that was skipped.
type Reference struct {
	Entity string
	ID     *uint
	Parent *uint
}

// Result lists every record the reconciliation touched.
type Result struct {
	WorkChanged        bool
	UpdatedAnswers     []uint
	AddedFiles         []models.AnswerFile
	RemovedFiles       []models.AnswerFile
	UpdatedFiles       []models.AnswerFile
	CreatedAssessments []models.Assessment
	UpdatedAssessments []models.Assessment
	Skipped            []Reference
}

// RemovedKeys returns the storage keys that must be deleted from the object store.
func (r Result) RemovedKeys() []string {
	keys := make([]string, 0, len(r.RemovedFiles))
	for _, file := range r.RemovedFiles {
		keys = append(keys, file.Key)
	}
	return keys
}

// AddedKeys returns the storage keys of newly attached files.
func (r Result) AddedKeys() []string {
	keys := make([]string, 0, len(r.AddedFiles))
	for _, file := range r.AddedFiles {
		keys = append(keys, file.Key)
	}
	return keys
}

// Changed reports whether anything needs to be persisted.
func (r Result) Changed() bool {
	return r.WorkChanged ||
		len(r.UpdatedAnswers) > 0 ||
		len(r.AddedFiles) > 0 ||
		len(r.RemovedFiles) > 0 ||
		len(r.UpdatedFiles) > 0 ||
		len(r.CreatedAssessments) > 0 ||
		len(r.UpdatedAssessments) > 0
}

// Reconcile applies the fields of update that actor is permitted to change onto work,
// in place, and reports what changed. Fields outside the actor's permissions are ignored.
// Status is not handled here; ApplyTransition must run first.
func Reconcile(work *models.Work, update WorkUpdate, actor Actor, opts Options) (Result, error) {
	if work == nil {
		return Result{}, ErrAggregateNotFound
	}

	if opts.Strict {
		if err := checkReferences(work, update, actor); err != nil {
			return Result{}, err
		}
	}

	switch actor.(type) {
	case StudentActor:
		return reconcileStudent(work, update), nil
	case TeacherActor:
		return reconcileTeacher(work, update, opts), nil
	default:
		return Result{}, ErrUnauthorizedRole
	}
}

func reconcileStudent(work *models.Work, update WorkUpdate) Result {
	var result Result

	for _, entry := range update.Answers {
		answer := matchAnswer(work, entry.ID)
		if answer == nil {
			result.Skipped = append(result.Skipped, Reference{Entity: "answer", ID: entry.ID})
			continue
		}

		changed := false
		if entry.Text != nil && *entry.Text != answer.Text {
			answer.Text = *entry.Text
			changed = true
		}
		if changed {
			result.UpdatedAnswers = append(result.UpdatedAnswers, answer.ID)
		}

		if entry.Files != nil {
			added, removed := syncFiles(answer, entry.Files)
			result.AddedFiles = append(result.AddedFiles, added...)
			result.RemovedFiles = append(result.RemovedFiles, removed...)
		}
	}

	return result
}

func reconcileTeacher(work *models.Work, update WorkUpdate, opts Options) Result {
	var result Result

	if update.Conclusion != nil && *update.Conclusion != work.Conclusion {
		work.Conclusion = *update.Conclusion
		result.WorkChanged = true
	}

	switch {
	case update.FinishDate != nil:
		if work.FinishDate == nil || !work.FinishDate.Equal(*update.FinishDate) {
			finish := *update.FinishDate
			work.FinishDate = &finish
			result.WorkChanged = true
		}
	case work.FinishDate == nil && enteredReview(opts.PreviousStatus, work.Status):
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		work.FinishDate = &now
		result.WorkChanged = true
	}

	for _, entry := range update.Answers {
		answer := matchAnswer(work, entry.ID)
		if answer == nil {
			result.Skipped = append(result.Skipped, Reference{Entity: "answer", ID: entry.ID})
			continue
		}

		if entry.GeneralComment != nil && *entry.GeneralComment != answer.GeneralComment {
			answer.GeneralComment = *entry.GeneralComment
			result.UpdatedAnswers = append(result.UpdatedAnswers, answer.ID)
		}

		for _, file := range entry.Files {
			if file.AIStatus == nil || !file.AIStatus.Valid() {
				continue
			}
			for i := range answer.Files {
				if answer.Files[i].Key == file.Key && answer.Files[i].AIStatus != *file.AIStatus {
					answer.Files[i].AIStatus = *file.AIStatus
					result.UpdatedFiles = append(result.UpdatedFiles, answer.Files[i])
				}
			}
		}

		for _, assessment := range entry.Assessments {
			applyAssessment(work, answer, assessment, &result)
		}
	}

	return result
}

func applyAssessment(work *models.Work, answer *models.Answer, entry AssessmentUpdate, result *Result) {
	if entry.Points == nil {
		return
	}

	if entry.ID != nil {
		for i := range answer.Assessments {
			if answer.Assessments[i].ID == *entry.ID {
				if answer.Assessments[i].Points != *entry.Points {
					answer.Assessments[i].Points = *entry.Points
					result.UpdatedAssessments = append(result.UpdatedAssessments, answer.Assessments[i])
				}
				return
			}
		}
		result.Skipped = append(result.Skipped, Reference{Entity: "assessment", ID: entry.ID, Parent: &answer.ID})
		return
	}

	if entry.CriterionID == nil {
		result.Skipped = append(result.Skipped, Reference{Entity: "assessment", Parent: &answer.ID})
		return
	}

	for i := range answer.Assessments {
		if answer.Assessments[i].CriterionID == *entry.CriterionID {
			if answer.Assessments[i].Points != *entry.Points {
				answer.Assessments[i].Points = *entry.Points
				result.UpdatedAssessments = append(result.UpdatedAssessments, answer.Assessments[i])
			}
			return
		}
	}

	if !criterionBelongsToAnswer(work, answer, *entry.CriterionID) {
		result.Skipped = append(result.Skipped, Reference{Entity: "criterion", ID: entry.CriterionID, Parent: &answer.ID})
		return
	}

	created := models.Assessment{
		AnswerID:    answer.ID,
		CriterionID: *entry.CriterionID,
		Points:      *entry.Points,
	}
	answer.Assessments = append(answer.Assessments, created)
	result.CreatedAssessments = append(result.CreatedAssessments, created)
}

// syncFiles makes the answer's files match keys, keeping the order of surviving files.
func syncFiles(answer *models.Answer, files []FileUpdate) (added, removed []models.AnswerFile) {
	desired := DiffKeys(answerKeys(answer), fileKeys(files))

	removedSet := make(map[string]struct{}, len(desired.Removed))
	for _, key := range desired.Removed {
		removedSet[key] = struct{}{}
	}

	kept := make([]models.AnswerFile, 0, len(answer.Files)+len(desired.Added))
	for _, file := range answer.Files {
		if _, gone := removedSet[file.Key]; gone {
			removed = append(removed, file)
			continue
		}
		kept = append(kept, file)
	}

	for _, key := range desired.Added {
		file := models.AnswerFile{
			AnswerID: answer.ID,
			Key:      key,
			AIStatus: models.FileAIStatusDraft,
		}
		kept = append(kept, file)
		added = append(added, file)
	}

	answer.Files = kept
	return added, removed
}

func matchAnswer(work *models.Work, id *uint) *models.Answer {
	if id == nil {
		return nil
	}
	return work.AnswerByID(*id)
}

func enteredReview(previous, current models.WorkStatus) bool {
	if previous == current {
		return false
	}
	return current == models.WorkStatusVerification || current == models.WorkStatusVerificated
}

// criterionBelongsToAnswer checks the criterion against the task when it was hydrated.
func criterionBelongsToAnswer(work *models.Work, answer *models.Answer, criterionID uint) bool {
	if len(work.Task.Exercises) == 0 {
		return true
	}
	for _, exercise := range work.Task.Exercises {
		if exercise.ID != answer.ExerciseID {
			continue
		}
		for _, criterion := range exercise.Criteria {
			if criterion.ID == criterionID {
				return true
			}
		}
		return false
	}
	return false
}

func checkReferences(work *models.Work, update WorkUpdate, actor Actor) error {
	for _, entry := range update.Answers {
		answer := matchAnswer(work, entry.ID)
		if answer == nil {
			return reject(KindUnmatchedReference, "answer %s does not belong to work %d", describeID(entry.ID), work.ID)
		}
		if _, isTeacher := actor.(TeacherActor); !isTeacher {
			continue
		}
		for _, assessment := range entry.Assessments {
			if assessment.ID == nil {
				continue
			}
			found := false
			for _, existing := range answer.Assessments {
				if existing.ID == *assessment.ID {
					found = true
					break
				}
			}
			if !found {
				return reject(KindUnmatchedReference, "assessment %d does not belong to answer %d", *assessment.ID, answer.ID)
			}
		}
	}
	return nil
}

func answerKeys(answer *models.Answer) []string {
	keys := make([]string, 0, len(answer.Files))
	for _, file := range answer.Files {
		keys = append(keys, file.Key)
	}
	return keys
}

func fileKeys(files []FileUpdate) []string {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		keys = append(keys, file.Key)
	}
	return keys
}
