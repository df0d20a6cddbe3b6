package dto

import (
	"math"
	"time"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

// WorkCreateRequest assigns a task to students directly or through classrooms.
type WorkCreateRequest struct {
	StudentIDs   []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
	ClassroomIDs []uint `json:"classroom_ids" validate:"omitempty,dive,gt=0"`
}

// WorkStatusRequest moves a work to another status.
type WorkStatusRequest struct {
	Status     string  `json:"status" validate:"required"`
	Conclusion *string `json:"conclusion" validate:"omitempty,max=10000"`
}

// WorkUpdateRequest is the full desired state of a work sent by its student or teacher.
// Absent fields are left untouched; an explicit empty list replaces the stored one.
type WorkUpdateRequest struct {
	Status     *string               `json:"status"`
	Conclusion *string               `json:"conclusion" validate:"omitempty,max=10000"`
	FinishDate *time.Time            `json:"finish_date"`
	Answers    []AnswerUpdateRequest `json:"answers" validate:"omitempty,dive"`
}

// AnswerUpdateRequest targets one answer of the work.
type AnswerUpdateRequest struct {
	ID             *uint                     `json:"id"`
	Text           *string                   `json:"text" validate:"omitempty,max=20000"`
	GeneralComment *string                   `json:"general_comment" validate:"omitempty,max=10000"`
	Files          []AnswerFileRequest       `json:"files" validate:"omitempty,dive"`
	Assessments    []AssessmentUpdateRequest `json:"assessments" validate:"omitempty,dive"`
}

// AnswerFileRequest references an uploaded object by key.
type AnswerFileRequest struct {
	Key      string  `json:"key" validate:"required,max=255"`
	AIStatus *string `json:"ai_status" validate:"omitempty,oneof=draft pending verification verified banned"`
}

// AssessmentUpdateRequest sets the points of an assessment, by id or by criterion.
type AssessmentUpdateRequest struct {
	ID          *uint `json:"id"`
	CriterionID *uint `json:"criterion_id"`
	Points      *int  `json:"points" validate:"omitempty,gte=0"`
}

// ToWorkUpdate converts the payload into the reconciler input. Status is handled separately.
func (r WorkUpdateRequest) ToWorkUpdate() grading.WorkUpdate {
	update := grading.WorkUpdate{
		Conclusion: r.Conclusion,
		FinishDate: r.FinishDate,
	}
	if r.Answers == nil {
		return update
	}

	update.Answers = make([]grading.AnswerUpdate, 0, len(r.Answers))
	for _, answer := range r.Answers {
		entry := grading.AnswerUpdate{
			ID:             answer.ID,
			Text:           answer.Text,
			GeneralComment: answer.GeneralComment,
		}
		if answer.Files != nil {
			entry.Files = make([]grading.FileUpdate, 0, len(answer.Files))
			for _, file := range answer.Files {
				ref := grading.FileUpdate{Key: file.Key}
				if file.AIStatus != nil {
					status := models.FileAIStatus(*file.AIStatus)
					ref.AIStatus = &status
				}
				entry.Files = append(entry.Files, ref)
			}
		}
		if answer.Assessments != nil {
			entry.Assessments = make([]grading.AssessmentUpdate, 0, len(answer.Assessments))
			for _, assessment := range answer.Assessments {
				entry.Assessments = append(entry.Assessments, grading.AssessmentUpdate{
					ID:          assessment.ID,
					CriterionID: assessment.CriterionID,
					Points:      assessment.Points,
				})
			}
		}
		update.Answers = append(update.Answers, entry)
	}

	return update
}

// WorkListQuery holds the user supplied filters of a work list.
type WorkListQuery struct {
	Statuses  []string `validate:"omitempty,dive,oneof=draft inProgress verification verificated canceled"`
	StudentID *uint
	TaskID    *uint
	Page      int `validate:"omitempty,gte=1"`
	PageSize  int `validate:"omitempty,gte=1,lte=200"`
}

// WorkListItem is one row of the teacher or student work list.
type WorkListItem struct {
	ID          uint      `json:"id"`
	TaskID      uint      `json:"task_id"`
	TaskName    string    `json:"task_name"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name"`
	Status      string    `json:"status"`
	Score       int       `json:"score"`
	MaxScore    int       `json:"max_score"`
	Percent     int       `json:"percent"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WorkListResponse wraps a page of work rows.
type WorkListResponse struct {
	Items []WorkListItem `json:"items"`
	Page  int            `json:"page"`
}

// ScorePercent rounds score/max to a percentage. A zero maximum counts as one.
func ScorePercent(score, maxScore int) int {
	if maxScore <= 0 {
		maxScore = 1
	}
	return int(math.Round(float64(score) / float64(maxScore) * 100))
}

// TaskResponse describes the task a work was created from.
type TaskResponse struct {
	ID          uint               `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	TeacherID   uint               `json:"teacher_id"`
	SubjectID   *uint              `json:"subject_id"`
	Deadline    *time.Time         `json:"deadline"`
	Exercises   []ExerciseResponse `json:"exercises"`
}

// ExerciseResponse is one exercise with its rubric.
type ExerciseResponse struct {
	ID       uint                `json:"id"`
	Position int                 `json:"position"`
	Title    string              `json:"title"`
	Body     string              `json:"body"`
	Criteria []CriterionResponse `json:"criteria"`
}

// CriterionResponse is one rubric line.
type CriterionResponse struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	MaxScore int    `json:"max_score"`
}

// WorkResponse is the full work aggregate.
type WorkResponse struct {
	ID          uint             `json:"id"`
	TaskID      uint             `json:"task_id"`
	StudentID   uint             `json:"student_id"`
	StudentName string           `json:"student_name"`
	Status      string           `json:"status"`
	Conclusion  string           `json:"conclusion"`
	FinishDate  *time.Time       `json:"finish_date"`
	AIVerified  bool             `json:"ai_verified"`
	Version     int              `json:"version"`
	Answers     []AnswerResponse `json:"answers"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// AnswerResponse is one answer with its files, points and comments.
type AnswerResponse struct {
	ID             uint                 `json:"id"`
	ExerciseID     uint                 `json:"exercise_id"`
	Text           string               `json:"text"`
	GeneralComment string               `json:"general_comment"`
	Files          []FileResponse       `json:"files"`
	Assessments    []AssessmentResponse `json:"assessments"`
	Comments       []CommentResponse    `json:"comments"`
}

// FileResponse is a stored answer image with a download link.
type FileResponse struct {
	ID       uint   `json:"id"`
	Key      string `json:"key"`
	AIStatus string `json:"ai_status"`
	URL      string `json:"url,omitempty"`
}

// AssessmentResponse is the score of one criterion.
type AssessmentResponse struct {
	ID          uint `json:"id"`
	CriterionID uint `json:"criterion_id"`
	Points      int  `json:"points"`
}

// WorkDetailResponse pairs a work with its task.
type WorkDetailResponse struct {
	Task TaskResponse `json:"task"`
	Work WorkResponse `json:"work"`
}

// WorkStatusResponse is returned after a status change.
type WorkStatusResponse struct {
	ID         uint       `json:"id"`
	Status     string     `json:"status"`
	Conclusion string     `json:"conclusion"`
	FinishDate *time.Time `json:"finish_date"`
	Version    int        `json:"version"`
}

// WorkCreateResponse lists the works created for a task.
type WorkCreateResponse struct {
	TaskID  uint   `json:"task_id"`
	WorkIDs []uint `json:"work_ids"`
	Skipped int    `json:"skipped"`
}

// URLResolver maps a storage key to a download link. Empty means unavailable.
type URLResolver func(key string) string

// NewTaskResponse converts a task model.
func NewTaskResponse(task models.Task) TaskResponse {
	exercises := make([]ExerciseResponse, 0, len(task.Exercises))
	for _, exercise := range task.Exercises {
		criteria := make([]CriterionResponse, 0, len(exercise.Criteria))
		for _, criterion := range exercise.Criteria {
			criteria = append(criteria, CriterionResponse{ID: criterion.ID, Name: criterion.Name, MaxScore: criterion.MaxScore})
		}
		exercises = append(exercises, ExerciseResponse{
			ID:       exercise.ID,
			Position: exercise.Position,
			Title:    exercise.Title,
			Body:     exercise.Body,
			Criteria: criteria,
		})
	}

	return TaskResponse{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		TeacherID:   task.TeacherID,
		SubjectID:   task.SubjectID,
		Deadline:    task.Deadline,
		Exercises:   exercises,
	}
}

// NewWorkResponse converts a work aggregate, resolving file links through resolve.
func NewWorkResponse(work models.Work, resolve URLResolver) WorkResponse {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}

	answers := make([]AnswerResponse, 0, len(work.Answers))
	for _, answer := range work.Answers {
		files := make([]FileResponse, 0, len(answer.Files))
		for _, file := range answer.Files {
			files = append(files, FileResponse{
				ID:       file.ID,
				Key:      file.Key,
				AIStatus: string(file.AIStatus),
				URL:      resolve(file.Key),
			})
		}
		assessments := make([]AssessmentResponse, 0, len(answer.Assessments))
		for _, assessment := range answer.Assessments {
			assessments = append(assessments, AssessmentResponse{ID: assessment.ID, CriterionID: assessment.CriterionID, Points: assessment.Points})
		}
		comments := make([]CommentResponse, 0, len(answer.Comments))
		for _, comment := range answer.Comments {
			comments = append(comments, NewCommentResponse(comment, resolve))
		}

		answers = append(answers, AnswerResponse{
			ID:             answer.ID,
			ExerciseID:     answer.ExerciseID,
			Text:           answer.Text,
			GeneralComment: answer.GeneralComment,
			Files:          files,
			Assessments:    assessments,
			Comments:       comments,
		})
	}

	return WorkResponse{
		ID:          work.ID,
		TaskID:      work.TaskID,
		StudentID:   work.StudentID,
		StudentName: work.Student.FullName(),
		Status:      work.Status.String(),
		Conclusion:  work.Conclusion,
		FinishDate:  work.FinishDate,
		AIVerified:  work.AIVerified,
		Version:     work.Version,
		Answers:     answers,
		UpdatedAt:   work.UpdatedAt,
	}
}

// NewWorkStatusResponse summarises a work after a status change.
func NewWorkStatusResponse(work models.Work) WorkStatusResponse {
	return WorkStatusResponse{
		ID:         work.ID,
		Status:     work.Status.String(),
		Conclusion: work.Conclusion,
		FinishDate: work.FinishDate,
		Version:    work.Version,
	}
}
