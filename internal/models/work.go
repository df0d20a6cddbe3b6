package models

import "time"

// WorkStatus tracks the progress of a single student's work.
type WorkStatus string

const (
	// WorkStatusDraft indicates the work was assigned but not yet opened by the student.
	WorkStatusDraft WorkStatus = "draft"
	// WorkStatusInProgress indicates the student has started the work.
	WorkStatusInProgress WorkStatus = "inProgress"
	// WorkStatusVerification indicates the student submitted the work for review.
	WorkStatusVerification WorkStatus = "verification"
	// WorkStatusVerificated indicates the teacher finished grading.
	WorkStatusVerificated WorkStatus = "verificated"
	// WorkStatusCanceled indicates the teacher withdrew the assignment.
	WorkStatusCanceled WorkStatus = "canceled"
)

var workStatusWeights = map[WorkStatus]int{
	WorkStatusDraft:        0,
	WorkStatusInProgress:   1,
	WorkStatusVerification: 2,
	WorkStatusVerificated:  3,
	WorkStatusCanceled:     4,
}

// WorkStatuses lists every status in progress order.
func WorkStatuses() []WorkStatus {
	return []WorkStatus{
		WorkStatusDraft,
		WorkStatusInProgress,
		WorkStatusVerification,
		WorkStatusVerificated,
		WorkStatusCanceled,
	}
}

// Weight returns the progress rank of the status. Unknown values rank below draft.
func (s WorkStatus) Weight() int {
	if weight, ok := workStatusWeights[s]; ok {
		return weight
	}
	return -1
}

// Valid reports whether the status is one of the known values.
func (s WorkStatus) Valid() bool {
	_, ok := workStatusWeights[s]
	return ok
}

func (s WorkStatus) String() string {
	return string(s)
}

// Work is one student's instance of an assigned task.
type Work struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TaskID     uint       `gorm:"not null;index" json:"task_id"`
	StudentID  uint       `gorm:"not null;index" json:"student_id"`
	Status     WorkStatus `gorm:"size:32;not null;default:draft;index" json:"status"`
	Conclusion string     `gorm:"type:text" json:"conclusion"`
	FinishDate *time.Time `json:"finish_date"`
	AIVerified bool       `gorm:"not null;default:false" json:"ai_verified"`
	Version    int        `gorm:"not null;default:1" json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Task       Task       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student    User       `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Answers    []Answer   `gorm:"constraint:OnDelete:CASCADE" json:"answers"`
}

// AnswerByID returns a pointer into the work's answers, or nil.
func (w *Work) AnswerByID(id uint) *Answer {
	for i := range w.Answers {
		if w.Answers[i].ID == id {
			return &w.Answers[i]
		}
	}
	return nil
}

// Answer is one student response to one exercise within a work.
type Answer struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	WorkID         uint         `gorm:"not null;index" json:"work_id"`
	ExerciseID     uint         `gorm:"not null;index" json:"exercise_id"`
	Text           string       `gorm:"type:text" json:"text"`
	GeneralComment string       `gorm:"type:text" json:"general_comment"`
	Files          []AnswerFile `gorm:"constraint:OnDelete:CASCADE" json:"files"`
	Assessments    []Assessment `gorm:"constraint:OnDelete:CASCADE" json:"assessments"`
	Comments       []Comment    `gorm:"constraint:OnDelete:CASCADE" json:"comments"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Assessment holds the points awarded for one criterion on one answer.
type Assessment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	AnswerID    uint      `gorm:"not null;index" json:"answer_id"`
	CriterionID uint      `gorm:"not null;index" json:"criterion_id"`
	Points      int       `gorm:"not null;default:0" json:"points"`
	Criterion   Criterion `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
