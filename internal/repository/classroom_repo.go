package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// ClassroomSummary is a classroom with its roster size.
type ClassroomSummary struct {
	ID        uint
	Name      string
	Students  int
	CreatedAt time.Time
}

// ClassroomRepository stores a teacher's classrooms and the students placed in them.
type ClassroomRepository interface {
	Create(ctx context.Context, classroom *models.Classroom) error
	Get(ctx context.Context, id uint) (models.Classroom, error)
	List(ctx context.Context, teacherID uint) ([]ClassroomSummary, error)
	Rename(ctx context.Context, id uint, name string) error
	// Delete removes the classroom. Members stay linked to the teacher unless removeStudents is set.
	Delete(ctx context.Context, classroom models.Classroom, removeStudents bool) error
	NameTaken(ctx context.Context, teacherID uint, name string, exceptID uint) (bool, error)
	// Assign places studentIDs into classroomID, linking them to the teacher when needed.
	Assign(ctx context.Context, teacherID, classroomID uint, studentIDs []uint) error
	// Unassign takes a student out of the classroom and reports whether it was a member.
	Unassign(ctx context.Context, teacherID, classroomID, studentID uint) (bool, error)
}

type classroomRepository struct {
	db *gorm.DB
}

// NewClassroomRepository instantiates the repository.
func NewClassroomRepository(db *gorm.DB) ClassroomRepository {
	return &classroomRepository{db: db}
}

func (r *classroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	return r.db.WithContext(ctx).Create(classroom).Error
}

func (r *classroomRepository) Get(ctx context.Context, id uint) (models.Classroom, error) {
	var classroom models.Classroom
	if err := r.db.WithContext(ctx).First(&classroom, id).Error; err != nil {
		return models.Classroom{}, err
	}
	return classroom, nil
}

func (r *classroomRepository) List(ctx context.Context, teacherID uint) ([]ClassroomSummary, error) {
	var rows []ClassroomSummary
	err := r.db.WithContext(ctx).Table("classrooms").
		Select(`classrooms.id, classrooms.name, classrooms.created_at,
			(SELECT COUNT(*) FROM classroom_members WHERE classroom_members.classroom_id = classrooms.id) AS students`).
		Where("classrooms.teacher_id = ?", teacherID).
		Order("classrooms.name ASC, classrooms.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *classroomRepository) Rename(ctx context.Context, id uint, name string) error {
	return r.db.WithContext(ctx).Model(&models.Classroom{}).Where("id = ?", id).Update("name", name).Error
}

func (r *classroomRepository) Delete(ctx context.Context, classroom models.Classroom, removeStudents bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if removeStudents {
			if err := tx.Where("teacher_id = ? AND classroom_id = ?", classroom.TeacherID, classroom.ID).
				Delete(&models.ClassroomMember{}).Error; err != nil {
				return err
			}
		} else if err := tx.Model(&models.ClassroomMember{}).
			Where("teacher_id = ? AND classroom_id = ?", classroom.TeacherID, classroom.ID).
			Update("classroom_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Classroom{}, classroom.ID).Error
	})
}

func (r *classroomRepository) NameTaken(ctx context.Context, teacherID uint, name string, exceptID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Classroom{}).Where("teacher_id = ? AND name = ?", teacherID, name)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *classroomRepository) Assign(ctx context.Context, teacherID, classroomID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var linked []uint
		if err := tx.Model(&models.ClassroomMember{}).
			Where("teacher_id = ? AND student_id IN ?", teacherID, studentIDs).
			Pluck("student_id", &linked).Error; err != nil {
			return err
		}

		if len(linked) > 0 {
			if err := tx.Model(&models.ClassroomMember{}).
				Where("teacher_id = ? AND student_id IN ?", teacherID, linked).
				Update("classroom_id", classroomID).Error; err != nil {
				return err
			}
		}

		known := make(map[uint]struct{}, len(linked))
		for _, id := range linked {
			known[id] = struct{}{}
		}
		var fresh []models.ClassroomMember
		for _, id := range studentIDs {
			if _, ok := known[id]; ok {
				continue
			}
			known[id] = struct{}{}
			classroom := classroomID
			fresh = append(fresh, models.ClassroomMember{TeacherID: teacherID, StudentID: id, ClassroomID: &classroom})
		}
		if len(fresh) == 0 {
			return nil
		}
		return tx.Create(&fresh).Error
	})
}

func (r *classroomRepository) Unassign(ctx context.Context, teacherID, classroomID, studentID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ClassroomMember{}).
		Where("teacher_id = ? AND classroom_id = ? AND student_id = ?", teacherID, classroomID, studentID).
		Update("classroom_id", nil)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
