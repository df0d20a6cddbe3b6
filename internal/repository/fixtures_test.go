package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/database"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type fixture struct {
	teacher models.User
	student models.User
	other   models.User
	task    models.Task
}

func seedFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	f := fixture{
		teacher: models.User{FirstName: "Tess", LastName: "Teacher", Email: "tess@example.com", Role: models.RoleTeacher},
		student: models.User{FirstName: "Sam", LastName: "Student", Email: "sam@example.com", Role: models.RoleStudent},
		other:   models.User{FirstName: "Olga", LastName: "Other", Email: "olga@example.com", Role: models.RoleStudent},
	}
	require.NoError(t, db.Create(&f.teacher).Error)
	require.NoError(t, db.Create(&f.student).Error)
	require.NoError(t, db.Create(&f.other).Error)

	subject := models.Subject{Name: "Math", CommentTypes: []models.CommentType{{ShortName: "ERR", Name: "Error"}}}
	require.NoError(t, db.Create(&subject).Error)

	f.task = models.Task{
		TeacherID: f.teacher.ID,
		SubjectID: &subject.ID,
		Name:      "Fractions",
		Exercises: []models.Exercise{
			{Position: 1, Title: "Add", Criteria: []models.Criterion{{Name: "Result", MaxScore: 3}, {Name: "Steps", MaxScore: 2}}},
			{Position: 2, Title: "Simplify", Criteria: []models.Criterion{{Name: "Result", MaxScore: 5}}},
		},
	}
	require.NoError(t, db.Create(&f.task).Error)

	return f
}
