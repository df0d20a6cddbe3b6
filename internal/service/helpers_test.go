package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/database"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/pkg/storage"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type gradingFixture struct {
	teacher      models.User
	otherTeacher models.User
	student      models.User
	classmate    models.User
	task         models.Task
	commentType  models.CommentType
	work         models.Work
}

// seedGrading creates a task with two exercises and one work assigned to student.
func seedGrading(t *testing.T, db *gorm.DB) gradingFixture {
	t.Helper()

	f := gradingFixture{
		teacher:      models.User{FirstName: "Tess", LastName: "Teacher", Email: "tess@example.com", Role: models.RoleTeacher},
		otherTeacher: models.User{FirstName: "Oscar", LastName: "Other", Email: "oscar@example.com", Role: models.RoleTeacher},
		student:      models.User{FirstName: "Sam", LastName: "Student", Email: "sam@example.com", Role: models.RoleStudent},
		classmate:    models.User{FirstName: "Cleo", LastName: "Mate", Email: "cleo@example.com", Role: models.RoleStudent},
	}
	for _, user := range []*models.User{&f.teacher, &f.otherTeacher, &f.student, &f.classmate} {
		require.NoError(t, db.Create(user).Error)
	}

	subject := models.Subject{Name: "Math", CommentTypes: []models.CommentType{{ShortName: "ERR", Name: "Error"}}}
	require.NoError(t, db.Create(&subject).Error)
	f.commentType = subject.CommentTypes[0]

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

	works, err := repository.NewWorkRepository(db).CreateForTask(context.Background(), f.task, []uint{f.student.ID})
	require.NoError(t, err)
	require.Len(t, works, 1)
	f.work = works[0]

	return f
}

func setWorkStatus(t *testing.T, db *gorm.DB, workID uint, status models.WorkStatus) {
	t.Helper()
	require.NoError(t, db.Model(&models.Work{}).Where("id = ?", workID).Update("status", status).Error)
}

// memoryStorage is an in-memory two-bucket object store.
type memoryStorage struct {
	mu        sync.Mutex
	temp      map[string][]byte
	permanent map[string][]byte
	deleted   []string
	deleteErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{temp: map[string][]byte{}, permanent: map[string][]byte{}}
}

func (m *memoryStorage) upload(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temp[key] = body
}

func (m *memoryStorage) PresignUpload(_ context.Context, key string) (string, error) {
	return "https://temp.test/" + key + "?signature=abc", nil
}

func (m *memoryStorage) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (m *memoryStorage) TempSize(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.temp[key]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return int64(len(body)), nil
}

func (m *memoryStorage) TempHead(_ context.Context, key string, size int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.temp[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	if int64(len(body)) > size {
		body = body[:size]
	}
	return append([]byte(nil), body...), nil
}

func (m *memoryStorage) Promote(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.temp[key]
	if !ok {
		return storage.ErrObjectNotFound
	}
	m.permanent[key] = body
	delete(m.temp, key)
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, key := range keys {
		delete(m.permanent, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

type recordedEvent struct {
	subject string
	data    []byte
}

type memoryEvents struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (m *memoryEvents) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, recordedEvent{subject: subject, data: data})
	return nil
}

type memoryActivityRepo struct {
	mu      sync.Mutex
	entries []models.ActivityLog
}

func (m *memoryActivityRepo) Create(_ context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(_ context.Context, _ repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityLog(nil), m.entries...), int64(len(m.entries)), nil
}

func (m *memoryActivityRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type memoryPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	err      error
}

func (m *memoryPublisher) Publish(_ context.Context, correlationID string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.messages == nil {
		m.messages = map[string][]byte{}
	}
	m.messages[correlationID] = body
	return nil
}

var errBoom = errors.New("boom")

func uintPtr(v uint) *uint       { return &v }
func intPtr(v int) *int          { return &v }
func stringPtr(v string) *string { return &v }
