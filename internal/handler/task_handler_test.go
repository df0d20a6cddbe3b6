package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

type mockTaskService struct {
	lastActor  grading.Actor
	lastID     uint
	lastCreate dto.TaskCreateRequest
	lastUpdate dto.TaskUpdateRequest
	lastQuery  dto.TaskListQuery
	err        error
}

func (m *mockTaskService) Create(_ context.Context, actor grading.Actor, req dto.TaskCreateRequest) (dto.TaskResponse, error) {
	m.lastActor, m.lastCreate = actor, req
	if m.err != nil {
		return dto.TaskResponse{}, m.err
	}
	return dto.TaskResponse{ID: 11, Name: req.Name}, nil
}

func (m *mockTaskService) List(_ context.Context, actor grading.Actor, query dto.TaskListQuery) ([]dto.TaskListItem, error) {
	m.lastActor, m.lastQuery = actor, query
	if m.err != nil {
		return nil, m.err
	}
	return []dto.TaskListItem{{ID: 11, Name: "Fractions"}}, nil
}

func (m *mockTaskService) Get(_ context.Context, actor grading.Actor, id uint) (dto.TaskResponse, error) {
	m.lastActor, m.lastID = actor, id
	if m.err != nil {
		return dto.TaskResponse{}, m.err
	}
	return dto.TaskResponse{ID: id}, nil
}

func (m *mockTaskService) Update(_ context.Context, actor grading.Actor, id uint, req dto.TaskUpdateRequest) (dto.TaskResponse, error) {
	m.lastActor, m.lastID, m.lastUpdate = actor, id, req
	if m.err != nil {
		return dto.TaskResponse{}, m.err
	}
	return dto.TaskResponse{ID: id}, nil
}

func (m *mockTaskService) Delete(_ context.Context, actor grading.Actor, id uint) error {
	m.lastActor, m.lastID = actor, id
	return m.err
}

func newTaskApp(works service.WorkService) *fiber.App {
	return newTaskAppWith(&mockTaskService{}, works)
}

func newTaskAppWith(tasks service.TaskService, works service.WorkService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/tasks", asUser(4, "teacher"))
	handler.NewTaskHandler(tasks, works, discardLogger()).Register(group)
	return app
}

func TestTaskHandler_CreateWorks(t *testing.T) {
	svc := &mockWorkService{}
	app := newTaskApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/8/works", strings.NewReader(`{"student_ids":[1,2],"classroom_ids":[3]}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body apiEnvelope[dto.WorkCreateResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, []uint{5, 6}, body.Data.WorkIDs)
	require.Equal(t, 1, body.Data.Skipped)
	require.Equal(t, uint(8), svc.lastID)
	require.Equal(t, grading.TeacherActor{ID: 4}, svc.lastActor)
	require.Equal(t, []uint{1, 2}, svc.lastCreate.StudentIDs)
	require.Equal(t, []uint{3}, svc.lastCreate.ClassroomIDs)
}

func TestTaskHandler_CreateWorksErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrTaskNotFound:     fiber.StatusNotFound,
		service.ErrNoStudents:       fiber.StatusBadRequest,
		service.ErrPermissionDenied: fiber.StatusForbidden,
	}

	for svcErr, status := range cases {
		app := newTaskApp(&mockWorkService{err: svcErr})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/8/works", strings.NewReader(`{"student_ids":[1]}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, svcErr.Error())
	}
}

func TestTaskHandler_Authoring(t *testing.T) {
	tasks := &mockTaskService{}
	app := newTaskAppWith(tasks, &mockWorkService{})

	body := `{"name":"Equations","subject_id":2,"exercises":[{"title":"Linear","criteria":[{"name":"Answer","max_score":2}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, grading.TeacherActor{ID: 4}, tasks.lastActor)
	require.Equal(t, "Equations", tasks.lastCreate.Name)
	require.Len(t, tasks.lastCreate.Exercises, 1)
	require.Equal(t, 2, tasks.lastCreate.Exercises[0].Criteria[0].MaxScore)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tasks?subject_id=2", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, tasks.lastQuery.SubjectID)
	require.Equal(t, uint(2), *tasks.lastQuery.SubjectID)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/tasks/11", strings.NewReader(`{"name":"Renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(11), tasks.lastID)
	require.Equal(t, "Renamed", *tasks.lastUpdate.Name)
	require.Nil(t, tasks.lastUpdate.Exercises)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/11", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/tasks/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTaskHandler_AuthoringErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrTaskInUse:        fiber.StatusConflict,
		service.ErrTaskNotFound:     fiber.StatusNotFound,
		service.ErrPermissionDenied: fiber.StatusForbidden,
	}

	for svcErr, status := range cases {
		app := newTaskAppWith(&mockTaskService{err: svcErr}, &mockWorkService{})

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/tasks/11", nil))
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, svcErr.Error())
	}
}
