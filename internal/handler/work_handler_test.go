package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/repository"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

type mockWorkService struct {
	lastActor  grading.Actor
	lastID     uint
	lastQuery  dto.WorkListQuery
	lastUserID uint
	lastStatus dto.WorkStatusRequest
	lastUpdate dto.WorkUpdateRequest
	lastCreate dto.WorkCreateRequest
	err        error
}

func (m *mockWorkService) Get(_ context.Context, actor grading.Actor, id uint) (dto.WorkDetailResponse, error) {
	m.lastActor, m.lastID = actor, id
	if m.err != nil {
		return dto.WorkDetailResponse{}, m.err
	}
	return dto.WorkDetailResponse{Work: dto.WorkResponse{ID: id, Status: "draft"}}, nil
}

func (m *mockWorkService) ListForTeacher(_ context.Context, teacherID uint, query dto.WorkListQuery) (dto.WorkListResponse, error) {
	m.lastUserID, m.lastQuery = teacherID, query
	return dto.WorkListResponse{Items: []dto.WorkListItem{{ID: 1}}, Page: 1}, m.err
}

func (m *mockWorkService) ListForStudent(_ context.Context, studentID uint, query dto.WorkListQuery) (dto.WorkListResponse, error) {
	m.lastUserID, m.lastQuery = studentID, query
	return dto.WorkListResponse{Page: 1}, m.err
}

func (m *mockWorkService) UpdateStatus(_ context.Context, actor grading.Actor, id uint, req dto.WorkStatusRequest) (dto.WorkStatusResponse, error) {
	m.lastActor, m.lastID, m.lastStatus = actor, id, req
	if m.err != nil {
		return dto.WorkStatusResponse{}, m.err
	}
	return dto.WorkStatusResponse{ID: id, Status: req.Status, Version: 2}, nil
}

func (m *mockWorkService) Update(_ context.Context, actor grading.Actor, id uint, req dto.WorkUpdateRequest) (dto.WorkDetailResponse, error) {
	m.lastActor, m.lastID, m.lastUpdate = actor, id, req
	if m.err != nil {
		return dto.WorkDetailResponse{}, m.err
	}
	return dto.WorkDetailResponse{Work: dto.WorkResponse{ID: id}}, nil
}

func (m *mockWorkService) CreateForTask(_ context.Context, actor grading.Actor, taskID uint, req dto.WorkCreateRequest) (dto.WorkCreateResponse, error) {
	m.lastActor, m.lastID, m.lastCreate = actor, taskID, req
	if m.err != nil {
		return dto.WorkCreateResponse{}, m.err
	}
	return dto.WorkCreateResponse{TaskID: taskID, WorkIDs: []uint{5, 6}, Skipped: 1}, nil
}

type mockAIVerificationService struct {
	lastWorkID uint
	err        error
}

func (m *mockAIVerificationService) Dispatch(_ context.Context, _ grading.Actor, workID uint) (dto.AIVerificationResponse, error) {
	m.lastWorkID = workID
	if m.err != nil {
		return dto.AIVerificationResponse{}, m.err
	}
	return dto.AIVerificationResponse{WorkID: workID, Files: 2, RemainingChecks: 3, CorrelationID: "corr"}, nil
}

func newWorkApp(works service.WorkService, ai service.AIVerificationService, userID uint, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/works", asUser(userID, role))
	handler.NewWorkHandler(works, ai, discardLogger()).Register(group)
	return app
}

func TestWorkHandler_UpdateStatus(t *testing.T) {
	svc := &mockWorkService{}
	app := newWorkApp(svc, &mockAIVerificationService{}, 9, "student")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/works/12/status", strings.NewReader(`{"status":"verification"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiEnvelope[dto.WorkStatusResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "verification", body.Data.Status)
	require.Equal(t, uint(12), svc.lastID)
	require.Equal(t, grading.StudentActor{ID: 9}, svc.lastActor)
	require.Nil(t, svc.lastStatus.Conclusion)
}

func TestWorkHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{name: "regression", err: grading.ErrStatusRegression, status: fiber.StatusBadRequest, kind: string(grading.KindStatusRegression)},
		{name: "student conclusion", err: grading.ErrStudentCannotSetConclusion, status: fiber.StatusBadRequest, kind: string(grading.KindStudentCannotSetConclusion)},
		{name: "role", err: grading.ErrUnauthorizedRole, status: fiber.StatusForbidden, kind: string(grading.KindUnauthorizedRole)},
		{name: "not found", err: grading.ErrAggregateNotFound, status: fiber.StatusNotFound},
		{name: "conflict", err: fmt.Errorf("save: %w", grading.ErrConcurrentModification), status: fiber.StatusConflict},
		{name: "permission", err: service.ErrPermissionDenied, status: fiber.StatusForbidden},
		{name: "unexpected", err: fmt.Errorf("database exploded"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newWorkApp(&mockWorkService{err: tc.err}, &mockAIVerificationService{}, 4, "teacher")

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/works/3/status", strings.NewReader(`{"status":"draft"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body apiEnvelope[interface{}]
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			if tc.kind != "" {
				require.Equal(t, tc.kind, body.Details["kind"])
			}
			if tc.status == fiber.StatusInternalServerError {
				require.NotContains(t, body.Message, "exploded")
			}
		})
	}
}

func TestWorkHandler_InvalidID(t *testing.T) {
	app := newWorkApp(&mockWorkService{}, &mockAIVerificationService{}, 4, "teacher")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWorkHandler_PassesAdminActorToService(t *testing.T) {
	svc := &mockWorkService{}
	app := newWorkApp(svc, &mockAIVerificationService{}, 1, "admin")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, grading.AdminActor{ID: 1}, svc.lastActor)
}

func TestWorkHandler_TeacherListParsesFilters(t *testing.T) {
	svc := &mockWorkService{}
	app := newWorkApp(svc, &mockAIVerificationService{}, 4, "teacher")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/teacher?status=verification,%20verificated&task_id=8&student_id=3&page=2&page_size=10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, uint(4), svc.lastUserID)
	require.Equal(t, []string{"verification", "verificated"}, svc.lastQuery.Statuses)
	require.Equal(t, uint(8), *svc.lastQuery.TaskID)
	require.Equal(t, uint(3), *svc.lastQuery.StudentID)
	require.Equal(t, 2, svc.lastQuery.Page)
	require.Equal(t, 10, svc.lastQuery.PageSize)

	var body apiEnvelope[dto.WorkListResponse]
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data.Items, 1)
}

func TestWorkHandler_ListRoleGuards(t *testing.T) {
	svc := &mockWorkService{}

	studentApp := newWorkApp(svc, &mockAIVerificationService{}, 9, "student")
	resp, err := studentApp.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/teacher", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	anonymous := newWorkApp(svc, &mockAIVerificationService{}, 0, "")
	resp, err = anonymous.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/student", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = studentApp.Test(httptest.NewRequest(http.MethodGet, "/api/v1/works/student?student_id=77", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(9), svc.lastUserID)
	require.Nil(t, svc.lastQuery.StudentID)
}

func TestWorkHandler_Update(t *testing.T) {
	svc := &mockWorkService{}
	app := newWorkApp(svc, &mockAIVerificationService{}, 4, "teacher")

	payload := `{"conclusion":"good","answers":[{"id":7,"assessments":[{"criterion_id":2,"points":3}]}]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/works/3", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, svc.lastUpdate.Conclusion)
	require.Equal(t, "good", *svc.lastUpdate.Conclusion)
	require.Len(t, svc.lastUpdate.Answers, 1)
	require.Len(t, svc.lastUpdate.Answers[0].Assessments, 1)
	require.Equal(t, 3, *svc.lastUpdate.Answers[0].Assessments[0].Points)
}

func TestWorkHandler_DispatchAI(t *testing.T) {
	ai := &mockAIVerificationService{}
	app := newWorkApp(&mockWorkService{}, ai, 4, "teacher")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/works/3/ai-verification", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	require.Equal(t, uint(3), ai.lastWorkID)

	var body apiEnvelope[dto.AIVerificationResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, 3, body.Data.RemainingChecks)
}

func TestWorkHandler_DispatchAIQuota(t *testing.T) {
	for _, quotaErr := range []error{repository.ErrInsufficientChecks, repository.ErrSubscriptionInactive} {
		app := newWorkApp(&mockWorkService{}, &mockAIVerificationService{err: quotaErr}, 4, "teacher")

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/works/3/ai-verification", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusPaymentRequired, resp.StatusCode)
	}

	app := newWorkApp(&mockWorkService{}, &mockAIVerificationService{}, 9, "student")
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/works/3/ai-verification", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWorkHandler_DispatchAIRateLimited(t *testing.T) {
	app := fiber.New()
	group := app.Group("/api/v1/works", asUser(4, "teacher"))
	handler.NewWorkHandler(&mockWorkService{}, &mockAIVerificationService{}, discardLogger()).
		WithAILimiter(middleware.RateLimit("ai-verification", 1, time.Minute)).
		Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/works/3/ai-verification", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/works/3/ai-verification", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}
