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

type mockCommentService struct {
	lastWorkID    uint
	lastCommentID uint
	lastCreate    dto.CommentCreateRequest
	lastUpdate    dto.CommentUpdateRequest
	deleted       bool
	err           error
}

func (m *mockCommentService) Create(_ context.Context, _ grading.Actor, workID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error) {
	m.lastWorkID, m.lastCreate = workID, req
	if m.err != nil {
		return dto.CommentResponse{}, m.err
	}
	return dto.CommentResponse{ID: 31, AnswerID: req.AnswerID, Description: req.Description, Human: true}, nil
}

func (m *mockCommentService) Update(_ context.Context, _ grading.Actor, workID, commentID uint, req dto.CommentUpdateRequest) (dto.CommentResponse, error) {
	m.lastWorkID, m.lastCommentID, m.lastUpdate = workID, commentID, req
	if m.err != nil {
		return dto.CommentResponse{}, m.err
	}
	return dto.CommentResponse{ID: commentID}, nil
}

func (m *mockCommentService) Delete(_ context.Context, _ grading.Actor, workID, commentID uint) error {
	m.lastWorkID, m.lastCommentID = workID, commentID
	if m.err != nil {
		return m.err
	}
	m.deleted = true
	return nil
}

func newCommentApp(comments service.CommentService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/works", asUser(4, "teacher"))
	handler.NewCommentHandler(comments, discardLogger()).Register(group)
	return app
}

func TestCommentHandler_Lifecycle(t *testing.T) {
	svc := &mockCommentService{}
	app := newCommentApp(svc)

	create := httptest.NewRequest(http.MethodPost, "/api/v1/works/3/comments",
		strings.NewReader(`{"answer_id":7,"description":"check sign","coordinates":[{"x1":1,"y1":2,"x2":3,"y2":4}],"files":["a.png"]}`))
	create.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(create)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created apiEnvelope[dto.CommentResponse]
	decodeResponse(t, resp, &created)
	require.Equal(t, uint(31), created.Data.ID)
	require.Equal(t, uint(3), svc.lastWorkID)
	require.Len(t, svc.lastCreate.Coordinates, 1)
	require.Equal(t, []string{"a.png"}, svc.lastCreate.Files)

	update := httptest.NewRequest(http.MethodPut, "/api/v1/works/3/comments/31", strings.NewReader(`{"description":"fixed"}`))
	update.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(update)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(31), svc.lastCommentID)
	require.Equal(t, "fixed", *svc.lastUpdate.Description)
	require.Nil(t, svc.lastUpdate.Files)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/works/3/comments/31", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, svc.deleted)
}

func TestCommentHandler_StudentRejected(t *testing.T) {
	app := fiber.New()
	group := app.Group("/api/v1/works", asUser(9, "student"))
	handler.NewCommentHandler(&mockCommentService{}, discardLogger()).Register(group)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/works/3/comments/31", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestCommentHandler_Errors(t *testing.T) {
	app := newCommentApp(&mockCommentService{err: service.ErrCommentNotFound})
	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/works/3/comments/99", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	app = newCommentApp(&mockCommentService{err: service.ErrInvalidCommentType})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/works/3/comments", strings.NewReader(`{"answer_id":7,"description":"x","type_id":5}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/works/3/comments/zero", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
