package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

type mockActivityService struct {
	lastRequest dto.ActivityListRequest
	err         error
}

func (m *mockActivityService) Record(context.Context, service.ActivityEntry) (dto.ActivityResponse, error) {
	return dto.ActivityResponse{}, nil
}

func (m *mockActivityService) List(_ context.Context, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	m.lastRequest = req
	if m.err != nil {
		return dto.ActivityListResponse{}, m.err
	}
	return dto.ActivityListResponse{
		Items:      []dto.ActivityResponse{{ID: 1, Action: service.ActionWorkStatusChanged, EntityType: "work"}},
		Pagination: dto.PaginationMeta{Page: req.Page, PageSize: req.PageSize, TotalItems: 1, TotalPages: 1},
	}, nil
}

func newActivityApp(svc service.ActivityService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/admin/activity", asUser(1, "admin"))
	handler.NewActivityHandler(svc, discardLogger()).Register(group)
	return app
}

func TestActivityHandler_ListFilters(t *testing.T) {
	svc := &mockActivityService{}
	app := newActivityApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/activity?entity_type=work&entity_id=12&action=work.status_changed&page_size=500", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, 1, svc.lastRequest.Page)
	require.Equal(t, 200, svc.lastRequest.PageSize)
	require.Equal(t, "work", svc.lastRequest.EntityType)
	require.Equal(t, "work.status_changed", svc.lastRequest.Action)
	require.NotNil(t, svc.lastRequest.EntityID)
	require.Equal(t, uint(12), *svc.lastRequest.EntityID)

	var body struct {
		Success bool                   `json:"success"`
		Data    []dto.ActivityResponse `json:"data"`
		Meta    dto.PaginationMeta     `json:"meta"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, int64(1), body.Meta.TotalItems)
}

func TestActivityHandler_ListErrors(t *testing.T) {
	app := newActivityApp(&mockActivityService{})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/activity?entity_id=x", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	app = newActivityApp(&mockActivityService{err: errors.New("db down")})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/admin/activity", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
