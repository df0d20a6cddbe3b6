package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/service"
)

type mockFileService struct {
	lastUserID uint
	lastName   string
	err        error
}

func (m *mockFileService) UploadLink(_ context.Context, userID uint, req dto.UploadLinkRequest) (dto.UploadLinkResponse, error) {
	m.lastUserID, m.lastName = userID, req.Filename
	if m.err != nil {
		return dto.UploadLinkResponse{}, m.err
	}
	return dto.UploadLinkResponse{Key: "abc123.png", UploadLink: "https://storage.local/temp/abc123.png", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockFileService) Promote(context.Context, []string) error    { return nil }
func (m *mockFileService) DownloadURL(context.Context, string) string { return "" }
func (m *mockFileService) DeleteOrphans(context.Context, []string)    {}

func newFileApp(files service.FileService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/files", asUser(9, "student"))
	handler.NewFileHandler(files, discardLogger()).Register(group)
	return app
}

func TestFileHandler_UploadLink(t *testing.T) {
	svc := &mockFileService{}
	app := newFileApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload-link", strings.NewReader(`{"filename":"page1.PNG"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body apiEnvelope[dto.UploadLinkResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "abc123.png", body.Data.Key)
	require.Equal(t, uint(9), svc.lastUserID)
	require.Equal(t, "page1.PNG", svc.lastName)
}

func TestFileHandler_UploadLinkRejectsType(t *testing.T) {
	app := newFileApp(&mockFileService{err: service.ErrUploadTypeNotAllowed})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload-link", strings.NewReader(`{"filename":"notes.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFileHandler_InvalidPayload(t *testing.T) {
	app := newFileApp(&mockFileService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/files/upload-link", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
