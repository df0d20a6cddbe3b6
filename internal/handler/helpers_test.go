package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/middleware"
)

type apiEnvelope[T any] struct {
	Success bool                   `json:"success"`
	Data    T                      `json:"data"`
	Details map[string]interface{} `json:"details"`
	Message string                 `json:"message"`
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// asUser stands in for the JWT middleware.
func asUser(id uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id != 0 {
			c.Locals(middleware.LocalUserID, id)
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	}
}
