package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// FileHandler issues presigned upload links.
type FileHandler struct {
	service service.FileService
	logger  zerolog.Logger
}

// NewFileHandler constructs the handler.
func NewFileHandler(service service.FileService, logger zerolog.Logger) *FileHandler {
	return &FileHandler{
		service: service,
		logger:  logger.With().Str("component", "file_handler").Logger(),
	}
}

// Register attaches file routes to the router group.
func (h *FileHandler) Register(router fiber.Router) {
	router.Post("/upload-link", h.uploadLink)
}

func (h *FileHandler) uploadLink(c *fiber.Ctx) error {
	var payload dto.UploadLinkRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.UploadLink(c.UserContext(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create upload link")
	}
	return utils.SendSuccess(c, "upload link created", response)
}
