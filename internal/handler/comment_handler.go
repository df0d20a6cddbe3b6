package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// CommentHandler exposes teacher comments on the answers of a work.
type CommentHandler struct {
	service service.CommentService
	logger  zerolog.Logger
}

// NewCommentHandler constructs the handler.
func NewCommentHandler(service service.CommentService, logger zerolog.Logger) *CommentHandler {
	return &CommentHandler{
		service: service,
		logger:  logger.With().Str("component", "comment_handler").Logger(),
	}
}

// Register attaches comment routes under the works group. Only teachers may comment.
func (h *CommentHandler) Register(router fiber.Router) {
	teacherOnly := middleware.AuthOptions{Roles: []string{middleware.AuthRoleTeacher}}
	router.Post("/:id/comments", middleware.WithAuth(h.create, teacherOnly))
	router.Put("/:id/comments/:commentId", middleware.WithAuth(h.update, teacherOnly))
	router.Delete("/:id/comments/:commentId", middleware.WithAuth(h.delete, teacherOnly))
}

func (h *CommentHandler) create(c *fiber.Ctx) error {
	workID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create comment")
	}

	var payload dto.CommentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Create(c.UserContext(), actor, workID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create comment")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "comment created", response)
}

func (h *CommentHandler) update(c *fiber.Ctx) error {
	workID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	commentID, err := parseUintParam(c, "commentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid comment id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update comment")
	}

	var payload dto.CommentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Update(c.UserContext(), actor, workID, commentID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update comment")
	}
	return utils.SendSuccess(c, "comment updated", response)
}

func (h *CommentHandler) delete(c *fiber.Ctx) error {
	workID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	commentID, err := parseUintParam(c, "commentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid comment id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete comment")
	}

	if err := h.service.Delete(c.UserContext(), actor, workID, commentID); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete comment")
	}
	return utils.SendSuccess(c, "comment deleted", nil)
}
