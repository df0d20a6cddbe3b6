package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// WorkHandler exposes work endpoints to students and teachers.
type WorkHandler struct {
	works     service.WorkService
	ai        service.AIVerificationService
	aiLimiter fiber.Handler
	logger    zerolog.Logger
}

// NewWorkHandler constructs the handler.
func NewWorkHandler(works service.WorkService, ai service.AIVerificationService, logger zerolog.Logger) *WorkHandler {
	return &WorkHandler{
		works:  works,
		ai:     ai,
		logger: logger.With().Str("component", "work_handler").Logger(),
	}
}

// WithAILimiter guards the recognition endpoint with limiter.
func (h *WorkHandler) WithAILimiter(limiter fiber.Handler) *WorkHandler {
	h.aiLimiter = limiter
	return h
}

// Register attaches work routes to the router group.
func (h *WorkHandler) Register(router fiber.Router) {
	router.Get("/teacher", middleware.WithAuth(h.listTeacher, middleware.AuthOptions{Roles: []string{middleware.AuthRoleTeacher}}))
	router.Get("/student", middleware.WithAuth(h.listStudent, middleware.AuthOptions{Roles: []string{middleware.AuthRoleStudent}}))
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Patch("/:id/status", h.updateStatus)

	dispatch := middleware.WithAuth(h.dispatchAI, middleware.AuthOptions{Roles: []string{middleware.AuthRoleTeacher}})
	if h.aiLimiter != nil {
		router.Post("/:id/ai-verification", h.aiLimiter, dispatch)
		return
	}
	router.Post("/:id/ai-verification", dispatch)
}

func (h *WorkHandler) listTeacher(c *fiber.Ctx) error {
	query, err := parseWorkListQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.works.ListForTeacher(c.UserContext(), userIDFromContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list works")
	}
	return utils.SendSuccess(c, "works retrieved", response)
}

func (h *WorkHandler) listStudent(c *fiber.Ctx) error {
	query, err := parseWorkListQuery(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	query.StudentID = nil

	response, err := h.works.ListForStudent(c.UserContext(), userIDFromContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list works")
	}
	return utils.SendSuccess(c, "works retrieved", response)
}

func (h *WorkHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load work")
	}

	response, err := h.works.Get(c.UserContext(), actor, id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load work")
	}
	return utils.SendSuccess(c, "work retrieved", response)
}

func (h *WorkHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update work status")
	}

	var payload dto.WorkStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.works.UpdateStatus(c.UserContext(), actor, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update work status")
	}
	return utils.SendSuccess(c, "work status updated", response)
}

func (h *WorkHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update work")
	}

	var payload dto.WorkUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.works.Update(c.UserContext(), actor, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update work")
	}
	return utils.SendSuccess(c, "work updated", response)
}

func (h *WorkHandler) dispatchAI(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid work id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to request ai verification")
	}

	response, err := h.ai.Dispatch(c.UserContext(), actor, id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to request ai verification")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "ai verification requested", response)
}

func parseWorkListQuery(c *fiber.Ctx) (dto.WorkListQuery, error) {
	var query dto.WorkListQuery
	var err error

	if query.Page, err = parseQueryInt(c, "page"); err != nil {
		return query, fiber.NewError(fiber.StatusBadRequest, "invalid page")
	}
	if query.PageSize, err = parseQueryInt(c, "page_size"); err != nil {
		return query, fiber.NewError(fiber.StatusBadRequest, "invalid page size")
	}
	if query.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return query, err
	}
	if query.TaskID, err = parseQueryUint(c, "task_id"); err != nil {
		return query, err
	}
	if status := c.Query("status"); status != "" {
		query.Statuses = splitAndTrim(status)
	}
	return query, nil
}
