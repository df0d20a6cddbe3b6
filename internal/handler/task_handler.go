package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// TaskHandler exposes task authoring and assignment to teachers.
type TaskHandler struct {
	tasks  service.TaskService
	works  service.WorkService
	logger zerolog.Logger
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(tasks service.TaskService, works service.WorkService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		works:  works,
		logger: logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register attaches task routes to the router group.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
	router.Post("/:id/works", h.createWorks)
}

func (h *TaskHandler) create(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create task")
	}

	var payload dto.TaskCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.tasks.Create(c.UserContext(), actor, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create task")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "task created", response)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list tasks")
	}
	subjectID, err := parseQueryUint(c, "subject_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.tasks.List(c.UserContext(), actor, dto.TaskListQuery{SubjectID: subjectID})
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list tasks")
	}
	return utils.SendSuccess(c, "tasks retrieved", response)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load task")
	}

	response, err := h.tasks.Get(c.UserContext(), actor, id)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load task")
	}
	return utils.SendSuccess(c, "task retrieved", response)
}

func (h *TaskHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update task")
	}

	var payload dto.TaskUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.tasks.Update(c.UserContext(), actor, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update task")
	}
	return utils.SendSuccess(c, "task updated", response)
}

func (h *TaskHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete task")
	}

	if err := h.tasks.Delete(c.UserContext(), actor, id); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete task")
	}
	return utils.SendSuccess(c, "task deleted", nil)
}

func (h *TaskHandler) createWorks(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid task id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create works")
	}

	var payload dto.WorkCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.works.CreateForTask(c.UserContext(), actor, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create works")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "works created", response)
}
