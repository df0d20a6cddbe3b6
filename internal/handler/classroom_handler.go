package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// ClassroomHandler manages a teacher's classrooms and rosters.
type ClassroomHandler struct {
	service service.ClassroomService
	logger  zerolog.Logger
}

// NewClassroomHandler constructs the handler.
func NewClassroomHandler(svc service.ClassroomService, logger zerolog.Logger) *ClassroomHandler {
	return &ClassroomHandler{
		service: svc,
		logger:  logger.With().Str("component", "classroom_handler").Logger(),
	}
}

// Register attaches classroom routes to the router group.
func (h *ClassroomHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Patch("/:id", h.rename)
	router.Delete("/:id", h.delete)
	router.Put("/:id/students", h.addStudents)
	router.Delete("/:id/students/:studentId", h.removeStudent)
}

func (h *ClassroomHandler) create(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create classroom")
	}

	var payload dto.ClassroomRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Create(c.UserContext(), actor, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create classroom")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "classroom created", response)
}

func (h *ClassroomHandler) list(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list classrooms")
	}

	response, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list classrooms")
	}
	return utils.SendSuccess(c, "classrooms retrieved", response)
}

func (h *ClassroomHandler) rename(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to rename classroom")
	}

	var payload dto.ClassroomRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.service.Rename(c.UserContext(), actor, id, payload); err != nil {
		return sendServiceError(c, h.logger, err, "failed to rename classroom")
	}
	return utils.SendSuccess(c, "classroom renamed", nil)
}

func (h *ClassroomHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete classroom")
	}

	if err := h.service.Delete(c.UserContext(), actor, id, c.QueryBool("delete_students")); err != nil {
		return sendServiceError(c, h.logger, err, "failed to delete classroom")
	}
	return utils.SendSuccess(c, "classroom deleted", nil)
}

func (h *ClassroomHandler) addStudents(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to assign students")
	}

	var payload dto.ClassroomStudentsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.AddStudents(c.UserContext(), actor, id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to assign students")
	}
	return utils.SendSuccess(c, "students assigned", response)
}

func (h *ClassroomHandler) removeStudent(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid classroom id")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}
	actor, err := actorFromContext(c)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to remove student")
	}

	if err := h.service.RemoveStudent(c.UserContext(), actor, id, studentID); err != nil {
		return sendServiceError(c, h.logger, err, "failed to remove student")
	}
	return utils.SendSuccess(c, "student removed", nil)
}
