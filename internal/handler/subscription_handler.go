package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// SubscriptionHandler exposes plans and the caller's verification quota.
type SubscriptionHandler struct {
	service service.SubscriptionService
	logger  zerolog.Logger
}

// NewSubscriptionHandler constructs the handler.
func NewSubscriptionHandler(svc service.SubscriptionService, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: svc,
		logger:  logger.With().Str("component", "subscription_handler").Logger(),
	}
}

// RegisterPlans attaches the public plan catalogue.
func (h *SubscriptionHandler) RegisterPlans(router fiber.Router) {
	router.Get("/", h.plans)
}

// RegisterSubscriptions attaches routes that need an authenticated user.
func (h *SubscriptionHandler) RegisterSubscriptions(router fiber.Router) {
	router.Get("/me", h.current)
}

func (h *SubscriptionHandler) plans(c *fiber.Ctx) error {
	response, err := h.service.Plans(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list plans")
	}
	return utils.SendSuccess(c, "plans retrieved", response)
}

func (h *SubscriptionHandler) current(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "unauthorized")
	}

	response, err := h.service.Current(c.UserContext(), userID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load subscription")
	}
	return utils.SendSuccess(c, "subscription retrieved", response)
}
