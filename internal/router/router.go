package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	WorkHandler         *handler.WorkHandler
	TaskHandler         *handler.TaskHandler
	ClassroomHandler    *handler.ClassroomHandler
	SubscriptionHandler *handler.SubscriptionHandler
	FileHandler         *handler.FileHandler
	CommentHandler      *handler.CommentHandler
	ActivityHandler     *handler.ActivityHandler
	DependencyChecks    map[string]handler.DependencyCheck
	JWTMiddleware       fiber.Handler
	// AIRateLimit caps recognition requests per teacher and minute. Zero disables the limit.
	AIRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DependencyChecks))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.WorkHandler != nil {
		works := api.Group("/works", jwtMiddleware)
		if deps.AIRateLimit > 0 {
			deps.WorkHandler.WithAILimiter(middleware.RateLimit("ai-verification", deps.AIRateLimit, time.Minute))
		}
		deps.WorkHandler.Register(works)

		// Comment routes guard the teacher role per handler so student work routes stay reachable.
		if deps.CommentHandler != nil {
			deps.CommentHandler.Register(works)
		}
	}

	if deps.TaskHandler != nil {
		tasks := api.Group("/tasks", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleTeacher))
		deps.TaskHandler.Register(tasks)
	}

	if deps.ClassroomHandler != nil {
		classrooms := api.Group("/classrooms", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleTeacher))
		deps.ClassroomHandler.Register(classrooms)
	}

	if deps.SubscriptionHandler != nil {
		deps.SubscriptionHandler.RegisterPlans(api.Group("/plans"))
		subscriptions := api.Group("/subscriptions", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleTeacher))
		deps.SubscriptionHandler.RegisterSubscriptions(subscriptions)
	}

	if deps.FileHandler != nil {
		files := api.Group("/files", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent, middleware.AuthRoleTeacher))
		deps.FileHandler.Register(files)
	}

	if deps.ActivityHandler != nil {
		activity := api.Group("/admin/activity", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
		deps.ActivityHandler.Register(activity)
	}
}
