package syncapi

import (
	"errors"

	"ftc-sync/core/logger"
	"ftc-sync/core/reconcile"
	"ftc-sync/feature/pipeline"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the sync status API.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the status API routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/health", h.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	group := app.Group("/runs")
	group.Get("/", h.HandleListRuns)
	group.Get("/:entity", h.HandleGetRun)
	group.Post("/:entity", h.HandleTriggerRun)
}

// HandleHealth reports whether the database is reachable.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	if err := h.service.Health(c.UserContext()); err != nil {
		logger.WithRayID(h.service.logger, c).Warn("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleListRuns returns the last run outcome of every entity type.
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	return c.JSON(h.service.runner.Last())
}

// HandleGetRun returns the last run outcome of one entity type.
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	status, ok := h.service.runner.LastFor(c.Params("entity"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no run recorded for " + c.Params("entity"),
		})
	}
	return c.JSON(status)
}

// HandleTriggerRun runs an entity type now and returns its summaries.
// Query parameters: season, event (match runs only), dry_run.
func (h *Handler) HandleTriggerRun(c *fiber.Ctx) error {
	entity := c.Params("entity")
	l := logger.WithRayID(h.service.logger, c)

	scope := reconcile.Scope{
		Season:    c.QueryInt("season", 0),
		EventCode: c.Query("event"),
	}
	dryRun := c.QueryBool("dry_run", false)

	l.Info("Manual sync requested",
		zap.String("entity", entity),
		zap.Int("season", scope.Season),
		zap.Bool("dry_run", dryRun),
	)

	summaries, err := h.service.Trigger(c.UserContext(), entity, scope, dryRun)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"summaries": summaries})
	case errors.Is(err, pipeline.ErrUnknownEntity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pipeline.ErrBusy):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		l.Error("Manual sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":     err.Error(),
			"summaries": summaries,
		})
	}
}
