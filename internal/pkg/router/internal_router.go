package router

import (
	apiv1 "github.com/StefanHaberl/VoiceFox/internal/api/v1"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/health"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/middleware"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/workers"

	"github.com/gofiber/fiber/v2"
)

// InternalRouter carries the inference callback channel and the health
// surface. Neither is part of the public, API-key protected v1 group.
type InternalRouter struct {
	apiServer *apiv1.APIServer
}

func (h InternalRouter) InstallRouter(app *fiber.App) {
	apiServer := h.apiServer

	internal := app.Group("/internal", middleware.InternalKeyAuthMiddleware())
	internal.Post("/inference/callback", apiServer.PostInferenceCallback)
	internal.Post("/audio/:uuid/preprocessed", apiServer.PostAudioPreprocessed)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"workers_running": workers.GetManager().IsRunning(),
		})
	})

	app.Get("/health/engines", func(c *fiber.Ctx) error {
		engines := fiber.Map{}
		overall := health.StatusHealthy
		for _, name := range []string{workers.EngineDispatcher, workers.EngineWebhookDelivery} {
			snapshot, err := health.GetEngineHealth(name)
			if err != nil {
				engines[name] = fiber.Map{"status": health.StatusUnhealthy}
				overall = health.StatusUnhealthy
				continue
			}
			engines[name] = snapshot
			if snapshot.Status == health.StatusUnhealthy {
				overall = health.StatusUnhealthy
			} else if snapshot.Status == health.StatusDegraded && overall == health.StatusHealthy {
				overall = health.StatusDegraded
			}
		}

		code := fiber.StatusOK
		if overall == health.StatusUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{"status": overall, "engines": engines})
	})
}

func NewInternalRouter(apiServer *apiv1.APIServer) *InternalRouter {
	return &InternalRouter{apiServer: apiServer}
}
