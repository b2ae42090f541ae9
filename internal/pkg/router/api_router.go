package router

import (
	apiv1 "github.com/StefanHaberl/VoiceFox/internal/api/v1"
	"github.com/StefanHaberl/VoiceFox/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	apiServer *apiv1.APIServer
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes, all behind API key auth except ping
	v1 := api.Group("/v1")
	apiServer := h.apiServer

	v1.Get("/ping", apiServer.GetPing)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())

	authed.Post("/audio", apiServer.PostAudioFile)

	authed.Post("/conversions", apiServer.PostConversion)
	authed.Get("/conversions", apiServer.GetConversions)
	authed.Get("/conversions/:uuid", apiServer.GetConversion)
	authed.Get("/conversions/:uuid/status", apiServer.GetConversionStatus)

	authed.Get("/models", apiServer.GetVoiceModels)

	authed.Post("/webhooks", apiServer.PostSubscription)
	authed.Get("/webhooks", apiServer.GetSubscriptions)
	authed.Patch("/webhooks/:uuid", apiServer.PatchSubscription)
	authed.Delete("/webhooks/:uuid", apiServer.DeleteSubscription)
	authed.Get("/webhooks/:uuid/deliveries", apiServer.GetSubscriptionDeliveries)
}

func NewApiRouter(apiServer *apiv1.APIServer) *ApiRouter {
	return &ApiRouter{apiServer: apiServer}
}
