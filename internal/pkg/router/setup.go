package router

import (
	"github.com/gofiber/fiber/v2"

	apiv1 "github.com/StefanHaberl/VoiceFox/internal/api/v1"
)

// Router installs a group of routes on the app
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// one API server instance shared by both route groups
	apiServer := apiv1.NewAPIServer()
	setup(app, NewApiRouter(apiServer), NewInternalRouter(apiServer))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
