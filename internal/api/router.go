package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/openedx/edxoffline/internal/api/controllers"
	"github.com/openedx/edxoffline/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	downloads := &controllers.DownloadsController{App: app}
	courses := &controllers.CoursesController{App: app}
	settings := &controllers.SettingsController{App: app}
	events := &controllers.EventsController{App: app}

	e.GET("/api/downloads", downloads.List)
	e.POST("/api/downloads/:id/cancel", downloads.Cancel)
	e.DELETE("/api/downloads/:id", downloads.Delete)

	e.GET("/api/courses/:courseId/status", courses.Status)
	e.POST("/api/courses/:courseId/sync", courses.Sync)
	e.POST("/api/courses/:courseId/downloads", courses.Download)
	e.DELETE("/api/courses/:courseId/downloads", courses.Remove)

	e.GET("/api/settings/network", settings.GetNetwork)
	e.PUT("/api/settings/network", settings.PutNetwork)

	// Server-sent events: ledger snapshots, progress, failures and messages
	e.GET("/api/events", events.Stream)
}
