// Package bootstrap wires configuration into a running server.
package bootstrap

import (
	"strings"

	"support_inbox/adapter/in/http"
	"support_inbox/config"
	"support_inbox/core/service/inbox"
	"support_inbox/infra/middleware"
	"support_inbox/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	apiPrefix   = "/api/v1"
	maxBodySize = 256 * 1024
)

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("failed to initialize dependencies")
		return nil, nil, err
	}
	return NewRouter(deps), cleanup, nil
}

// NewRouter builds the Fiber app around deps.
func NewRouter(deps *Dependencies) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		AppName:               "support-inbox",

		// go-json for every request and response body
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          maxBodySize,
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.RequestLogger())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		// Streaming responses must not be buffered.
		Next: func(c *fiber.Ctx) bool { return strings.HasSuffix(c.Path(), "/events") },
	}))
	app.Use(cors.New(corsConfig(cfg)))

	http.NewHealthHandler(deps.Inbox, deps.Redis, deps.Hub).Register(app)

	api := app.Group(apiPrefix, middleware.NoStore(), middleware.ValidateContentType(), middleware.MaxBodySize(maxBodySize))

	sessionAuth := middleware.SessionAuth(deps.OAuth)
	guard := deps.Limiter.Handler()

	http.NewEmailHandler(deps.Inbox, sessionAuth, guard).Register(api)
	http.NewCustomerHandler(deps.Inbox, sessionAuth).Register(api)
	http.NewSettingsHandler(deps.Inbox).Register(api)
	http.NewSSEHandler(deps.Hub, deps.Inbox, logger.Default().Zerolog()).Register(api)
	http.NewGmailHandler(deps.Inbox, sessionAuth, guard).Register(api)
	http.NewOAuthHandler(http.OAuthHandlerConfig{
		OAuth:       deps.OAuth,
		Inbox:       deps.Inbox,
		Realtime:    deps.Hub,
		Auth:        sessionAuth,
		Sample:      func() *inbox.SampleData { return loadSample(cfg) },
		FrontendURL: cfg.FrontendURL,
	}).Register(api)

	if cfg.IsDevelopment() {
		RegisterDevRoutes(api, deps)
		logger.Info("development routes enabled under %s/dev", apiPrefix)
	}

	return app
}

// corsConfig allows credentials only with an explicit origin list.
func corsConfig(cfg *config.Config) cors.Config {
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	allowCredentials := true
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
			allowCredentials = false
		} else {
			allowOrigins = "http://localhost:3000,http://localhost:5173"
		}
	}
	return cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}
}
