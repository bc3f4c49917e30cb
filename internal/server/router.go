package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Vampire/setup-wsl-sub000/internal/cache"
	"github.com/Vampire/setup-wsl-sub000/internal/server/routes"
)

// Namespace 是内容缓存在磁盘上的命名空间目录。
const Namespace = "content"

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger    *logrus.Logger
	Store     cache.Store
	Metrics   *Metrics
	BodyLimit int
}

const contextKeyRequestID = "_setupwsl_request_id"

// NewApp builds the content-cache Fiber application with request IDs,
// panic recovery and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     opts.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	handler := &cacheHandler{store: opts.Store, logger: opts.Logger, metrics: opts.Metrics}

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	app.Get("/cache/:key", handler.get)
	app.Head("/cache/:key", handler.get)
	app.Put("/cache/:key", handler.put)
	app.Delete("/cache/:key", handler.remove)
	routes.RegisterDistributionRoutes(app)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写回 X-Request-ID 头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
