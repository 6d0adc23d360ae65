package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filelinker/internal/model"
	"filelinker/internal/service"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StatsProvider reports registry totals.
type StatsProvider interface {
	Stats(ctx context.Context) (model.Stats, error)
}

// ManifestLoader reads backed-up manifests by share code.
type ManifestLoader interface {
	Enabled() bool
	Load(ctx context.Context, code string) (*service.Manifest, error)
}

// Deps groups what the ops routes read from.
type Deps struct {
	DB        Pinger
	Stats     StatsProvider
	Manifests ManifestLoader
	Gatherer  prometheus.Gatherer
}

// RegisterRoutes attaches the ops routes to app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	app.Get("/metrics", Metrics(d.Gatherer))
	app.Get("/stats", Stats(d.Stats))
	if d.Manifests != nil {
		app.Get("/manifests/:code", GetManifest(d.Manifests))
	}
}

// HealthCheck pings the database. A nil db means in-memory storage, which is always healthy.
func HealthCheck(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics serves the Prometheus exposition format for g.
func Metrics(g prometheus.Gatherer) fiber.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// Stats returns file, ban and batch totals.
func Stats(p StatsProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := p.Stats(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(s)
	}
}

// GetManifest returns the backed-up manifest for a share code.
func GetManifest(l ManifestLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Enabled() {
			return writeError(c, fiber.StatusServiceUnavailable, "BACKUP_DISABLED", "backups are not configured")
		}
		m, err := l.Load(c.UserContext(), c.Params("code"))
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "manifest not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(m)
	}
}
