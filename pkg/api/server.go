// Package api exposes the scoring pipeline over HTTP.
//
// The surface is small: analyze one text, analyze a batch, report stats,
// and a health probe. Validation failures are the caller's fault and come
// back as 400; a degraded pipeline still answers 200 with a local verdict,
// so the API never turns tier outages into 5xx noise.
package api

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/SurakshaAI/shield/pkg/config"
	"github.com/SurakshaAI/shield/pkg/fusion"
	"github.com/SurakshaAI/shield/pkg/textproc"
)

// Version is the API version reported by /health.
const Version = "1.0.0"

type analyzeRequest struct {
	Text string `json:"text"`
}

type batchRequest struct {
	Texts []string `json:"texts"`
}

// NewApp builds the fiber application around a pipeline.
func NewApp(cfg *config.Config, pipeline *fusion.Pipeline) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "SurakshaAI Shield",
	})

	// Request log with a short correlation id
	app.Use(func(c fiber.Ctx) error {
		id := uuid.NewString()[:8]
		start := time.Now()
		err := c.Next()
		log.Printf("[INFO] %s %s %s -> %d (%.1fms)",
			id, c.Method(), c.Path(), c.Response().StatusCode(),
			float64(time.Since(start).Microseconds())/1000.0)
		return err
	})

	app.Get("/health", func(c fiber.Ctx) error {
		stats := pipeline.Stats()
		return c.JSON(fiber.Map{
			"status":         "ok",
			"version":        Version,
			"model_ready":    stats.ModelReady,
			"semantic_ready": stats.SemanticReady,
			"oracle":         stats.OracleProvider,
		})
	})

	app.Post("/analyze", func(c fiber.Ctx) error {
		var req analyzeRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if req.Text == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text field is required"})
		}

		result, err := pipeline.Classify(c.Context(), req.Text)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationMessage(err, cfg)})
		}
		return c.JSON(result)
	})

	app.Post("/batch-analyze", func(c fiber.Ctx) error {
		var req batchRequest
		if err := c.Bind().Body(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
		if len(req.Texts) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "texts field is required"})
		}

		items, err := pipeline.ClassifyBatch(c.Context(), req.Texts)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"count": len(items), "results": items})
	})

	app.Get("/stats", func(c fiber.Ctx) error {
		return c.JSON(pipeline.Stats())
	})

	return app
}

// validationMessage keeps client-facing errors specific without leaking
// internals.
func validationMessage(err error, cfg *config.Config) string {
	switch {
	case errors.Is(err, textproc.ErrEmptyText):
		return "text is empty"
	case errors.Is(err, textproc.ErrTextTooLong):
		return fmt.Sprintf("text exceeds the maximum length of %d characters", cfg.MaxTextLength)
	default:
		return err.Error()
	}
}
