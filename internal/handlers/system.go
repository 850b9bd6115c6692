package handlers

import (
	"github.com/gofiber/fiber/v2"
)

const version = "1.0.0"

func (a *API) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"version":  version,
		"backend":  a.orch.Backend(),
		"sessions": a.orch.Store().Len(),
	})
}

// Logs returns the most recent server log lines.
func (a *API) Logs(c *fiber.Ctx) error {
	lines := []string{}
	if a.logs != nil {
		lines = a.logs.Lines()
	}
	return c.JSON(fiber.Map{
		"logs": lines,
	})
}

// Options lists what the UI can offer for each stage.
func (a *API) Options(c *fiber.Ctx) error {
	opts := a.orch.Options()
	return c.JSON(fiber.Map{
		"model_sizes":           modelSizes(),
		"default_model":         opts.DefaultModel,
		"languages":             opts.Languages,
		"default_language":      opts.DefaultLanguage,
		"summary_models":        a.orch.SummaryModels(),
		"default_summary_model": opts.DefaultSummaryModel,
		"default_prompt":        opts.DefaultPrompt,
		"default_threads":       opts.DefaultThreads,
		"max_threads":           opts.MaxThreads,
		"max_upload_bytes":      opts.MaxUploadBytes,
		"drive_export":          a.exporter != nil,
	})
}
