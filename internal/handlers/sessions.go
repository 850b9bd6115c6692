package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/video-summarizer/internal/logging"
	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/render"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Exporter uploads finished documents somewhere outside the server.
type Exporter interface {
	Export(ctx context.Context, base string, files []storage.ExportFile) (string, error)
}

// API serves the session endpoints.
type API struct {
	orch     *pipeline.Orchestrator
	files    *cleanup.TempFiles
	exporter Exporter // nil when Drive is not configured
	logs     *logging.LogBuffer
	logger   *zap.Logger
}

// NewAPI creates the handler set. exporter and logs may be nil.
func NewAPI(orch *pipeline.Orchestrator, files *cleanup.TempFiles, exporter Exporter, logs *logging.LogBuffer, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		orch:     orch,
		files:    files,
		exporter: exporter,
		logs:     logs,
		logger:   logger,
	}
}

// Register mounts every route on app.
func (a *API) Register(app *fiber.App) {
	app.Get("/health", a.Health)
	app.Get("/logs", a.Logs)

	api := app.Group("/api")
	api.Get("/options", a.Options)
	api.Post("/sessions", a.CreateSession)
	api.Get("/sessions/:id", a.GetSession)
	api.Delete("/sessions/:id", a.DeleteSession)
	api.Post("/sessions/:id/upload", a.Upload)
	api.Post("/sessions/:id/extract", a.Extract)
	api.Post("/sessions/:id/transcribe", a.Transcribe)
	api.Post("/sessions/:id/summarize", a.Summarize)
	api.Get("/sessions/:id/audio", a.Audio)
	api.Get("/sessions/:id/transcription", a.TranscriptionText)
	api.Get("/sessions/:id/summary", a.SummaryDocument)
	api.Post("/sessions/:id/export", a.Export)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id/progress", a.Progress())
}

func (a *API) CreateSession(c *fiber.Ctx) error {
	sess := a.orch.Store().Create()
	a.logger.Info("session created", zap.String("session", sess.ID))
	return c.Status(fiber.StatusCreated).JSON(sess.Info())
}

func (a *API) GetSession(c *fiber.Ctx) error {
	sess, err := a.orch.Store().Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sess.Info())
}

func (a *API) DeleteSession(c *fiber.Ctx) error {
	if err := a.orch.Store().Delete(c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type extractRequest struct {
	Threads int `json:"threads"`
}

// Extract runs ffmpeg on the uploaded video.
func (a *API) Extract(c *fiber.Ctx) error {
	var req extractRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "ERR_INVALID_BODY", "Invalid request body")
	}
	id := c.Params("id")
	if _, err := a.orch.Extract(c.UserContext(), id, req.Threads); err != nil {
		return writeError(c, err)
	}
	return a.sessionInfo(c, id)
}

type transcribeRequest struct {
	Model    string `json:"model"`
	Language string `json:"language"`
}

func (a *API) Transcribe(c *fiber.Ctx) error {
	var req transcribeRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "ERR_INVALID_BODY", "Invalid request body")
	}
	id := c.Params("id")
	if _, err := a.orch.Transcribe(c.UserContext(), id, req.Model, req.Language); err != nil {
		return writeError(c, err)
	}
	return a.sessionInfo(c, id)
}

type summarizeRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

func (a *API) Summarize(c *fiber.Ctx) error {
	var req summarizeRequest
	if err := parseOptional(c, &req); err != nil {
		return badRequest(c, "ERR_INVALID_BODY", "Invalid request body")
	}
	id := c.Params("id")
	if _, err := a.orch.Summarize(c.UserContext(), id, req.Model, req.Prompt); err != nil {
		return writeError(c, err)
	}
	return a.sessionInfo(c, id)
}

// Audio streams the extracted WAV for playback or download.
func (a *API) Audio(c *fiber.Ctx) error {
	sess, err := a.orch.Store().Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	audio := sess.Audio()
	if audio == nil {
		return writeError(c, &pipeline.StageNotReadyError{Stage: "audio download", Needs: "extracted audio"})
	}

	c.Set(fiber.HeaderContentType, "audio/wav")
	if c.Query("download") != "" {
		c.Attachment(downloadName(sess, "audio", ".wav"))
	}
	return c.Send(audio.Data)
}

// TranscriptionText downloads the transcription as plain text.
func (a *API) TranscriptionText(c *fiber.Ctx) error {
	sess, err := a.orch.Store().Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	tr := sess.Transcription()
	if tr == nil {
		return writeError(c, &pipeline.StageNotReadyError{Stage: "transcription download", Needs: "a transcription"})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Attachment(downloadName(sess, "transcription", ".txt"))
	return c.SendString(tr.Text)
}

// SummaryDocument downloads the summary as txt, md, html or docx.
func (a *API) SummaryDocument(c *fiber.Ctx) error {
	sess, err := a.orch.Store().Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	sum := sess.Summary()
	if sum == nil {
		return writeError(c, &pipeline.StageNotReadyError{Stage: "summary download", Needs: "a summary"})
	}

	title := documentTitle(sess)
	format := strings.ToLower(c.Query("format", "txt"))
	switch format {
	case "txt":
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		c.Attachment(downloadName(sess, "summary", ".txt"))
		return c.SendString(sum.Text)

	case "md":
		c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
		c.Attachment(downloadName(sess, "summary", ".md"))
		return c.SendString(storage.SummaryMarkdown(title, sum))

	case "html":
		page, err := render.HTMLDocument(title, sum.Text)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(page)

	case "docx":
		data, err := a.renderDOCX(title, sum.Text)
		if err != nil {
			a.logger.Error("docx render failed", zap.String("session", sess.ID), zap.Error(err))
			return writeError(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		c.Attachment(downloadName(sess, "summary", ".docx"))
		return c.Send(data)
	}
	return badRequest(c, "ERR_INVALID_FORMAT", fmt.Sprintf("Unknown format %q (want txt|md|html|docx)", format))
}

func (a *API) renderDOCX(title, md string) ([]byte, error) {
	tf, err := a.files.Reserve("summary", ".docx")
	if err != nil {
		return nil, err
	}
	defer tf.Release()

	if err := render.DOCX(title, md, tf.Path); err != nil {
		return nil, err
	}
	return os.ReadFile(tf.Path)
}

func (a *API) sessionInfo(c *fiber.Ctx, id string) error {
	sess, err := a.orch.Store().Get(id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(sess.Info())
}

// parseOptional accepts an empty body as all defaults.
func parseOptional(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(out)
}

// documentTitle names exports after the uploaded video.
func documentTitle(sess *pipeline.Session) string {
	if m := sess.Media(); m != nil {
		base := filepath.Base(m.Filename)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "video"
}

func downloadName(sess *pipeline.Session, kind, ext string) string {
	return fmt.Sprintf("%s-%s%s", kind, documentTitle(sess), ext)
}

// modelSizes renders the accepted Whisper sizes for /api/options.
func modelSizes() []string {
	out := make([]string, 0, len(types.ModelSizes))
	for _, m := range types.ModelSizes {
		out = append(out, string(m))
	}
	return out
}
