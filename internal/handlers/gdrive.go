package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/render"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
)

// Export uploads the transcription and, when present, the summary to Google Drive.
func (a *API) Export(c *fiber.Ctx) error {
	if a.exporter == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Google Drive export is not configured",
			"code":  "ERR_DRIVE_UNAVAILABLE",
		})
	}

	id := c.Params("id")
	sess, err := a.orch.Store().Get(id)
	if err != nil {
		return writeError(c, err)
	}
	tr := sess.Transcription()
	if tr == nil {
		return writeError(c, &pipeline.StageNotReadyError{Stage: "export", Needs: "a transcription"})
	}

	title := documentTitle(sess)
	files := []storage.ExportFile{{
		Name:     fmt.Sprintf("transcription-%s.txt", title),
		MimeType: "text/plain",
		Data:     []byte(tr.Text),
	}}

	if sum := sess.Summary(); sum != nil {
		files = append(files, storage.ExportFile{
			Name:     fmt.Sprintf("summary-%s.md", title),
			MimeType: "text/markdown",
			Data:     []byte(storage.SummaryMarkdown(title, sum)),
		})
		if doc, err := a.renderDOCX(title, sum.Text); err == nil {
			files = append(files, storage.ExportFile{
				Name:     fmt.Sprintf("summary-%s.docx", title),
				MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				Data:     doc,
			})
		} else {
			a.logger.Warn("skipping docx export", zap.String("session", id), zap.Error(err))
		}
		if page, err := render.HTMLDocument(title, sum.Text); err == nil {
			files = append(files, storage.ExportFile{
				Name:     fmt.Sprintf("summary-%s.html", title),
				MimeType: "text/html",
				Data:     []byte(page),
			})
		}
	}

	link, err := a.exporter.Export(c.UserContext(), title, files)
	if err != nil {
		a.logger.Error("drive export failed", zap.String("session", id), zap.Error(err))
		if _, code := classify(err); code == "ERR_INTERNAL" {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "ERR_UPLOAD_FAILED",
			})
		}
		return writeError(c, err)
	}

	a.logger.Info("exported to drive", zap.String("session", id), zap.String("link", link))
	return c.JSON(fiber.Map{
		"link":  link,
		"files": len(files),
	})
}
