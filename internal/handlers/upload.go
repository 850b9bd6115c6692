package handlers

import (
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Upload stores the multipart "file" field as the session's video.
func (a *API) Upload(c *fiber.Ctx) error {
	id := c.Params("id")

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "ERR_NO_FILE", "No file uploaded")
	}

	// Reject before buffering the whole file.
	if limit := a.orch.Options().MaxUploadBytes; limit > 0 && file.Size > limit {
		return writeError(c, fmt.Errorf("%w: %d bytes (max %d)", pipeline.ErrMediaTooLarge, file.Size, limit))
	}

	src, err := file.Open()
	if err != nil {
		a.logger.Error("failed to open uploaded file", zap.String("session", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_SAVE_FAILED",
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		a.logger.Error("failed to read uploaded file", zap.String("session", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read file",
			"code":  "ERR_SAVE_FAILED",
		})
	}

	media := &types.UploadedMedia{
		Filename:   file.Filename,
		MimeType:   file.Header.Get(fiber.HeaderContentType),
		Size:       int64(len(data)),
		Data:       data,
		UploadedAt: time.Now(),
	}
	if err := a.orch.Upload(c.UserContext(), id, media); err != nil {
		return writeError(c, err)
	}
	return a.sessionInfo(c, id)
}
