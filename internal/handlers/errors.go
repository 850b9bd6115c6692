package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/video-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/video-summarizer/internal/storage"
	"github.com/codebuildervaibhav/video-summarizer/internal/summarization"
	"github.com/codebuildervaibhav/video-summarizer/internal/transcription"
)

// writeError maps pipeline errors to a JSON body and status code.
func writeError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	body := fiber.Map{
		"error": err.Error(),
		"code":  code,
	}

	var convErr *transcription.ConversionError
	if errors.As(err, &convErr) {
		body["stderr"] = convErr.Stderr
		body["exit_code"] = convErr.ExitCode
	}
	return c.Status(status).JSON(body)
}

func classify(err error) (int, string) {
	var (
		convErr  *transcription.ConversionError
		emptyErr *transcription.EmptyOutputError
		transErr *transcription.TranscriptionError
		sumErr   *summarization.SummarizationError
		notReady *pipeline.StageNotReadyError
		fiberErr *fiber.Error
	)

	switch {
	case errors.Is(err, pipeline.ErrSessionNotFound):
		return fiber.StatusNotFound, "ERR_SESSION_NOT_FOUND"
	case errors.Is(err, pipeline.ErrSessionBusy):
		return fiber.StatusConflict, "ERR_SESSION_BUSY"
	case errors.As(err, &notReady):
		return fiber.StatusConflict, "ERR_STAGE_NOT_READY"
	case errors.Is(err, pipeline.ErrMediaTooLarge):
		return fiber.StatusRequestEntityTooLarge, "ERR_FILE_TOO_LARGE"
	case errors.Is(err, transcription.ErrUnsupportedMedia):
		return fiber.StatusUnsupportedMediaType, "ERR_INVALID_FORMAT"
	case errors.Is(err, pipeline.ErrInvalidOption):
		return fiber.StatusBadRequest, "ERR_INVALID_OPTION"
	case errors.Is(err, storage.ErrDriveNotAuthorized):
		return fiber.StatusServiceUnavailable, "ERR_DRIVE_NOT_AUTHORIZED"
	case errors.As(err, &convErr):
		return fiber.StatusUnprocessableEntity, "ERR_CONVERSION_FAILED"
	case errors.As(err, &emptyErr):
		return fiber.StatusUnprocessableEntity, "ERR_EMPTY_OUTPUT"
	case errors.Is(err, summarization.ErrEmptyInput):
		return fiber.StatusUnprocessableEntity, "ERR_EMPTY_INPUT"
	case errors.As(err, &sumErr):
		return fiber.StatusBadGateway, "ERR_SUMMARIZATION_FAILED"
	case errors.As(err, &transErr):
		return fiber.StatusBadGateway, "ERR_TRANSCRIPTION_FAILED"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "ERR_TIMEOUT"
	case errors.As(err, &fiberErr):
		return fiberErr.Code, "ERR_REQUEST"
	}
	return fiber.StatusInternalServerError, "ERR_INTERNAL"
}

func badRequest(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
		"code":  code,
	})
}
