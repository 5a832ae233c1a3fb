package exts

import (
	"errors"

	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

var statusBySentinel = []lo.Tuple2[error, int]{
	{A: services.ErrPollNotFound, B: fiber.StatusNotFound},
	{A: services.ErrOptionNotFound, B: fiber.StatusNotFound},
	{A: services.ErrInvalidOption, B: fiber.StatusBadRequest},
	{A: services.ErrPollClosed, B: fiber.StatusForbidden},
	{A: services.ErrDuplicateSubmission, B: fiber.StatusConflict},
	{A: services.ErrSelfSubmissionForbidden, B: fiber.StatusForbidden},
	{A: services.ErrPollLocked, B: fiber.StatusConflict},
	{A: services.ErrInvalidCredentials, B: fiber.StatusUnauthorized},
}

// ErrorHandler turns every error a handler returns into the JSON error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := ErrorResponse{Message: err.Error()}

	var fe *fiber.Error
	var ve *services.ValidationError
	switch {
	case errors.As(err, &fe):
		status = fe.Code
		resp.Message = fe.Message
	case errors.As(err, &ve):
		status = fiber.StatusUnprocessableEntity
		resp.Fields = ve.Fields
	default:
		if match, ok := lo.Find(statusBySentinel, func(item lo.Tuple2[error, int]) bool {
			return errors.Is(err, item.A)
		}); ok {
			status = match.B
		}
	}

	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("An error occurred when handling request...")
		resp.Message = "something went wrong"
	}

	resp.Error = utils.StatusMessage(status)

	return c.Status(status).JSON(resp)
}
