package api

import (
	"errors"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func submitPoll(c *fiber.Ctx) error {
	var data struct {
		OptionID uint `json:"option_id" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	participant, err := exts.ResolveParticipant(c)
	if err != nil {
		return err
	}

	submission, err := services.SubmitToPoll(services.SubmissionRequest{
		PollRef:     c.Params("pollRef"),
		OptionID:    data.OptionID,
		Participant: participant,
		Now:         time.Now(),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(submission)
}

func getMySubmission(c *fiber.Ctx) error {
	poll, err := services.GetPollByRef(c.Params("pollRef"))
	if err != nil {
		return err
	}

	participant, err := exts.ResolveParticipant(c)
	if err != nil {
		return err
	}

	submission, err := services.GetParticipantSubmission(poll, participant)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "you have not answered this poll yet")
	} else if err != nil {
		return err
	}

	return c.JSON(submission)
}
