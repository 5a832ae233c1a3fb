package api

import (
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

type pollResponse struct {
	models.Poll

	IsOpen       bool                 `json:"is_open"`
	IsManager    bool                 `json:"is_manager"`
	HasSubmitted bool                 `json:"has_submitted"`
	Metric       *services.PollMetric `json:"metric,omitempty"`
	FinalMetric  *services.PollMetric `json:"final_metric,omitempty"`
	AdminKey     string               `json:"admin_key,omitempty"`
}

// getManagedPoll resolves the poll in the path and makes sure the caller may manage it.
func getManagedPoll(c *fiber.Ctx) (models.Poll, error) {
	poll, err := services.GetPollByRef(c.Params("pollRef"))
	if err != nil {
		return poll, err
	}
	if !services.CanManagePoll(poll, exts.GetAccountID(c), c.Get("X-Admin-Key")) {
		return poll, fiber.NewError(fiber.StatusForbidden, "you are not allowed to manage this poll")
	}
	return poll, nil
}

func listPolls(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)

	items, err := services.ListPolls(services.PollFilter{
		Scope:          c.Query("scope"),
		Language:       c.Query("language"),
		ExcludeOwnerID: exts.GetAccountID(c),
		Page:           page,
		Now:            time.Now(),
	})
	if err != nil {
		return err
	}

	return c.JSON(items)
}

func listMyPolls(c *fiber.Ctx) error {
	if err := exts.EnsureAuthenticated(c); err != nil {
		return err
	}

	items, err := services.ListPolls(services.PollFilter{
		Scope:   c.Query("scope"),
		OwnerID: exts.GetAccountID(c),
		Page:    c.QueryInt("page", 1),
		Now:     time.Now(),
	})
	if err != nil {
		return err
	}

	return c.JSON(items)
}

func getPoll(c *fiber.Ctx) error {
	poll, err := services.GetPollByRef(c.Params("pollRef"))
	if err != nil {
		return err
	}

	participant, err := exts.ResolveParticipant(c)
	if err != nil {
		return err
	}
	submitted, err := services.HasParticipantSubmitted(poll, participant)
	if err != nil {
		return err
	}

	resp := pollResponse{
		Poll:         poll,
		IsOpen:       services.IsPollOpen(poll, time.Now()),
		IsManager:    services.CanManagePoll(poll, exts.GetAccountID(c), c.Get("X-Admin-Key")),
		HasSubmitted: submitted,
	}
	if !resp.IsOpen || poll.ShowResultsWhileVoting || resp.IsManager {
		metric, err := services.GetPollMetric(poll)
		if err != nil {
			return err
		}
		resp.Metric = &metric
		if resp.FinalMetric, err = services.GetFinalPollMetric(poll); err != nil {
			return err
		}
	}

	return c.JSON(resp)
}

func createPoll(c *fiber.Ctx) error {
	var data struct {
		Question               string    `json:"question" validate:"required"`
		Deadline               time.Time `json:"deadline" validate:"required"`
		Options                []string  `json:"options" validate:"required"`
		ShowResultsWhileVoting bool      `json:"show_results_while_voting"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	owner := exts.GetAccountID(c)
	poll, err := services.NewPoll(services.PollDraft{
		Question:               data.Question,
		Deadline:               data.Deadline,
		Options:                data.Options,
		ShowResultsWhileVoting: data.ShowResultsWhileVoting,
	}, owner, time.Now())
	if err != nil {
		return err
	}

	resp := pollResponse{
		Poll:      poll,
		IsOpen:    true,
		IsManager: true,
	}
	if owner == nil {
		resp.AdminKey = services.GeneratePollAdminKey(poll.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func closePoll(c *fiber.Ctx) error {
	poll, err := getManagedPoll(c)
	if err != nil {
		return err
	}

	if poll, err = services.ClosePoll(poll, time.Now()); err != nil {
		return err
	}

	return c.JSON(pollResponse{
		Poll:      poll,
		IsOpen:    false,
		IsManager: true,
	})
}

func deletePoll(c *fiber.Ctx) error {
	poll, err := getManagedPoll(c)
	if err != nil {
		return err
	}

	if err := services.DeletePoll(poll); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func addPollOption(c *fiber.Ctx) error {
	poll, err := getManagedPoll(c)
	if err != nil {
		return err
	}

	var data struct {
		Text string `json:"text" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	option, err := services.AddPollOption(poll, data.Text)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(option)
}

func removePollOption(c *fiber.Ctx) error {
	poll, err := getManagedPoll(c)
	if err != nil {
		return err
	}

	optionId, err := c.ParamsInt("optionId")
	if err != nil || optionId <= 0 {
		return services.ErrOptionNotFound
	}

	if err := services.RemovePollOption(poll, uint(optionId)); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
