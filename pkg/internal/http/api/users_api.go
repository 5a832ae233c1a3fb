package api

import (
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/http/exts"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

type sessionResponse struct {
	Account models.Account `json:"account"`
	Token   string         `json:"token"`
}

func startSession(c *fiber.Ctx, account models.Account, status int) error {
	token, err := services.NewSessionToken(account, time.Now())
	if err != nil {
		return err
	}
	exts.SetSessionCookie(c, token)

	return c.Status(status).JSON(sessionResponse{
		Account: account,
		Token:   token,
	})
}

func registerAccount(c *fiber.Ctx) error {
	var data struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	account, err := services.RegisterAccount(data.Email, data.Password)
	if err != nil {
		return err
	}

	return startSession(c, account, fiber.StatusCreated)
}

func signIn(c *fiber.Ctx) error {
	var data struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	account, err := services.AuthenticateAccount(data.Email, data.Password)
	if err != nil {
		return err
	}

	return startSession(c, account, fiber.StatusOK)
}

func signOut(c *fiber.Ctx) error {
	exts.ClearSessionCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}

func getMyAccount(c *fiber.Ctx) error {
	account, err := exts.GetAccount(c)
	if err != nil {
		return err
	}

	return c.JSON(account)
}

func updateMyAccount(c *fiber.Ctx) error {
	account, err := exts.GetAccount(c)
	if err != nil {
		return err
	}

	var data struct {
		CurrentPassword string  `json:"current_password" validate:"required"`
		Email           *string `json:"email"`
		Password        *string `json:"password"`
	}

	if err := exts.BindAndValidate(c, &data); err != nil {
		return err
	}

	account, err = services.UpdateAccount(account, services.AccountChanges{
		CurrentPassword: data.CurrentPassword,
		Email:           data.Email,
		Password:        data.Password,
	})
	if err != nil {
		return err
	}

	return c.JSON(account)
}

func deleteMyAccount(c *fiber.Ctx) error {
	account, err := exts.GetAccount(c)
	if err != nil {
		return err
	}

	if err := services.DeleteAccount(account); err != nil {
		return err
	}
	exts.ClearSessionCookie(c)

	return c.SendStatus(fiber.StatusNoContent)
}
