package exts

import (
	"errors"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const (
	SessionCookie = "polls_session"

	localsAccountID = "account_id"
	localsAccount   = "account"
)

// ContextMiddleware reads the session from the cookie or a bearer token.
// Invalid tokens and tokens of deleted accounts are ignored, the request simply stays anonymous.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(SessionCookie)
		if header := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
		if len(raw) == 0 {
			return c.Next()
		}

		id, err := services.ParseSessionToken(raw)
		if err != nil {
			return c.Next()
		}
		account, err := services.GetAccount(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				ClearSessionCookie(c)
			} else {
				log.Warn().Err(err).Uint("account", id).Msg("Unable to load session account...")
			}
			return c.Next()
		}

		c.Locals(localsAccountID, account.ID)
		c.Locals(localsAccount, account)
		return c.Next()
	}
}

func GetAccountID(c *fiber.Ctx) *uint {
	if id, ok := c.Locals(localsAccountID).(uint); ok {
		return &id
	}
	return nil
}

func EnsureAuthenticated(c *fiber.Ctx) error {
	if GetAccountID(c) == nil {
		return fiber.NewError(fiber.StatusUnauthorized, "you need to sign in first")
	}
	return nil
}

// GetAccount loads the signed in account, failing like EnsureAuthenticated when there is none.
func GetAccount(c *fiber.Ctx) (models.Account, error) {
	id := GetAccountID(c)
	if id == nil {
		return models.Account{}, fiber.NewError(fiber.StatusUnauthorized, "you need to sign in first")
	}
	if account, ok := c.Locals(localsAccount).(models.Account); ok {
		return account, nil
	}
	account, err := services.GetAccount(*id)
	if err != nil {
		return account, fiber.NewError(fiber.StatusUnauthorized, "your account no longer exists")
	}
	return account, nil
}

func SetSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(viper.GetDuration("security.session_ttl")),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func ClearSessionCookie(c *fiber.Ctx) {
	c.ClearCookie(SessionCookie)
}
