package exts

import (
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

const ParticipantCookie = "polls_participant"

// EnsureParticipantToken returns the anonymous participant token of the browser,
// issuing a new long lived cookie on first contact.
func EnsureParticipantToken(c *fiber.Ctx) (string, error) {
	if token := c.Cookies(ParticipantCookie); len(token) > 0 {
		return token, nil
	}

	token, err := services.NewParticipantToken()
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     ParticipantCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().AddDate(1, 0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return token, nil
}

func ResolveParticipant(c *fiber.Ctx) (services.Participant, error) {
	accountID := GetAccountID(c)
	if accountID != nil {
		return services.ResolveParticipant(services.ParticipantContext{AccountID: accountID}), nil
	}

	token, err := EnsureParticipantToken(c)
	if err != nil {
		return services.Participant{}, err
	}
	return services.ResolveParticipant(services.ParticipantContext{
		RemoteAddr: c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
		Token:      token,
	}), nil
}
