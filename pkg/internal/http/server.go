package http

import (
	"strings"

	"git.solsynth.dev/hypernet/polls/pkg/internal/http/api"
	"git.solsynth.dev/hypernet/polls/pkg/internal/http/exts"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/idempotency"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type HTTPApp struct {
	app *fiber.App
}

// NewConfig builds the fiber config. X-Forwarded-For is only honoured from
// the addresses listed in security.trusted_proxies.
func NewConfig() fiber.Config {
	return fiber.Config{
		DisableStartupMessage:   true,
		EnableIPValidation:      true,
		ServerHeader:            "Hypernet.Polls",
		AppName:                 "Hypernet.Polls",
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          viper.GetStringSlice("security.trusted_proxies"),
		JSONEncoder:             jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:             jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
		BodyLimit:               1 * 1024 * 1024,
		EnablePrintRoutes:       viper.GetBool("debug.print_routes"),
		ErrorHandler:            exts.ErrorHandler,
	}
}

func NewServer() *HTTPApp {
	app := fiber.New(NewConfig())

	cookieKey := viper.GetString("security.cookie_key")
	if len(cookieKey) == 0 {
		cookieKey = encryptcookie.GenerateKey()
		log.Warn().Msg("No cookie key configured, generated a temporary one. Participant cookies will not survive a restart.")
	}

	Mount(app, cookieKey)

	return &HTTPApp{app}
}

// Mount installs the middleware chain and every route on app.
func Mount(app *fiber.App, cookieKey string) {
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowCredentials: true,
		AllowMethods: strings.Join([]string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodDelete,
			fiber.MethodHead,
			fiber.MethodOptions,
			fiber.MethodPatch,
		}, ","),
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
	}))
	app.Use(logger.New(logger.Config{
		Format: "${status} | ${latency} | ${method} ${path}\n",
		Output: log.Logger,
	}))
	app.Use(idempotency.New(idempotency.Config{
		KeepResponseHeaders: []string{fiber.HeaderContentType},
	}))
	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: cookieKey,
	}))
	app.Use(exts.ContextMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	api.MapControllers(app, "/api")
}

func (v *HTTPApp) Listen() {
	if err := v.app.Listen(viper.GetString("bind")); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when starting server...")
	}
}

func (v *HTTPApp) Shutdown() error {
	return v.app.Shutdown()
}
