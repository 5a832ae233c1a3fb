package api

import "github.com/gofiber/fiber/v2"

func MapControllers(app *fiber.App, baseURL string) {
	api := app.Group(baseURL)
	{
		users := api.Group("/users")
		{
			users.Post("/", registerAccount)
			users.Post("/sessions", signIn)
			users.Delete("/sessions", signOut)
			users.Get("/me", getMyAccount)
			users.Patch("/me", updateMyAccount)
			users.Delete("/me", deleteMyAccount)
			users.Get("/me/polls", listMyPolls)
		}

		polls := api.Group("/polls")
		{
			polls.Get("/", listPolls)
			polls.Post("/", createPoll)
			polls.Get("/:pollRef", getPoll)
			polls.Delete("/:pollRef", deletePoll)
			polls.Post("/:pollRef/close", closePoll)
			polls.Post("/:pollRef/options", addPollOption)
			polls.Delete("/:pollRef/options/:optionId", removePollOption)
			polls.Post("/:pollRef/submissions", submitPoll)
			polls.Get("/:pollRef/submissions/me", getMySubmission)
		}
	}
}
