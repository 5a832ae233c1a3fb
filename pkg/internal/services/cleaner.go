package services

import (
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

// DoAutoPollClosing flips every poll whose deadline has passed to closed.
func DoAutoPollClosing() {
	count, err := CloseExpiredPolls(time.Now())
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when closing expired polls...")
	} else if count > 0 {
		log.Info().Int("count", count).Msg("Closed expired polls.")
	}
}

func CloseExpiredPolls(now time.Time) (int, error) {
	var polls []models.Poll
	if err := database.C.
		Where("status <> ? AND deadline <= ?", models.PollStatusClosed, now.UTC()).
		Find(&polls).Error; err != nil {
		return 0, err
	}

	var closed int
	for _, poll := range polls {
		if _, err := ClosePoll(poll, now); err != nil {
			log.Warn().Err(err).Uint("poll", poll.ID).Msg("Unable to close expired poll...")
			continue
		}
		closed++
	}
	return closed, nil
}
