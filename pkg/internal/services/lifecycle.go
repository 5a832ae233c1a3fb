package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PollMetric struct {
	TotalSubmissions int64          `json:"total_submissions"`
	ByOptions        []OptionMetric `json:"by_options"`
}

type OptionMetric struct {
	OptionID   uint    `json:"option_id"`
	Text       string  `json:"text"`
	Position   int     `json:"position"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// IsPollOpen is the single answer to "does this poll accept submissions at now".
// The deadline is an exclusive upper bound.
func IsPollOpen(poll models.Poll, now time.Time) bool {
	return poll.Status != models.PollStatusClosed && now.Before(poll.Deadline)
}

// OptionPercentage rounds to one decimal place, zero when nothing was submitted.
func OptionPercentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// GetPollMetric reads every option row of the poll once and derives the totals from it,
// so the percentages always add up against the same snapshot.
func GetPollMetric(poll models.Poll) (PollMetric, error) {
	return loadPollMetric(database.C, poll.ID)
}

func loadPollMetric(tx *gorm.DB, pollID uint) (PollMetric, error) {
	var options []models.PollOption
	if err := tx.
		Where("poll_id = ?", pollID).
		Order("position ASC").
		Find(&options).Error; err != nil {
		return PollMetric{}, fmt.Errorf("unable to load poll options: %w", err)
	}

	return buildPollMetric(options), nil
}

func buildPollMetric(options []models.PollOption) PollMetric {
	var total int64
	for _, option := range options {
		total += option.SubmissionCount
	}

	metric := PollMetric{
		TotalSubmissions: total,
		ByOptions:        make([]OptionMetric, 0, len(options)),
	}
	for _, option := range options {
		metric.ByOptions = append(metric.ByOptions, OptionMetric{
			OptionID:   option.ID,
			Text:       option.Text,
			Position:   option.Position,
			Count:      option.SubmissionCount,
			Percentage: OptionPercentage(option.SubmissionCount, total),
		})
	}
	return metric
}

// GetFinalPollMetric returns the snapshot stored when the poll was closed, if any.
func GetFinalPollMetric(poll models.Poll) (*PollMetric, error) {
	if len(poll.FinalMetric) == 0 {
		return nil, nil
	}
	var metric PollMetric
	if err := jsoniter.Unmarshal(poll.FinalMetric, &metric); err != nil {
		return nil, fmt.Errorf("unable to decode final metric: %w", err)
	}
	return &metric, nil
}

// ClosePoll is idempotent: closing a closed poll returns it untouched.
// The snapshot is taken under the poll row lock, so no submission lands between
// the final metric and the status change.
func ClosePoll(poll models.Poll, now time.Time) (models.Poll, error) {
	if poll.Status == models.PollStatusClosed {
		return poll, nil
	}

	var metric PollMetric
	var closed bool
	err := database.C.Transaction(func(tx *gorm.DB) error {
		var current models.Poll
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", poll.ID).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPollNotFound
			}
			return err
		}
		if current.Status == models.PollStatusClosed {
			poll.Status = current.Status
			poll.ClosedAt = current.ClosedAt
			poll.FinalMetric = current.FinalMetric
			poll.TotalSubmissions = current.TotalSubmissions
			return nil
		}

		var err error
		if metric, err = loadPollMetric(tx, poll.ID); err != nil {
			return err
		}
		raw, err := jsoniter.Marshal(metric)
		if err != nil {
			return fmt.Errorf("unable to encode final metric: %w", err)
		}

		closedAt := now.UTC()
		if err := tx.Model(&models.Poll{}).
			Where("id = ?", poll.ID).
			Updates(map[string]any{
				"status":       models.PollStatusClosed,
				"closed_at":    closedAt,
				"final_metric": datatypes.JSON(raw),
			}).Error; err != nil {
			return err
		}

		poll.Status = models.PollStatusClosed
		poll.ClosedAt = &closedAt
		poll.FinalMetric = raw
		poll.TotalSubmissions = metric.TotalSubmissions
		closed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPollNotFound) {
			return poll, err
		}
		return poll, fmt.Errorf("unable to close poll: %w", err)
	}

	if closed {
		log.Info().Uint("poll", poll.ID).Int64("submissions", metric.TotalSubmissions).Msg("Poll closed.")
	}

	return poll, nil
}
