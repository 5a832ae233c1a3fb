package services

import (
	"fmt"

	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// IncrementSubmissionCounters must run in the same transaction that inserted the submission.
func IncrementSubmissionCounters(tx *gorm.DB, pollID, optionID uint) error {
	result := tx.Model(&models.PollOption{}).
		Where("id = ? AND poll_id = ?", optionID, pollID).
		UpdateColumn("submission_count", gorm.Expr("submission_count + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to increment option counter: %w", result.Error)
	} else if result.RowsAffected != 1 {
		return ErrInvalidOption
	}

	result = tx.Model(&models.Poll{}).
		Where("id = ?", pollID).
		UpdateColumn("total_submissions", gorm.Expr("total_submissions + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("failed to increment poll counter: %w", result.Error)
	} else if result.RowsAffected != 1 {
		return ErrPollNotFound
	}

	return nil
}

// RecomputePollCounters resums every counter of a poll from the live submission rows.
// Used after deletions instead of decrementing.
func RecomputePollCounters(tx *gorm.DB, pollID uint) error {
	var counts []struct {
		OptionID uint
		Count    int64
	}
	if err := tx.Model(&models.Submission{}).
		Select("option_id, COUNT(*) AS count").
		Where("poll_id = ?", pollID).
		Group("option_id").
		Scan(&counts).Error; err != nil {
		return fmt.Errorf("failed to count submissions: %w", err)
	}
	byOption := lo.SliceToMap(counts, func(item struct {
		OptionID uint
		Count    int64
	}) (uint, int64) {
		return item.OptionID, item.Count
	})

	var options []models.PollOption
	if err := tx.Where("poll_id = ?", pollID).Find(&options).Error; err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}

	var total int64
	for _, option := range options {
		count := byOption[option.ID]
		total += count
		if err := tx.Model(&models.PollOption{}).
			Where("id = ?", option.ID).
			UpdateColumn("submission_count", count).Error; err != nil {
			return fmt.Errorf("failed to update option counter: %w", err)
		}
	}

	if err := tx.Model(&models.Poll{}).
		Where("id = ?", pollID).
		UpdateColumn("total_submissions", total).Error; err != nil {
		return fmt.Errorf("failed to update poll counter: %w", err)
	}

	return nil
}
