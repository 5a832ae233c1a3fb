package services

import (
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type SubmissionRequest struct {
	PollRef     string
	OptionID    uint
	Participant Participant
	Now         time.Time
}

// SubmitToPoll is the only writer of submissions. Every rule is evaluated against
// rows read inside the transaction that inserts the submission and bumps the counters,
// so a rejected call leaves nothing behind.
func SubmitToPoll(req SubmissionRequest) (models.Submission, error) {
	ref, err := GetPollByRef(req.PollRef)
	if err != nil {
		return models.Submission{}, err
	}

	submission := models.Submission{
		BaseModel: models.BaseModel{
			CreatedAt: req.Now.UTC(),
		},
		PollID:         ref.ID,
		OptionID:       req.OptionID,
		ParticipantKey: req.Participant.Key,
		AccountID:      req.Participant.AccountID,
	}

	err = database.C.Transaction(func(tx *gorm.DB) error {
		var poll models.Poll
		if err := tx.Where("id = ?", ref.ID).First(&poll).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPollNotFound
			}
			return err
		}

		if poll.AccountID != nil && req.Participant.AccountID != nil && *poll.AccountID == *req.Participant.AccountID {
			return ErrSelfSubmissionForbidden
		}
		if !IsPollOpen(poll, req.Now) {
			return ErrPollClosed
		}

		var option models.PollOption
		if err := tx.Where("id = ? AND poll_id = ?", req.OptionID, poll.ID).First(&option).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOption
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.Submission{}).
			Where("poll_id = ? AND participant_key = ?", poll.ID, req.Participant.Key).
			Count(&existing).Error; err != nil {
			return err
		} else if existing > 0 {
			return ErrDuplicateSubmission
		}

		// Two racing requests can both pass the count above; the unique index decides.
		if err := tx.Create(&submission).Error; err != nil {
			if IsDuplicateKeyError(err) {
				return ErrDuplicateSubmission
			}
			return err
		}

		return IncrementSubmissionCounters(tx, poll.ID, option.ID)
	})
	if err != nil {
		if IsDuplicateKeyError(err) {
			err = ErrDuplicateSubmission
		}
		if isAdmissionRejection(err) {
			log.Debug().Err(err).Uint("poll", ref.ID).Msg("Submission rejected.")
			return models.Submission{}, err
		}
		log.Error().Err(err).Uint("poll", ref.ID).Msg("An error occurred when saving submission...")
		return models.Submission{}, fmt.Errorf("unable to save submission: %w", err)
	}

	log.Info().
		Uint("poll", submission.PollID).
		Uint("option", submission.OptionID).
		Uint("submission", submission.ID).
		Msg("Submission accepted.")

	return submission, nil
}

func isAdmissionRejection(err error) bool {
	return errors.Is(err, ErrPollNotFound) ||
		errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, ErrPollClosed) ||
		errors.Is(err, ErrDuplicateSubmission) ||
		errors.Is(err, ErrSelfSubmissionForbidden)
}

// GetParticipantSubmission returns the caller's submission for the poll, if any.
func GetParticipantSubmission(poll models.Poll, participant Participant) (models.Submission, error) {
	var submission models.Submission
	if err := database.C.
		Where("poll_id = ? AND participant_key = ?", poll.ID, participant.Key).
		First(&submission).Error; err != nil {
		return submission, err
	}
	return submission, nil
}

func HasParticipantSubmitted(poll models.Poll, participant Participant) (bool, error) {
	var count int64
	if err := database.C.Model(&models.Submission{}).
		Where("poll_id = ? AND participant_key = ?", poll.ID, participant.Key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
