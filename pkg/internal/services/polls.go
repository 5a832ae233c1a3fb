package services

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const (
	PollQuestionMinLength = 5
	PollQuestionMaxLength = 500
	PollOptionMaxLength   = 255

	DefaultPollPageSize = 12

	PollScopeActive  = "active"
	PollScopeExpired = "expired"
)

type PollDraft struct {
	Question               string
	Deadline               time.Time
	Options                []string
	ShowResultsWhileVoting bool
}

func minPollOptions() int {
	return viper.GetInt("polls.min_options")
}

func maxPollOptions() int {
	return viper.GetInt("polls.max_options")
}

// pollPageSize falls back to the default for a missing or non-positive setting.
func pollPageSize() int {
	if size := viper.GetInt("polls.page_size"); size > 0 {
		return size
	}
	return DefaultPollPageSize
}

// ValidatePollDraft checks every authoring rule before anything reaches the database.
func ValidatePollDraft(draft PollDraft, now time.Time) error {
	var v ValidationError

	question := strings.TrimSpace(draft.Question)
	if length := utf8.RuneCountInString(question); length == 0 {
		v.Add("question", "can't be blank")
	} else if length < PollQuestionMinLength {
		v.Add("question", fmt.Sprintf("is too short (minimum is %d characters)", PollQuestionMinLength))
	} else if length > PollQuestionMaxLength {
		v.Add("question", fmt.Sprintf("is too long (maximum is %d characters)", PollQuestionMaxLength))
	}

	if draft.Deadline.IsZero() {
		v.Add("deadline", "can't be blank")
	} else if !draft.Deadline.After(now) {
		v.Add("deadline", "must be in the future")
	}

	texts := lo.Map(draft.Options, func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	for _, text := range texts {
		validateOptionText(&v, text)
	}
	if len(texts) < minPollOptions() {
		v.Add("options", fmt.Sprintf("must have at least %d options", minPollOptions()))
	} else if len(texts) > maxPollOptions() {
		v.Add("options", fmt.Sprintf("must have at most %d options", maxPollOptions()))
	}
	if len(lo.Uniq(lo.Map(texts, func(item string, _ int) string {
		return strings.ToLower(item)
	}))) != len(texts) {
		v.Add("options", "must be unique")
	}

	return v.OrNil()
}

func validateOptionText(v *ValidationError, text string) {
	if len(text) == 0 {
		v.Add("options", "text can't be blank")
	} else if utf8.RuneCountInString(text) > PollOptionMaxLength {
		v.Add("options", fmt.Sprintf("text is too long (maximum is %d characters)", PollOptionMaxLength))
	}
}

func NewPoll(draft PollDraft, owner *uint, now time.Time) (models.Poll, error) {
	if err := ValidatePollDraft(draft, now); err != nil {
		return models.Poll{}, err
	}

	question := strings.TrimSpace(draft.Question)
	options := lo.Map(draft.Options, func(item string, idx int) models.PollOption {
		return models.PollOption{
			Text:     strings.TrimSpace(item),
			Position: idx + 1,
		}
	})

	poll := models.Poll{
		Question:               question,
		Deadline:               draft.Deadline.UTC(),
		Status:                 models.PollStatusActive,
		Language:               DetectLanguage(question),
		ShowResultsWhileVoting: draft.ShowResultsWhileVoting,
		AccountID:              owner,
		Options:                options,
	}

	// Access codes are random, a collision only costs another attempt.
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if poll.AccessCode, err = GenerateAccessCode(); err != nil {
			return poll, err
		}
		err = database.C.Create(&poll).Error
		if err == nil || !IsDuplicateKeyError(err) {
			break
		}
		poll.ID = 0
		for idx := range poll.Options {
			poll.Options[idx].ID = 0
			poll.Options[idx].PollID = 0
		}
	}
	if err != nil {
		return poll, fmt.Errorf("unable to create poll: %w", err)
	}

	log.Info().
		Uint("poll", poll.ID).
		Str("code", poll.AccessCode).
		Int("options", len(poll.Options)).
		Msg("Poll created.")

	return poll, nil
}

func GetPoll(id uint) (models.Poll, error) {
	var poll models.Poll
	if err := database.C.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&poll).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return poll, ErrPollNotFound
		}
		return poll, fmt.Errorf("unable to get poll: %w", err)
	}
	return poll, nil
}

// GetPollByRef resolves either an access code or a numeric id.
func GetPollByRef(ref string) (models.Poll, error) {
	ref = strings.TrimSpace(ref)
	if len(ref) == AccessCodeLength {
		id, err := getPollIDByAccessCode(strings.ToUpper(ref))
		if err == nil {
			return GetPoll(id)
		} else if !errors.Is(err, ErrPollNotFound) {
			return models.Poll{}, err
		}
	}

	id, err := strconv.ParseUint(ref, 10, 64)
	if err != nil || id == 0 {
		return models.Poll{}, ErrPollNotFound
	}
	return GetPoll(uint(id))
}

type PollFilter struct {
	Scope          string
	Language       string
	OwnerID        *uint
	ExcludeOwnerID *uint
	Page           int
	Now            time.Time
}

type PollPage struct {
	Count int64         `json:"count"`
	Page  int           `json:"page"`
	Pages int           `json:"pages"`
	Data  []models.Poll `json:"data"`
}

func filterPolls(tx *gorm.DB, filter PollFilter) *gorm.DB {
	now := filter.Now.UTC()
	switch filter.Scope {
	case PollScopeActive:
		tx = tx.Where("status <> ? AND deadline > ?", models.PollStatusClosed, now)
	case PollScopeExpired:
		tx = tx.Where("(status = ? OR deadline <= ?)", models.PollStatusClosed, now)
	}
	if len(filter.Language) > 0 {
		tx = tx.Where("language = ?", strings.ToLower(filter.Language))
	}
	if filter.OwnerID != nil {
		tx = tx.Where("account_id = ?", *filter.OwnerID)
	}
	if filter.ExcludeOwnerID != nil {
		tx = tx.Where("(account_id IS NULL OR account_id <> ?)", *filter.ExcludeOwnerID)
	}
	return tx
}

// ListPolls pages newest first; a page past the end is clamped to the last one.
func ListPolls(filter PollFilter) (PollPage, error) {
	size := pollPageSize()

	var count int64
	if err := filterPolls(database.C.Model(&models.Poll{}), filter).Count(&count).Error; err != nil {
		return PollPage{}, fmt.Errorf("unable to count polls: %w", err)
	}

	pages := int(math.Max(1, math.Ceil(float64(count)/float64(size))))
	page := lo.Clamp(filter.Page, 1, pages)

	var polls []models.Poll
	if err := filterPolls(database.C, filter).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&polls).Error; err != nil {
		return PollPage{}, fmt.Errorf("unable to list polls: %w", err)
	}

	return PollPage{
		Count: count,
		Page:  page,
		Pages: pages,
		Data:  polls,
	}, nil
}

// AddPollOption is only allowed until the first submission arrives.
func AddPollOption(poll models.Poll, text string) (models.PollOption, error) {
	text = strings.TrimSpace(text)

	var v ValidationError
	validateOptionText(&v, text)
	if err := v.OrNil(); err != nil {
		return models.PollOption{}, err
	}

	var option models.PollOption
	err := database.C.Transaction(func(tx *gorm.DB) error {
		var submissions int64
		if err := tx.Model(&models.Submission{}).Where("poll_id = ?", poll.ID).Count(&submissions).Error; err != nil {
			return err
		} else if submissions > 0 {
			return ErrPollLocked
		}

		var options []models.PollOption
		if err := tx.Where("poll_id = ?", poll.ID).Find(&options).Error; err != nil {
			return err
		}
		if len(options) >= maxPollOptions() {
			v.Add("options", fmt.Sprintf("must have at most %d options", maxPollOptions()))
		}
		if lo.ContainsBy(options, func(item models.PollOption) bool {
			return strings.EqualFold(item.Text, text)
		}) {
			v.Add("options", "must be unique")
		}
		if err := v.OrNil(); err != nil {
			return err
		}

		option = models.PollOption{
			PollID: poll.ID,
			Text:   text,
			Position: lo.MaxBy(options, func(a, b models.PollOption) bool {
				return a.Position > b.Position
			}).Position + 1,
		}
		return tx.Create(&option).Error
	})
	if err != nil {
		return option, err
	}

	log.Info().Uint("poll", poll.ID).Uint("option", option.ID).Msg("Poll option added.")

	return option, nil
}

// RemovePollOption drops the option with its submissions and resums the poll counters.
func RemovePollOption(poll models.Poll, optionID uint) error {
	err := database.C.Transaction(func(tx *gorm.DB) error {
		var option models.PollOption
		if err := tx.Where("id = ? AND poll_id = ?", optionID, poll.ID).First(&option).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOptionNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.PollOption{}).Where("poll_id = ?", poll.ID).Count(&count).Error; err != nil {
			return err
		} else if int(count)-1 < minPollOptions() {
			var v ValidationError
			v.Add("options", fmt.Sprintf("must have at least %d options", minPollOptions()))
			return &v
		}

		if err := tx.Where("option_id = ?", option.ID).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&option).Error; err != nil {
			return err
		}

		return RecomputePollCounters(tx, poll.ID)
	})
	if err != nil {
		return err
	}

	log.Info().Uint("poll", poll.ID).Uint("option", optionID).Msg("Poll option removed.")

	return nil
}

func DeletePoll(poll models.Poll) error {
	err := database.C.Transaction(func(tx *gorm.DB) error {
		return deletePollTx(tx, poll.ID)
	})
	if err != nil {
		return fmt.Errorf("unable to delete poll: %w", err)
	}

	evictAccessCode(poll.AccessCode)
	log.Info().Uint("poll", poll.ID).Msg("Poll deleted.")

	return nil
}

func deletePollTx(tx *gorm.DB, pollID uint) error {
	if err := tx.Where("poll_id = ?", pollID).Delete(&models.Submission{}).Error; err != nil {
		return err
	}
	if err := tx.Where("poll_id = ?", pollID).Delete(&models.PollOption{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", pollID).Delete(&models.Poll{}).Error
}
