package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	PasswordMinLength = 6
	PasswordMaxLength = 128
)

var accountValidator = validator.New(validator.WithRequiredStructEnabled())

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(v *ValidationError, email, password string) {
	if len(email) == 0 {
		v.Add("email", "can't be blank")
	} else if err := accountValidator.Var(email, "email"); err != nil {
		v.Add("email", "is invalid")
	}
	validatePassword(v, password)
}

func validatePassword(v *ValidationError, password string) {
	if length := utf8.RuneCountInString(password); length == 0 {
		v.Add("password", "can't be blank")
	} else if length < PasswordMinLength {
		v.Add("password", fmt.Sprintf("is too short (minimum is %d characters)", PasswordMinLength))
	} else if length > PasswordMaxLength {
		v.Add("password", fmt.Sprintf("is too long (maximum is %d characters)", PasswordMaxLength))
	}
}

func GetAccount(id uint) (models.Account, error) {
	var account models.Account
	if err := database.C.Where("id = ?", id).First(&account).Error; err != nil {
		return account, fmt.Errorf("unable to get account by id: %w", err)
	}
	return account, nil
}

func RegisterAccount(email, password string) (models.Account, error) {
	email = normalizeEmail(email)

	var v ValidationError
	validateCredentials(&v, email, password)
	if err := v.OrNil(); err != nil {
		return models.Account{}, err
	}

	var count int64
	if err := database.C.Model(&models.Account{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return models.Account{}, err
	} else if count > 0 {
		v.Add("email", "has already been taken")
		return models.Account{}, &v
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, fmt.Errorf("unable to hash password: %w", err)
	}

	account := models.Account{
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := database.C.Create(&account).Error; err != nil {
		if IsDuplicateKeyError(err) {
			v.Add("email", "has already been taken")
			return account, &v
		}
		return account, err
	}

	log.Info().Uint("account", account.ID).Msg("Account registered.")

	return account, nil
}

func AuthenticateAccount(email, password string) (models.Account, error) {
	var account models.Account
	if err := database.C.Where("email = ?", normalizeEmail(email)).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return account, ErrInvalidCredentials
		}
		return account, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return account, ErrInvalidCredentials
	}

	return account, nil
}

type AccountChanges struct {
	CurrentPassword string
	Email           *string
	Password        *string
}

// UpdateAccount requires the current password for any change.
func UpdateAccount(account models.Account, changes AccountChanges) (models.Account, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(changes.CurrentPassword)); err != nil {
		var v ValidationError
		v.Add("current_password", "is invalid")
		return account, &v
	}

	var v ValidationError
	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		if len(email) == 0 {
			v.Add("email", "can't be blank")
		} else if err := accountValidator.Var(email, "email"); err != nil {
			v.Add("email", "is invalid")
		}
		account.Email = email
	}
	if changes.Password != nil {
		validatePassword(&v, *changes.Password)
	}
	if err := v.OrNil(); err != nil {
		return account, err
	}

	if changes.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*changes.Password), bcrypt.DefaultCost)
		if err != nil {
			return account, fmt.Errorf("unable to hash password: %w", err)
		}
		account.PasswordHash = string(hash)
	}

	if err := database.C.Save(&account).Error; err != nil {
		if IsDuplicateKeyError(err) {
			v.Add("email", "has already been taken")
			return account, &v
		}
		return account, err
	}

	return account, nil
}

// DeleteAccount removes the account's polls and its submissions elsewhere,
// resumming the counters of every poll it had answered.
func DeleteAccount(account models.Account) error {
	var codes []string
	err := database.C.Transaction(func(tx *gorm.DB) error {
		var owned []models.Poll
		if err := tx.Select("id", "access_code").Where("account_id = ?", account.ID).Find(&owned).Error; err != nil {
			return err
		}
		for _, poll := range owned {
			if err := deletePollTx(tx, poll.ID); err != nil {
				return err
			}
		}
		codes = lo.Map(owned, func(item models.Poll, _ int) string {
			return item.AccessCode
		})

		var answered []uint
		if err := tx.Model(&models.Submission{}).
			Where("account_id = ?", account.ID).
			Distinct().
			Pluck("poll_id", &answered).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		for _, pollID := range answered {
			if err := RecomputePollCounters(tx, pollID); err != nil {
				return err
			}
		}

		return tx.Delete(&account).Error
	})
	if err != nil {
		return fmt.Errorf("unable to delete account: %w", err)
	}

	for _, code := range codes {
		evictAccessCode(code)
	}
	log.Info().Uint("account", account.ID).Int("polls", len(codes)).Msg("Account deleted.")

	return nil
}
