package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	localCache "git.solsynth.dev/hypernet/polls/pkg/internal/cache"
	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const AccessCodeLength = 8

// GenerateAccessCode returns an 8 character, upper-cased, URL-safe code.
func GenerateAccessCode() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate access code: %w", err)
	}
	return strings.ToUpper(base64.RawURLEncoding.EncodeToString(b))[:AccessCodeLength], nil
}

// GeneratePollAdminKey derives the management key of an ownerless poll.
// Deterministic, so it never has to be stored.
func GeneratePollAdminKey(pollID uint) string {
	h := hmac.New(sha256.New, []byte(viper.GetString("security.admin_key_salt")))
	h.Write([]byte(fmt.Sprintf("poll#%d", pollID)))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func ValidatePollAdminKey(pollID uint, key string) bool {
	if len(key) == 0 {
		return false
	}
	return hmac.Equal([]byte(key), []byte(GeneratePollAdminKey(pollID)))
}

// CanManagePoll: owned polls by their owner, ownerless polls by admin key.
func CanManagePoll(poll models.Poll, accountID *uint, adminKey string) bool {
	if poll.AccountID != nil {
		return accountID != nil && *accountID == *poll.AccountID
	}
	return ValidatePollAdminKey(poll.ID, adminKey)
}

func accessCodeCacheKey(code string) string {
	return fmt.Sprintf("poll-access-code#%s", code)
}

func getPollIDByAccessCode(code string) (uint, error) {
	ctx := context.Background()
	key := accessCodeCacheKey(code)

	var marshal *marshaler.Marshaler
	if localCache.S != nil {
		marshal = marshaler.New(cache.New[any](localCache.S))
		if val, err := marshal.Get(ctx, key, new(uint)); err == nil {
			return *val.(*uint), nil
		}
	}

	var poll models.Poll
	if err := database.C.Select("id").Where("access_code = ?", code).First(&poll).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrPollNotFound
		}
		return 0, fmt.Errorf("unable to resolve access code: %w", err)
	}

	if marshal != nil {
		_ = marshal.Set(ctx, key, poll.ID, store.WithExpiration(time.Hour), store.WithCost(1))
	}

	return poll.ID, nil
}

func evictAccessCode(code string) {
	if localCache.S == nil {
		return
	}
	_ = cache.New[any](localCache.S).Delete(context.Background(), accessCodeCacheKey(code))
}
