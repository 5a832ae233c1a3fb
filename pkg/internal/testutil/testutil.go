package testutil

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	pkg "git.solsynth.dev/hypernet/polls/pkg/internal"
	"git.solsynth.dev/hypernet/polls/pkg/internal/cache"
	"git.solsynth.dev/hypernet/polls/pkg/internal/database"
	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

var accessCodeSeq atomic.Int64

// SetupTestDB points database.C at a fresh sqlite file with the full schema.
// A single connection serialises transactions the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	pkg.ApplyDefaults()
	viper.Set("security.session_secret", "test-session-secret")
	viper.Set("security.admin_key_salt", "test-admin-salt")

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", filepath.Join(t.TempDir(), "polls.db"))
	db, err := database.Open(sqlite.Open(dsn), "", false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	if err := database.RunMigration(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	database.C = db

	if err := cache.NewStore(); err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	return db
}

// CreateTestAccount inserts an account without a usable password.
func CreateTestAccount(t *testing.T, email string) models.Account {
	t.Helper()

	account := models.Account{Email: email, PasswordHash: "-"}
	if err := database.C.Create(&account).Error; err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// CreateTestPoll inserts a poll directly, bypassing authoring validation,
// so past deadlines and closed polls can be seeded.
func CreateTestPoll(t *testing.T, deadline time.Time, owner *uint, options ...string) models.Poll {
	t.Helper()

	if len(options) == 0 {
		options = []string{"Option A", "Option B", "Option C", "Option D"}
	}

	poll := models.Poll{
		Question:   "What should we pick?",
		Deadline:   deadline.UTC(),
		AccessCode: fmt.Sprintf("T%07d", accessCodeSeq.Add(1)),
		Status:     models.PollStatusActive,
		AccountID:  owner,
	}
	for idx, text := range options {
		poll.Options = append(poll.Options, models.PollOption{
			Text:     text,
			Position: idx + 1,
		})
	}

	if err := database.C.Create(&poll).Error; err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return poll
}

// ReloadPoll reads the poll and its options back with the stored counters.
func ReloadPoll(t *testing.T, id uint) models.Poll {
	t.Helper()

	var poll models.Poll
	if err := database.C.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&poll).Error; err != nil {
		t.Fatalf("Failed to reload poll: %v", err)
	}
	return poll
}

func CountSubmissions(t *testing.T, pollID uint) int64 {
	t.Helper()

	var count int64
	if err := database.C.Model(&models.Submission{}).Where("poll_id = ?", pollID).Count(&count).Error; err != nil {
		t.Fatalf("Failed to count submissions: %v", err)
	}
	return count
}
