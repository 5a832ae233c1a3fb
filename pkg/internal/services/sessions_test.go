package services

import (
	"testing"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/spf13/viper"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	viper.Set("security.session_secret", "test-session-secret")
	viper.Set("security.session_ttl", "1h")

	account := models.Account{BaseModel: models.BaseModel{ID: 7}}
	token, err := NewSessionToken(account, time.Now())
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}

	id, err := ParseSessionToken(token)
	if err != nil {
		t.Fatalf("ParseSessionToken() error = %v", err)
	}
	if id != account.ID {
		t.Errorf("Expected account %d, got %d", account.ID, id)
	}
}

func TestSessionTokenRejects(t *testing.T) {
	viper.Set("security.session_secret", "test-session-secret")
	viper.Set("security.session_ttl", "1h")

	account := models.Account{BaseModel: models.BaseModel{ID: 7}}

	expired, err := NewSessionToken(account, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}
	if _, err := ParseSessionToken(expired); err == nil {
		t.Errorf("Expected expired token to be rejected")
	}

	valid, err := NewSessionToken(account, time.Now())
	if err != nil {
		t.Fatalf("NewSessionToken() error = %v", err)
	}
	viper.Set("security.session_secret", "another-secret")
	defer viper.Set("security.session_secret", "test-session-secret")
	if _, err := ParseSessionToken(valid); err == nil {
		t.Errorf("Expected token signed with another secret to be rejected")
	}

	if _, err := ParseSessionToken("not-a-token"); err == nil {
		t.Errorf("Expected garbage to be rejected")
	}
}
