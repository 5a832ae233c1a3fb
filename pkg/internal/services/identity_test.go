package services

import "testing"

func TestResolveParticipantUsesAccount(t *testing.T) {
	id := uint(42)
	participant := ResolveParticipant(ParticipantContext{
		AccountID:  &id,
		RemoteAddr: "10.0.0.1",
		UserAgent:  "curl/8.0",
		Token:      "ignored",
	})

	if participant.Key != "account#42" {
		t.Errorf("Expected account key, got %q", participant.Key)
	}
	if participant.AccountID == nil || *participant.AccountID != id {
		t.Errorf("Expected account id %d to be carried over", id)
	}
}

func TestResolveParticipantIsStable(t *testing.T) {
	in := ParticipantContext{RemoteAddr: "10.0.0.1", UserAgent: "Mozilla/5.0", Token: "abc"}

	first := ResolveParticipant(in)
	second := ResolveParticipant(in)
	if first.Key != second.Key {
		t.Errorf("Same inputs gave different keys: %q and %q", first.Key, second.Key)
	}
	if first.AccountID != nil {
		t.Errorf("Anonymous participant should not carry an account")
	}
	if len(first.Key) != 64 {
		t.Errorf("Expected hex sha256 fingerprint, got %q", first.Key)
	}
}

func TestResolveParticipantDistinguishesTokens(t *testing.T) {
	a := ResolveParticipant(ParticipantContext{RemoteAddr: "10.0.0.1", UserAgent: "Mozilla/5.0", Token: "one"})
	b := ResolveParticipant(ParticipantContext{RemoteAddr: "10.0.0.1", UserAgent: "Mozilla/5.0", Token: "two"})

	if a.Key == b.Key {
		t.Errorf("Different cookie tokens must give different keys")
	}
}

func TestFingerprintParticipantFallbacks(t *testing.T) {
	missing := FingerprintParticipant("", "", "token")
	explicit := FingerprintParticipant("127.0.0.1", "unknown", "token")

	if missing != explicit {
		t.Errorf("Missing address and agent should fall back to defaults")
	}
}

func TestNewParticipantToken(t *testing.T) {
	a, err := NewParticipantToken()
	if err != nil {
		t.Fatalf("NewParticipantToken() error = %v", err)
	}
	b, err := NewParticipantToken()
	if err != nil {
		t.Fatalf("NewParticipantToken() error = %v", err)
	}

	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
	if a == b {
		t.Errorf("Two tokens should not collide")
	}
}
