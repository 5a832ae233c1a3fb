package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	fallbackRemoteAddr = "127.0.0.1"
	fallbackUserAgent  = "unknown"
)

// Participant is the identity a submission is deduplicated against.
type Participant struct {
	Key       string
	AccountID *uint
}

// ParticipantContext is what the HTTP layer knows about the caller.
// Token is the anonymous cookie token, already created by the caller when missing.
type ParticipantContext struct {
	AccountID  *uint
	RemoteAddr string
	UserAgent  string
	Token      string
}

// NewParticipantToken returns 32 bytes of crypto randomness, hex encoded.
func NewParticipantToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate participant token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ResolveParticipant never fails. Authenticated callers are keyed by account,
// everybody else by a fingerprint of address, agent and cookie token.
func ResolveParticipant(in ParticipantContext) Participant {
	if in.AccountID != nil {
		return Participant{
			Key:       AccountParticipantKey(*in.AccountID),
			AccountID: in.AccountID,
		}
	}

	return Participant{
		Key: FingerprintParticipant(in.RemoteAddr, in.UserAgent, in.Token),
	}
}

func AccountParticipantKey(id uint) string {
	return fmt.Sprintf("account#%d", id)
}

func FingerprintParticipant(remoteAddr, userAgent, token string) string {
	if len(remoteAddr) == 0 {
		remoteAddr = fallbackRemoteAddr
	}
	if len(userAgent) == 0 {
		userAgent = fallbackUserAgent
	}

	sum := sha256.Sum256([]byte(remoteAddr + "-" + userAgent + "-" + token))
	return hex.EncodeToString(sum[:])
}
