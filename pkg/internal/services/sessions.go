package services

import (
	"fmt"
	"strconv"
	"time"

	"git.solsynth.dev/hypernet/polls/pkg/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

const sessionIssuer = "polls"

func sessionSecret() []byte {
	return []byte(viper.GetString("security.session_secret"))
}

func NewSessionToken(account models.Account, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatUint(uint64(account.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(viper.GetDuration("security.session_ttl"))),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sessionSecret())
	if err != nil {
		return "", fmt.Errorf("unable to sign session token: %w", err)
	}
	return token, nil
}

// ParseSessionToken returns the account id carried by a valid, unexpired token.
func ParseSessionToken(raw string) (uint, error) {
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return sessionSecret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(sessionIssuer)); err != nil {
		return 0, fmt.Errorf("invalid session token: %w", err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid session subject: %q", claims.Subject)
	}
	return uint(id), nil
}
