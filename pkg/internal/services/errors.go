package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrPollNotFound            = errors.New("poll not found")
	ErrOptionNotFound          = errors.New("option not found")
	ErrInvalidOption           = errors.New("option does not belong to this poll")
	ErrPollClosed              = errors.New("poll is not accepting submissions")
	ErrDuplicateSubmission     = errors.New("you have already answered this poll")
	ErrSelfSubmissionForbidden = errors.New("you cannot answer your own poll")
	ErrPollLocked              = errors.New("poll already has submissions")
	ErrInvalidCredentials      = errors.New("invalid email or password")
)

// ValidationError collects field level messages produced before anything is persisted.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationError) Empty() bool {
	return len(v.Fields) == 0
}

// OrNil returns nil when nothing was collected, so callers can `return v.OrNil()`.
func (v *ValidationError) OrNil() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, strings.Join(v.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsDuplicateKeyError reports whether err comes from a unique constraint violation,
// regardless of which dialect produced it.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
