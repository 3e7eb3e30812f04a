package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal/core/common/validation"
	"github.com/golang-jwt/jwt/v5"
)

// Account is the slice of a user the credential gate needs.
type Account struct {
	ID           int64
	Email        string
	Name         string
	Role         string
	PasswordHash string
	Disabled     bool
}

type AccountRepository interface {
	// GetByEmail returns nil, nil when no account matches the folded email.
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id int64) (*Account, error)
}

// LoginAttempt tracks consecutive failed logins for one email.
type LoginAttempt struct {
	Email        string     `db:"email"`
	Attempts     int        `db:"attempts"`
	BlockedUntil *time.Time `db:"blocked_until"`
	LastAttempt  time.Time  `db:"last_attempt"`
}

// AttemptStore persists LoginAttempt records. RecordFailure must be a single
// atomic read-modify-write so concurrent failures are never under-counted:
// a record whose lock has expired at now, or whose last attempt is before
// staleBefore, restarts at one inside that same write.
type AttemptStore interface {
	Get(ctx context.Context, email string) (*LoginAttempt, error)
	RecordFailure(ctx context.Context, email string, now time.Time, threshold int, blockUntil, staleBefore time.Time) (*LoginAttempt, error)
	// DeleteStale removes the record only while its last attempt is still before cutoff.
	DeleteStale(ctx context.Context, email string, cutoff time.Time) error
	Delete(ctx context.Context, email string) error
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// LockoutPolicy is the throttling configuration applied by the gate.
type LockoutPolicy struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	Retention       time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:     3,
		LockoutDuration: 60 * time.Second,
		Retention:       24 * time.Hour,
	}
}

type Clock func() time.Time

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"typ"`
	jwt.RegisteredClaims
}

type TokenGenerator interface {
	GenerateAccessToken(account *Account) (string, error)
	GenerateRefreshToken(account *Account) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
	AccessTokenTTL() time.Duration
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type LoginResult struct {
	AuthTokens
	User UserSummary `json:"user"`
}

// NormalizeEmail folds case so lookups and throttling are case-insensitive.
func NormalizeEmail(email string) string {
	return validation.NormalizeEmail(email)
}

func (a *Account) Summary() UserSummary {
	return UserSummary{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
}
