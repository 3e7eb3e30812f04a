package auth

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/frahmantamala/equipment-approvals/internal"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// Service is the credential gate: it throttles by email before any password work.
type Service struct {
	accounts       AccountRepository
	attempts       AttemptStore
	tokenGenerator TokenGenerator
	policy         LockoutPolicy
	bcryptCost     int
	dummyHash      []byte
	now            Clock
	logger         *slog.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.now = c }
}

func WithBCryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// NewService creates a new auth service
func NewService(accounts AccountRepository, attempts AttemptStore, tokenGen TokenGenerator, policy LockoutPolicy, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		accounts:       accounts,
		attempts:       attempts,
		tokenGenerator: tokenGen,
		policy:         policy,
		bcryptCost:     bcrypt.DefaultCost,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	// unknown emails are compared against this so both branches cost one bcrypt
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("equipment-approvals"), s.bcryptCost)
	return s
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(dto.Email)
	now := s.now().UTC()

	attempt, err := s.attempts.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if attempt != nil {
		switch {
		case attempt.LastAttempt.Before(s.staleBefore(now)):
			// a concurrent failure may have refreshed it since the read
			if err := s.attempts.DeleteStale(ctx, email, s.staleBefore(now)); err != nil {
				return nil, err
			}
		case attempt.BlockedUntil != nil && now.Before(*attempt.BlockedUntil):
			remaining := retryAfterSeconds(attempt.BlockedUntil.Sub(now))
			s.logger.WarnContext(ctx, "login refused while locked", "email", email, "retry_after", remaining)
			return nil, internal.NewAccountLockedError(remaining)
		}
		// an elapsed lock is reset by the next RecordFailure, not here
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	hash := s.dummyHash
	if account != nil {
		hash = []byte(account.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(dto.Password)); err != nil || account == nil {
		return nil, s.recordFailure(ctx, email, now)
	}

	if err := s.attempts.Delete(ctx, email); err != nil {
		return nil, err
	}

	if account.Disabled {
		s.logger.WarnContext(ctx, "login refused for disabled user", "user_id", account.ID)
		return nil, internal.ErrUserDisabled
	}

	tokens, err := s.issue(account)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user authenticated", "user_id", account.ID, "role", account.Role)
	return &LoginResult{AuthTokens: *tokens, User: account.Summary()}, nil
}

func (s *Service) recordFailure(ctx context.Context, email string, now time.Time) error {
	attempt, err := s.attempts.RecordFailure(ctx, email, now, s.policy.MaxAttempts, now.Add(s.policy.LockoutDuration), s.staleBefore(now))
	if err != nil {
		return err
	}

	if attempt.Attempts >= s.policy.MaxAttempts {
		s.logger.WarnContext(ctx, "account locked after failed logins", "email", email, "attempts", attempt.Attempts)
		return internal.NewAccountLockedError(retryAfterSeconds(s.policy.LockoutDuration))
	}

	s.logger.InfoContext(ctx, "login failed", "email", email, "attempts", attempt.Attempts)
	return internal.ErrInvalidCredentials
}

func (s *Service) staleBefore(now time.Time) time.Time {
	return now.Add(-s.policy.Retention)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, internal.ErrInvalidToken
	}
	if account.Disabled {
		return nil, internal.ErrUserDisabled
	}

	return s.issue(account)
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateAccessToken(tokenString)
}

// PurgeStaleAttempts removes attempt records older than the retention window.
func (s *Service) PurgeStaleAttempts(ctx context.Context) (int64, error) {
	cutoff := s.staleBefore(s.now().UTC())
	n, err := s.attempts.Purge(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "purged stale login attempts", "removed", n, "cutoff", cutoff)
	return n, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *Service) issue(account *Account) (*AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(account)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(account)
	if err != nil {
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokenGenerator.AccessTokenTTL().Seconds()),
	}, nil
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
