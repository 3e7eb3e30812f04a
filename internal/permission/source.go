package permission

import (
	"context"
	"time"
)

// Subject is the slice of a user the resolver needs.
type Subject struct {
	UserID   int64
	Role     string
	Disabled bool
}

// Source yields the effective matrix for a subject.
type Source interface {
	Matrix(ctx context.Context, subject Subject) (Matrix, error)
}

type Override struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Matrix         Matrix    `json:"permissions"`
	IsActive       bool      `json:"is_active"`
	LastModifiedBy *int64    `json:"last_modified_by,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Repository interface {
	// GetActive returns nil, nil when the user has no active override.
	GetActive(ctx context.Context, userID int64) (*Override, error)
	// InsertIfAbsent stores o unless an active override already exists and reports whether it inserted.
	InsertIfAbsent(ctx context.Context, o *Override) (bool, error)
	// UpsertActive replaces the matrix of the active override, creating it if missing.
	UpsertActive(ctx context.Context, o *Override) (*Override, error)
	// SubjectsWithoutOverride pages through users lacking an active override, ordered by id.
	SubjectsWithoutOverride(ctx context.Context, afterID int64, limit int) ([]Subject, error)
}

// PerUserOverride reads the stored override and materializes it from seed on first access.
type PerUserOverride struct {
	repo Repository
	seed Source
}

func NewPerUserOverride(repo Repository, seed Source) *PerUserOverride {
	return &PerUserOverride{repo: repo, seed: seed}
}

func (p *PerUserOverride) Matrix(ctx context.Context, subject Subject) (Matrix, error) {
	o, _, err := p.Materialize(ctx, subject)
	if err != nil {
		return nil, err
	}
	return o.Matrix, nil
}

// Materialize returns the active override, creating it from the seed source
// when absent. Concurrent callers converge on the single stored row.
func (p *PerUserOverride) Materialize(ctx context.Context, subject Subject) (*Override, bool, error) {
	existing, err := p.repo.GetActive(ctx, subject.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	seeded, err := p.seed.Matrix(ctx, subject)
	if err != nil {
		return nil, false, err
	}

	o := &Override{
		UserID:   subject.UserID,
		Matrix:   seeded,
		IsActive: true,
		Notes:    "materialized from role " + subject.Role,
	}
	created, err := p.repo.InsertIfAbsent(ctx, o)
	if err != nil {
		return nil, false, err
	}
	if created {
		return o, true, nil
	}

	// lost the race; read the winner
	winner, err := p.repo.GetActive(ctx, subject.UserID)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		return o, false, nil
	}
	return winner, false, nil
}
