package permission

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/equipment-approvals/internal"
)

const (
	ReasonGranted              = "granted"
	ReasonCapabilityNotGranted = "capability_not_granted"
	ReasonUserNotFound         = "user_not_found"
	ReasonUserDisabled         = "user_disabled"
	ReasonLookupFailed         = "lookup_failed"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason"`
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	Role     string   `json:"role,omitempty"`
}

// Err converts a deny into the matching application error.
func (d Decision) Err() *internal.AppError {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonLookupFailed {
		return internal.NewStoreUnavailableError(nil)
	}
	return internal.NewForbiddenError(string(d.Resource), string(d.Action), d.Role)
}

// SubjectLookup loads a user for authorization. A missing user must be
// reported as an internal NOT_FOUND AppError.
type SubjectLookup interface {
	Subject(ctx context.Context, userID int64) (Subject, error)
}

type BackfillResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
}

// Resolver composes the role defaults and the per-user override source.
type Resolver struct {
	subjects  SubjectLookup
	legacy    *RoleDefaults
	overrides *PerUserOverride
	repo      Repository
	logger    *slog.Logger
}

func NewResolver(subjects SubjectLookup, roles *RoleDefaults, repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{
		subjects:  subjects,
		legacy:    roles,
		overrides: NewPerUserOverride(repo, roles),
		repo:      repo,
		logger:    logger,
	}
}

// Resolve never fails: any lookup problem denies.
func (r *Resolver) Resolve(ctx context.Context, userID int64, resource Resource, action Action) bool {
	return r.HasPermission(ctx, userID, resource, action).Allowed
}

// ResolveLegacy answers from the static role table only.
func (r *Resolver) ResolveLegacy(role string, resource Resource, action Action) bool {
	return r.legacy.Allows(role, resource, action)
}

func (r *Resolver) HasPermission(ctx context.Context, userID int64, resource Resource, action Action) Decision {
	d := Decision{Resource: resource, Action: action, Reason: ReasonCapabilityNotGranted}

	subject, err := r.subjects.Subject(ctx, userID)
	if err != nil {
		if internal.IsErrorType(err, internal.ErrorTypeNotFound) {
			d.Reason = ReasonUserNotFound
			return d
		}
		r.logger.ErrorContext(ctx, "permission lookup failed", "user_id", userID, "error", err)
		d.Reason = ReasonLookupFailed
		return d
	}
	d.Role = subject.Role

	if subject.Disabled {
		d.Reason = ReasonUserDisabled
		return d
	}

	m, err := r.overrides.Matrix(ctx, subject)
	if err != nil {
		r.logger.ErrorContext(ctx, "override lookup failed", "user_id", userID, "error", err)
		d.Reason = ReasonLookupFailed
		return d
	}

	if m.Allows(resource, action) {
		d.Allowed = true
		d.Reason = ReasonGranted
	}
	return d
}

// ActiveOverride returns the user's override, materializing it if needed.
func (r *Resolver) ActiveOverride(ctx context.Context, userID int64) (*Override, error) {
	o, _, err := r.Materialize(ctx, userID)
	return o, err
}

func (r *Resolver) Materialize(ctx context.Context, userID int64) (*Override, bool, error) {
	subject, err := r.subjects.Subject(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	o, created, err := r.overrides.Materialize(ctx, subject)
	if err != nil {
		return nil, false, err
	}
	if created {
		r.logger.InfoContext(ctx, "permission override materialized", "user_id", userID, "role", subject.Role)
	}
	return o, created, nil
}

// MaterializeAll seeds an override for every user lacking one. Users that
// already have one are never touched, so repeated runs are no-ops.
func (r *Resolver) MaterializeAll(ctx context.Context, batchSize int) (BackfillResult, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var result BackfillResult
	var afterID int64
	for {
		subjects, err := r.repo.SubjectsWithoutOverride(ctx, afterID, batchSize)
		if err != nil {
			return result, err
		}
		if len(subjects) == 0 {
			break
		}

		for _, s := range subjects {
			result.Scanned++
			_, created, err := r.overrides.Materialize(ctx, s)
			if err != nil {
				return result, err
			}
			if created {
				result.Created++
			}
			afterID = s.UserID
		}

		if len(subjects) < batchSize {
			break
		}
	}

	r.logger.InfoContext(ctx, "permission override backfill finished", "scanned", result.Scanned, "created", result.Created)
	return result, nil
}

// Update replaces the user's active matrix. The matrix is stored as given.
func (r *Resolver) Update(ctx context.Context, userID int64, matrix Matrix, modifiedBy int64, notes string) (*Override, error) {
	if _, err := r.subjects.Subject(ctx, userID); err != nil {
		return nil, err
	}

	o := &Override{
		UserID:         userID,
		Matrix:         matrix.Clone(),
		IsActive:       true,
		LastModifiedBy: &modifiedBy,
		Notes:          notes,
	}
	updated, err := r.repo.UpsertActive(ctx, o)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to upsert permission override", "user_id", userID, "error", err)
		return nil, err
	}

	r.logger.InfoContext(ctx, "permission override updated", "user_id", userID, "modified_by", modifiedBy)
	return updated, nil
}
