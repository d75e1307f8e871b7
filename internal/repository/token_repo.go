package repository

import (
	"context"
	"errors"
	"time"

	"github.com/proofhub/proof-notify/internal/domain"
)

// ErrHashCollision is returned by Issue when the generated token hash already
// exists. Callers regenerate the token and try again.
var ErrHashCollision = errors.New("token hash collision")

// TokenRepository persists hashed invite and reset tokens.
//
// Issue is atomic per (subject, purpose): if an active token exists it returns
// *domain.DuplicateTokenError, unless force is set, in which case the active
// token is expired at now before the new row is inserted.
//
// Consume marks the token consumed in a single conditional statement and
// returns domain.ErrNotFound when no active row matched.
//
// Revoke expires the token with the given id at now if it is still active.
// Revoking an inactive or unknown token is a no-op.
type TokenRepository interface {
	Issue(ctx context.Context, t *domain.AuthToken, force bool, now time.Time) error
	GetByHash(ctx context.Context, hash string) (*domain.AuthToken, error)
	Consume(ctx context.Context, hash string, purpose domain.Purpose, now time.Time) (*domain.AuthToken, error)
	Latest(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.AuthToken, error)
	Revoke(ctx context.Context, id string, now time.Time) error
}
