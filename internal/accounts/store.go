package accounts

import (
	"context"
	"time"
)

// Store persists accounts. Implementations return shared.ErrNotFound for
// missing ids, *shared.DuplicateError for username or email collisions and
// shared.ErrInvalidOrExpiredToken when a token lookup finds nothing.
type Store interface {
	Create(ctx context.Context, account Account) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByUsername(ctx context.Context, username string) (Account, error)
	List(ctx context.Context, filter ListFilter) ([]Account, int, error)
	// ConfirmEmail consumes a confirmation token in one statement.
	ConfirmEmail(ctx context.Context, token string) (Account, error)
	SetPasswordReset(ctx context.Context, id, token string, expires time.Time) error
	// ConsumePasswordReset swaps the hash and clears both reset fields when
	// token matches and has not expired at now.
	ConsumePasswordReset(ctx context.Context, token, passwordHash string, now time.Time) (Account, error)
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (Account, error)
	SetPassword(ctx context.Context, id, passwordHash string) (Account, error)
	Delete(ctx context.Context, id string) error
	SweepExpiredResets(ctx context.Context, now time.Time) (int64, error)
}
