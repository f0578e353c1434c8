package docstore

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrDuplicate matches every DuplicateKeyError.
	ErrDuplicate = errors.New("docstore: duplicate key")
	// ErrConflict is returned when a transaction lost a serialization race.
	ErrConflict = errors.New("docstore: concurrent update")
)

// DuplicateKeyError reports a unique index violation.
type DuplicateKeyError struct {
	Constraint string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("docstore: duplicate key violates %s", e.Constraint)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicate }

// IsConflict reports whether err is a serialization failure, translated or
// raw from a commit.
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.SerializationFailure
}

// IsDuplicate reports whether err is a unique violation and returns the
// constraint name.
func IsDuplicate(err error) (string, bool) {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Constraint, true
	}
	return "", false
}

func translate(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return &DuplicateKeyError{Constraint: pgErr.ConstraintName}
		case pgerrcode.SerializationFailure:
			return ErrConflict
		}
	}
	return fmt.Errorf("docstore: %s %s: %w", op, table, err)
}
