package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/clubdesk/clubdesk/internal/platform/docstore"
	"github.com/clubdesk/clubdesk/internal/shared"
)

const table = "users"

// Document field names.
const (
	fieldUsername          = "username"
	fieldEmail             = "email"
	fieldPasswordHash      = "passwordHash"
	fieldRole              = "role"
	fieldEmailConfirmed    = "isEmailConfirmed"
	fieldConfirmationToken = "emailConfirmationToken"
	fieldResetToken        = "passwordResetToken"
	fieldResetExpires      = "passwordResetExpires"
)

// constraintFields maps the unique indexes to the field they guard.
var constraintFields = map[string]string{
	"users_username_key": fieldUsername,
	"users_email_key":    fieldEmail,
}

type accountDocument struct {
	Username               string     `json:"username"`
	Email                  string     `json:"email"`
	PasswordHash           string     `json:"passwordHash"`
	Role                   string     `json:"role"`
	IsEmailConfirmed       bool       `json:"isEmailConfirmed"`
	EmailConfirmationToken string     `json:"emailConfirmationToken,omitempty"`
	PasswordResetToken     string     `json:"passwordResetToken,omitempty"`
	PasswordResetExpires   *time.Time `json:"passwordResetExpires,omitempty"`
}

func toDocument(a Account) accountDocument {
	return accountDocument{
		Username:               a.Username,
		Email:                  a.Email,
		PasswordHash:           a.PasswordHash,
		Role:                   a.Role,
		IsEmailConfirmed:       a.IsEmailConfirmed,
		EmailConfirmationToken: a.EmailConfirmationToken,
		PasswordResetToken:     a.PasswordResetToken,
		PasswordResetExpires:   a.PasswordResetExpires,
	}
}

func fromDocument(d docstore.Document[accountDocument]) Account {
	return Account{
		ID:                     d.ID,
		Username:               d.Data.Username,
		Email:                  d.Data.Email,
		PasswordHash:           d.Data.PasswordHash,
		Role:                   d.Data.Role,
		IsEmailConfirmed:       d.Data.IsEmailConfirmed,
		EmailConfirmationToken: d.Data.EmailConfirmationToken,
		PasswordResetToken:     d.Data.PasswordResetToken,
		PasswordResetExpires:   d.Data.PasswordResetExpires,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
	}
}

// PGStore keeps accounts in the users jsonb collection.
type PGStore struct {
	coll *docstore.Collection[accountDocument]
}

// NewPGStore binds the store to db.
func NewPGStore(db docstore.DBTX) (*PGStore, error) {
	coll, err := docstore.NewCollection[accountDocument](db, table)
	if err != nil {
		return nil, err
	}
	return &PGStore{coll: coll}, nil
}

func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return shared.ErrNotFound
	}
	if constraint, ok := docstore.IsDuplicate(err); ok {
		field := constraintFields[constraint]
		if field == "" {
			field = "username or email"
		}
		return &shared.DuplicateError{Field: field}
	}
	return fmt.Errorf("accounts: %s: %w", op, err)
}

func (s *PGStore) Create(ctx context.Context, account Account) (Account, error) {
	doc, err := s.coll.Insert(ctx, toDocument(account))
	if err != nil {
		return Account{}, storeErr("create", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) FindByID(ctx context.Context, id string) (Account, error) {
	doc, err := s.coll.FindByID(ctx, id)
	if err != nil {
		return Account{}, storeErr("find by id", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.findOne(ctx, "find by email", docstore.Eq(fieldEmail, email))
}

func (s *PGStore) FindByUsername(ctx context.Context, username string) (Account, error) {
	return s.findOne(ctx, "find by username", docstore.Eq(fieldUsername, username))
}

func (s *PGStore) findOne(ctx context.Context, op string, cond docstore.Condition) (Account, error) {
	doc, err := s.coll.FindOne(ctx, docstore.Query{Where: []docstore.Condition{cond}})
	if err != nil {
		return Account{}, storeErr(op, err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) List(ctx context.Context, filter ListFilter) ([]Account, int, error) {
	var where []docstore.Condition
	if filter.Username != "" {
		where = append(where, docstore.Regex(fieldUsername, regexp.QuoteMeta(filter.Username)))
	}
	if filter.Email != "" {
		where = append(where, docstore.Regex(fieldEmail, regexp.QuoteMeta(filter.Email)))
	}
	if filter.Role != "" {
		where = append(where, docstore.Eq(fieldRole, filter.Role))
	}
	q := docstore.Query{Where: where, Skip: filter.Offset(), Limit: filter.Limit}
	if path := filter.SortPath(); path != "" {
		q.Sort = []docstore.Sort{{Path: path, Desc: filter.Desc()}}
	}

	total, err := s.coll.Count(ctx, q)
	if err != nil {
		return nil, 0, storeErr("count", err)
	}
	docs, err := s.coll.Find(ctx, q)
	if err != nil {
		return nil, 0, storeErr("list", err)
	}
	out := make([]Account, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, total, nil
}

func (s *PGStore) ConfirmEmail(ctx context.Context, token string) (Account, error) {
	doc, err := s.coll.FindOneAndUpdate(ctx,
		docstore.Query{Where: []docstore.Condition{docstore.Eq(fieldConfirmationToken, token)}},
		docstore.Update{
			Set:   map[string]any{fieldEmailConfirmed: true},
			Unset: []string{fieldConfirmationToken},
		})
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, shared.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return Account{}, storeErr("confirm email", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) SetPasswordReset(ctx context.Context, id, token string, expires time.Time) error {
	_, err := s.coll.UpdateByID(ctx, id, docstore.Update{Set: map[string]any{
		fieldResetToken:   token,
		fieldResetExpires: expires.UTC(),
	}})
	return storeErr("set password reset", err)
}

func (s *PGStore) ConsumePasswordReset(ctx context.Context, token, passwordHash string, now time.Time) (Account, error) {
	doc, err := s.coll.FindOneAndUpdate(ctx,
		docstore.Query{Where: []docstore.Condition{
			docstore.Eq(fieldResetToken, token),
			docstore.Gt(fieldResetExpires, now.UTC()),
		}},
		docstore.Update{
			Set:   map[string]any{fieldPasswordHash: passwordHash},
			Unset: []string{fieldResetToken, fieldResetExpires},
		})
	if errors.Is(err, docstore.ErrNotFound) {
		return Account{}, shared.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return Account{}, storeErr("consume password reset", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (Account, error) {
	set := map[string]any{}
	if changes.Username != nil {
		set[fieldUsername] = *changes.Username
	}
	if changes.Email != nil {
		set[fieldEmail] = *changes.Email
	}
	if changes.Role != nil {
		set[fieldRole] = *changes.Role
	}
	var unset []string
	if changes.IsEmailConfirmed != nil {
		set[fieldEmailConfirmed] = *changes.IsEmailConfirmed
		if *changes.IsEmailConfirmed {
			unset = append(unset, fieldConfirmationToken)
		}
	}
	if changes.ConfirmationToken != "" {
		set[fieldConfirmationToken] = changes.ConfirmationToken
	}
	doc, err := s.coll.UpdateByID(ctx, id, docstore.Update{Set: set, Unset: unset})
	if err != nil {
		return Account{}, storeErr("update profile", err)
	}
	return fromDocument(doc), nil
}

// SetPassword replaces the hash and drops any pending reset.
func (s *PGStore) SetPassword(ctx context.Context, id, passwordHash string) (Account, error) {
	doc, err := s.coll.UpdateByID(ctx, id, docstore.Update{
		Set:   map[string]any{fieldPasswordHash: passwordHash},
		Unset: []string{fieldResetToken, fieldResetExpires},
	})
	if err != nil {
		return Account{}, storeErr("set password", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteByID(ctx, id)
	return storeErr("delete", err)
}

// SweepExpiredResets clears reset fields whose expiry is before now.
func (s *PGStore) SweepExpiredResets(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.coll.UpdateWhere(ctx,
		docstore.Query{Where: []docstore.Condition{
			docstore.Exists(fieldResetToken),
			docstore.Lte(fieldResetExpires, now.UTC()),
		}},
		docstore.Update{Unset: []string{fieldResetToken, fieldResetExpires}})
	if err != nil {
		return 0, storeErr("sweep expired resets", err)
	}
	return n, nil
}

var _ Store = (*PGStore)(nil)
