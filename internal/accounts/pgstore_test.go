package accounts

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubdesk/clubdesk/internal/shared"
)

var docColumns = []string{"id", "doc", "created_at", "updated_at"}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PGStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewPGStore(mock)
	require.NoError(t, err)
	return mock, store
}

func TestPGStoreCreateMapsConstraintToField(t *testing.T) {
	for constraint, field := range map[string]string{
		"users_username_key": "username",
		"users_email_key":    "email",
		"users_other_key":    "username or email",
	} {
		t.Run(constraint, func(t *testing.T) {
			mock, store := newMockStore(t)
			mock.ExpectQuery("INSERT INTO users").
				WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint})

			_, err := store.Create(context.Background(), Account{Username: "ana", Email: "ana@example.com", PasswordHash: "h", Role: "user"})
			require.ErrorIs(t, err, shared.ErrDuplicateIdentity)
			var dup *shared.DuplicateError
			require.True(t, errors.As(err, &dup))
			assert.Equal(t, field, dup.Field)
		})
	}
}

func TestPGStoreFindByEmailDecodesDocument(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := `{"username":"ana","email":"ana@example.com","passwordHash":"$2a$10$x","role":"admin","isEmailConfirmed":true}`

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE doc @> $1::jsonb ORDER BY created_at ASC, id ASC LIMIT $2")).
		WithArgs(`{"email":"ana@example.com"}`, 1).
		WillReturnRows(pgxmock.NewRows(docColumns).AddRow("9f1c1d4e-0c55-4b8a-9a0e-2f9f0e3c1a11", []byte(doc), now, now))

	a, err := store.FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ana", a.Username)
	assert.Equal(t, "admin", a.Role)
	assert.True(t, a.IsEmailConfirmed)
	assert.Equal(t, "$2a$10$x", a.PasswordHash)
	assert.Nil(t, a.PasswordResetExpires)
}

func TestPGStoreFindByEmailMissing(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("FROM users").WithArgs(`{"email":"x@y.z"}`, 1).WillReturnRows(pgxmock.NewRows(docColumns))

	_, err := store.FindByEmail(context.Background(), "x@y.z")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPGStoreConfirmEmailUnknownToken(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET doc = (doc || $1::jsonb) - $2::text[]")).
		WithArgs(`{"isEmailConfirmed":true}`, []string{"emailConfirmationToken"}, `{"emailConfirmationToken":"tok"}`).
		WillReturnRows(pgxmock.NewRows(docColumns))

	_, err := store.ConfirmEmail(context.Background(), "tok")
	assert.ErrorIs(t, err, shared.ErrInvalidOrExpiredToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreConsumeResetChecksExpiry(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("doc @> $3::jsonb AND (doc #>> $4::text[])::timestamptz > $5")).
		WithArgs(`{"passwordHash":"newhash"}`, []string{"passwordResetToken", "passwordResetExpires"},
			`{"passwordResetToken":"tok"}`, []string{"passwordResetExpires"}, now).
		WillReturnRows(pgxmock.NewRows(docColumns))

	_, err := store.ConsumePasswordReset(context.Background(), "tok", "newhash", now)
	assert.ErrorIs(t, err, shared.ErrInvalidOrExpiredToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreDeleteMalformedID(t *testing.T) {
	_, store := newMockStore(t)
	assert.ErrorIs(t, store.Delete(context.Background(), "nope"), shared.ErrNotFound)
}

func TestPGStoreSweepExpiredResetsReportsRows(t *testing.T) {
	mock, store := newMockStore(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("WHERE doc #> $3::text[] IS NOT NULL AND (doc #>> $4::text[])::timestamptz <= $5")).
		WithArgs(`{}`, []string{fieldResetToken, fieldResetExpires}, []string{fieldResetToken}, []string{fieldResetExpires}, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.SweepExpiredResets(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStoreConfirmingProfileDropsToken(t *testing.T) {
	mock, store := newMockStore(t)
	id := "9f1c1d4e-0c55-4b8a-9a0e-2f9f0e3c1a11"
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := `{"username":"ana","email":"ana@example.com","passwordHash":"h","role":"user","isEmailConfirmed":true}`

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(`{"isEmailConfirmed":true}`, []string{"emailConfirmationToken"}, id).
		WillReturnRows(pgxmock.NewRows(docColumns).AddRow(id, []byte(doc), now, now))

	confirmed := true
	a, err := store.UpdateProfile(context.Background(), id, ProfileChanges{IsEmailConfirmed: &confirmed})
	require.NoError(t, err)
	assert.True(t, a.IsEmailConfirmed)
	assert.Empty(t, a.EmailConfirmationToken)
	require.NoError(t, mock.ExpectationsWereMet())
}
