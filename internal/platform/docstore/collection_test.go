package docstore

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
)

type item struct {
	Name  string   `json:"name"`
	Level string   `json:"level,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

var cols = []string{"id", "doc", "created_at", "updated_at"}

const itemID = "0b9a6a66-5b0e-4d9c-9a51-6f1c3c2b7d10"

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Collection[item]) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	coll, err := NewCollection[item](mock, "items")
	require.NoError(t, err)
	return mock, coll
}

func TestNewCollectionRejectsUnsafeTableNames(t *testing.T) {
	for _, name := range []string{"", "Items", "items; DROP TABLE users", "1items", "a-b"} {
		_, err := NewCollection[item](nil, name)
		assert.Error(t, err, name)
	}
}

func TestInsertReturnsStoredDocument(t *testing.T) {
	mock, coll := newMock(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO items (id, doc) VALUES ($1, $2::jsonb) RETURNING id::text, doc, created_at, updated_at")).
		WithArgs(pgxmock.AnyArg(), `{"name":"Ana"}`).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(itemID, []byte(`{"name":"Ana"}`), now, now))

	doc, err := coll.Insert(context.Background(), item{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, itemID, doc.ID)
	assert.Equal(t, "Ana", doc.Data.Name)
	assert.Equal(t, now, doc.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTranslatesUniqueViolation(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectQuery("INSERT INTO items").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "items_name_key"})

	_, err := coll.Insert(context.Background(), item{Name: "Ana"})
	assert.ErrorIs(t, err, ErrDuplicate)
	constraint, ok := IsDuplicate(err)
	require.True(t, ok)
	assert.Equal(t, "items_name_key", constraint)
}

func TestFindByIDMalformedIDIsNotFound(t *testing.T) {
	mock, coll := newMock(t)

	_, err := coll.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDMissingRow(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id::text, doc, created_at, updated_at FROM items WHERE id = $1")).
		WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows(cols))

	_, err := coll.FindByID(context.Background(), itemID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindBuildsFilterSortAndPage(t *testing.T) {
	mock, coll := newMock(t)
	now := time.Now().UTC()

	want := "SELECT id::text, doc, created_at, updated_at FROM items WHERE " +
		"doc #>> $1::text[] ~* $2 AND doc @> $3::jsonb AND (doc #> $4::text[] @> $5::jsonb OR doc #> $6::text[] @> $7::jsonb) " +
		"ORDER BY doc #>> $8::text[] DESC, created_at ASC, id ASC LIMIT $9 OFFSET $10"
	mock.ExpectQuery(regexp.QuoteMeta(want)).
		WithArgs([]string{"name"}, "an", `{"level":"Senior"}`,
			[]string{"tags"}, `["a"]`, []string{"tags"}, `["b"]`,
			[]string{"name"}, 10, 20).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(itemID, []byte(`{"name":"Ana","level":"Senior"}`), now, now))

	docs, err := coll.Find(context.Background(), Query{
		Where: []Condition{Regex("name", "an"), Eq("level", "Senior")},
		AnyOf: []Condition{Contains("tags", "a"), Contains("tags", "b")},
		Sort:  []Sort{{Path: "name", Desc: true}},
		Skip:  20,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Senior", docs[0].Data.Level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindEmptyQuery(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE TRUE ORDER BY created_at ASC, id ASC")).
		WillReturnRows(pgxmock.NewRows(cols))

	docs, err := coll.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestCountIgnoresPaging(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM items WHERE doc #>> $1::text[] >= $2")).
		WithArgs([]string{"born"}, "1990-01-01").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	n, err := coll.Count(context.Background(), Query{Where: []Condition{Gte("born", "1990-01-01")}, Limit: 1, Skip: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRangeCastsByValueType(t *testing.T) {
	var b builder
	clause, err := b.condition(Gt("age", 30))
	require.NoError(t, err)
	assert.Equal(t, "(doc #>> $1::text[])::numeric > $2", clause)

	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clause, err = b.condition(Lt("expires", when))
	require.NoError(t, err)
	assert.Equal(t, "(doc #>> $3::text[])::timestamptz < $4", clause)

	_, err = b.condition(Gt("x", struct{}{}))
	assert.Error(t, err)
}

func TestConditionRejectsBadPaths(t *testing.T) {
	var b builder
	_, err := b.condition(Eq("", 1))
	assert.Error(t, err)
	_, err = b.condition(Eq("a..b", 1))
	assert.Error(t, err)
	_, err = b.condition(Condition{Path: "a", Op: "near"})
	assert.Error(t, err)
}

func TestEqNestsDottedPaths(t *testing.T) {
	var b builder
	clause, err := b.condition(Eq("profile.contact.email", "a@b.c"))
	require.NoError(t, err)
	assert.Equal(t, "doc @> $1::jsonb", clause)
	assert.Equal(t, `{"profile":{"contact":{"email":"a@b.c"}}}`, b.args[0])
}

func TestUpdateByIDMergesAndUnsets(t *testing.T) {
	mock, coll := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE items SET doc = (doc || $1::jsonb) - $2::text[], updated_at = now() WHERE id = $3 RETURNING")).
		WithArgs(`{"level":"Mid"}`, []string{"tags"}, itemID).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(itemID, []byte(`{"name":"Ana","level":"Mid"}`), now, now))

	doc, err := coll.UpdateByID(context.Background(), itemID, Update{Set: map[string]any{"level": "Mid"}, Unset: []string{"tags"}})
	require.NoError(t, err)
	assert.Equal(t, "Mid", doc.Data.Level)
}

func TestUpdateNilUnsetBindsEmptyArray(t *testing.T) {
	var b builder
	_, err := b.update(Update{})
	require.NoError(t, err)
	assert.Equal(t, "{}", b.args[0])
	assert.Equal(t, []string{}, b.args[1])
}

func TestFindOneAndUpdateRechecksFilter(t *testing.T) {
	mock, coll := newMock(t)

	want := "UPDATE items SET doc = (doc || $1::jsonb) - $2::text[], updated_at = now() " +
		"WHERE id = (SELECT id FROM items WHERE doc @> $3::jsonb ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE) " +
		"AND doc @> $3::jsonb RETURNING"
	mock.ExpectQuery(regexp.QuoteMeta(want)).
		WithArgs(`{}`, []string{"token"}, `{"token":"abc"}`).
		WillReturnRows(pgxmock.NewRows(cols))

	_, err := coll.FindOneAndUpdate(context.Background(),
		Query{Where: []Condition{Eq("token", "abc")}},
		Update{Unset: []string{"token"}})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByIDWrapsDriverErrors(t *testing.T) {
	mock, coll := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM items WHERE id = $1 RETURNING")).
		WithArgs(itemID).
		WillReturnError(boom)

	_, err := coll.DeleteByID(context.Background(), itemID)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUpdateWhereReportsRowsAffected(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE items SET doc = (doc || $1::jsonb) - $2::text[], updated_at = now() WHERE doc #> $3::text[] IS NOT NULL")).
		WithArgs(`{}`, []string{"tags"}, []string{"tags"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := coll.UpdateWhere(context.Background(), Query{Where: []Condition{Exists("tags")}}, Update{Unset: []string{"tags"}})
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestFindByIDForUpdateInTx(t *testing.T) {
	mock, coll := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id::text, doc, created_at, updated_at FROM items WHERE id = $1 FOR UPDATE")).
		WithArgs(itemID).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	_, err = coll.WithTx(tx).FindByIDForUpdate(context.Background(), itemID)
	assert.ErrorIs(t, err, ErrConflict)
	assert.True(t, IsConflict(err))
	require.NoError(t, tx.Rollback(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = coll.FindByIDForUpdate(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}
