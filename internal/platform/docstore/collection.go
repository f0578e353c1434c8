// Package docstore stores JSON documents in Postgres jsonb tables. Each
// collection is a table with columns id, doc, created_at and updated_at.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Document wraps a stored value with its identity and timestamps.
type Document[T any] struct {
	ID        string
	Data      T
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Collection is a typed view over one table.
type Collection[T any] struct {
	db    DBTX
	table string
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

const columns = "id::text, doc, created_at, updated_at"

// NewCollection binds T to table. The table name is interpolated into SQL so
// it must be a plain lowercase identifier.
func NewCollection[T any](db DBTX, table string) (*Collection[T], error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("docstore: invalid table name %q", table)
	}
	return &Collection[T]{db: db, table: table}, nil
}

// WithTx returns a copy of c whose statements run on tx.
func (c *Collection[T]) WithTx(tx DBTX) *Collection[T] {
	return &Collection[T]{db: tx, table: c.table}
}

func (c *Collection[T]) scan(row pgx.Row) (Document[T], error) {
	var (
		doc Document[T]
		raw []byte
	)
	if err := row.Scan(&doc.ID, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document[T]{}, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return Document[T]{}, fmt.Errorf("docstore: decode %s/%s: %w", c.table, doc.ID, err)
	}
	return doc, nil
}

// Insert stores data under a fresh UUID.
func (c *Collection[T]) Insert(ctx context.Context, data T) (Document[T], error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Document[T]{}, fmt.Errorf("docstore: encode %s: %w", c.table, err)
	}
	sql := "INSERT INTO " + c.table + " (id, doc) VALUES ($1, $2::jsonb) RETURNING " + columns
	doc, err := c.scan(c.db.QueryRow(ctx, sql, uuid.NewString(), string(raw)))
	if err != nil {
		return Document[T]{}, translate("insert", c.table, err)
	}
	return doc, nil
}

// FindByID loads one document. Malformed ids are reported as ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (Document[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document[T]{}, ErrNotFound
	}
	sql := "SELECT " + columns + " FROM " + c.table + " WHERE id = $1"
	doc, err := c.scan(c.db.QueryRow(ctx, sql, id))
	if err != nil {
		return Document[T]{}, translate("find", c.table, err)
	}
	return doc, nil
}

// FindByIDForUpdate loads one document and locks its row until the
// surrounding transaction ends.
func (c *Collection[T]) FindByIDForUpdate(ctx context.Context, id string) (Document[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document[T]{}, ErrNotFound
	}
	sql := "SELECT " + columns + " FROM " + c.table + " WHERE id = $1 FOR UPDATE"
	doc, err := c.scan(c.db.QueryRow(ctx, sql, id))
	if err != nil {
		return Document[T]{}, translate("lock", c.table, err)
	}
	return doc, nil
}

// FindOne returns the first document matching q.
func (c *Collection[T]) FindOne(ctx context.Context, q Query) (Document[T], error) {
	q.Limit = 1
	q.Skip = 0
	docs, err := c.Find(ctx, q)
	if err != nil {
		return Document[T]{}, err
	}
	if len(docs) == 0 {
		return Document[T]{}, ErrNotFound
	}
	return docs[0], nil
}

// Find returns every document matching q in sort order.
func (c *Collection[T]) Find(ctx context.Context, q Query) ([]Document[T], error) {
	var b builder
	where, err := b.where(q)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(q.Sort)
	if err != nil {
		return nil, err
	}
	sql := "SELECT " + columns + " FROM " + c.table + " WHERE " + where + " ORDER BY " + order + b.page(q)
	rows, err := c.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, translate("find", c.table, err)
	}
	defer rows.Close()

	docs := make([]Document[T], 0)
	for rows.Next() {
		doc, err := c.scan(rows)
		if err != nil {
			return nil, translate("scan", c.table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("find", c.table, err)
	}
	return docs, nil
}

// Count returns how many documents match q, ignoring paging and sort.
func (c *Collection[T]) Count(ctx context.Context, q Query) (int, error) {
	var b builder
	where, err := b.where(q)
	if err != nil {
		return 0, err
	}
	var n int
	sql := "SELECT count(*) FROM " + c.table + " WHERE " + where
	if err := c.db.QueryRow(ctx, sql, b.args...).Scan(&n); err != nil {
		return 0, translate("count", c.table, err)
	}
	return n, nil
}

// UpdateByID applies u and returns the updated document.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, u Update) (Document[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document[T]{}, ErrNotFound
	}
	var b builder
	set, err := b.update(u)
	if err != nil {
		return Document[T]{}, err
	}
	sql := "UPDATE " + c.table + " SET " + set + " WHERE id = " + b.arg(id) + " RETURNING " + columns
	doc, err := c.scan(c.db.QueryRow(ctx, sql, b.args...))
	if err != nil {
		return Document[T]{}, translate("update", c.table, err)
	}
	return doc, nil
}

// ReplaceByID overwrites the whole document.
func (c *Collection[T]) ReplaceByID(ctx context.Context, id string, data T) (Document[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document[T]{}, ErrNotFound
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Document[T]{}, fmt.Errorf("docstore: encode %s: %w", c.table, err)
	}
	sql := "UPDATE " + c.table + " SET doc = $1::jsonb, updated_at = now() WHERE id = $2 RETURNING " + columns
	doc, err := c.scan(c.db.QueryRow(ctx, sql, string(raw), id))
	if err != nil {
		return Document[T]{}, translate("replace", c.table, err)
	}
	return doc, nil
}

// FindOneAndUpdate atomically applies u to the first document matching q.
// The filter is re-checked on the locked row so two concurrent callers
// cannot both consume the same match.
func (c *Collection[T]) FindOneAndUpdate(ctx context.Context, q Query, u Update) (Document[T], error) {
	var b builder
	set, err := b.update(u)
	if err != nil {
		return Document[T]{}, err
	}
	inner, err := b.where(q)
	if err != nil {
		return Document[T]{}, err
	}
	sql := "UPDATE " + c.table + " SET " + set +
		" WHERE id = (SELECT id FROM " + c.table + " WHERE " + inner + " ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE)" +
		" AND " + inner + " RETURNING " + columns
	doc, err := c.scan(c.db.QueryRow(ctx, sql, b.args...))
	if err != nil {
		return Document[T]{}, translate("update", c.table, err)
	}
	return doc, nil
}

// DeleteByID removes a document and returns what was deleted.
func (c *Collection[T]) DeleteByID(ctx context.Context, id string) (Document[T], error) {
	if _, err := uuid.Parse(id); err != nil {
		return Document[T]{}, ErrNotFound
	}
	sql := "DELETE FROM " + c.table + " WHERE id = $1 RETURNING " + columns
	doc, err := c.scan(c.db.QueryRow(ctx, sql, id))
	if err != nil {
		return Document[T]{}, translate("delete", c.table, err)
	}
	return doc, nil
}

// UpdateWhere applies u to every document matching q and returns how many
// rows changed.
func (c *Collection[T]) UpdateWhere(ctx context.Context, q Query, u Update) (int64, error) {
	var b builder
	set, err := b.update(u)
	if err != nil {
		return 0, err
	}
	where, err := b.where(q)
	if err != nil {
		return 0, err
	}
	tag, err := c.db.Exec(ctx, "UPDATE "+c.table+" SET "+set+" WHERE "+where, b.args...)
	if err != nil {
		return 0, translate("update", c.table, err)
	}
	return tag.RowsAffected(), nil
}
