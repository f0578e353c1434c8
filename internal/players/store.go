package players

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clubdesk/clubdesk/internal/platform/db"
	"github.com/clubdesk/clubdesk/internal/platform/docstore"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// Store persists players.
type Store interface {
	Create(ctx context.Context, d Data) (Player, error)
	Get(ctx context.Context, id string) (Player, error)
	List(ctx context.Context, f ListFilter) ([]Player, int, error)
	// Update replaces the player with fn's result. fn sees the current data
	// and no other writer changes the player in between.
	Update(ctx context.Context, id string, fn func(Data) (Data, error)) (Player, error)
	Delete(ctx context.Context, id string) (Player, error)
}

const (
	dateLayout     = "2006-01-02"
	updateAttempts = 3
)

// Conn runs statements and opens transactions. *pgxpool.Pool implements it.
type Conn interface {
	docstore.DBTX
	db.TxStarter
}

// PGStore keeps players in the players jsonb collection.
type PGStore struct {
	conn Conn
	coll *docstore.Collection[Data]
	now  func() time.Time
}

func NewPGStore(conn Conn) (*PGStore, error) {
	coll, err := docstore.NewCollection[Data](conn, "players")
	if err != nil {
		return nil, err
	}
	return &PGStore{conn: conn, coll: coll, now: time.Now}, nil
}

func fromDocument(d docstore.Document[Data]) Player {
	if d.Data.MedicalHistory == nil {
		d.Data.MedicalHistory = []MedicalEntry{}
	}
	return Player{ID: d.ID, Data: d.Data, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return shared.ErrNotFound
	}
	return fmt.Errorf("players: %s: %w", op, err)
}

// listQuery translates f into a collection query. Ages are measured on today.
func listQuery(f ListFilter, today time.Time) docstore.Query {
	var q docstore.Query
	if f.Name != "" {
		q.Where = append(q.Where, docstore.Regex("personalData.name", regexp.QuoteMeta(f.Name)))
	}
	if f.Position != "" {
		for _, group := range PositionGroups {
			q.AnyOf = append(q.AnyOf, docstore.Contains("footballAttributes.firstPosition."+group, f.Position))
		}
	}
	// Dates are YYYY-MM-DD so text comparison follows calendar order.
	if f.MinAge != nil {
		q.Where = append(q.Where, docstore.Lte("personalData.dateOfBirth", today.AddDate(-*f.MinAge, 0, 0).Format(dateLayout)))
	}
	if f.MaxAge != nil {
		q.Where = append(q.Where, docstore.Gte("personalData.dateOfBirth", today.AddDate(-*f.MaxAge, 0, 0).Format(dateLayout)))
	}
	if f.SortBy == "age" {
		// Youngest first for ascending age means latest birth date first.
		q.Sort = []docstore.Sort{{Path: "personalData.dateOfBirth", Desc: !f.Desc()}}
	} else {
		q.Sort = []docstore.Sort{{Path: "personalData.name", Desc: f.Desc()}}
	}
	q.Skip = f.Offset()
	q.Limit = f.Limit
	return q
}

func (s *PGStore) Create(ctx context.Context, d Data) (Player, error) {
	doc, err := s.coll.Insert(ctx, d)
	if err != nil {
		return Player{}, wrap("create", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Player, error) {
	doc, err := s.coll.FindByID(ctx, id)
	if err != nil {
		return Player{}, wrap("get", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]Player, int, error) {
	q := listQuery(f, s.now().UTC())
	total, err := s.coll.Count(ctx, q)
	if err != nil {
		return nil, 0, wrap("count", err)
	}
	docs, err := s.coll.Find(ctx, q)
	if err != nil {
		return nil, 0, wrap("list", err)
	}
	out := make([]Player, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, total, nil
}

// Update locks the row, applies fn and writes the result in one transaction.
// Serialization failures are retried a few times before ErrConflict.
func (s *PGStore) Update(ctx context.Context, id string, fn func(Data) (Data, error)) (Player, error) {
	var (
		out Player
		err error
	)
	for range updateAttempts {
		err = db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
			coll := s.coll.WithTx(tx)
			current, err := coll.FindByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			next, err := fn(current.Data)
			if err != nil {
				return err
			}
			doc, err := coll.ReplaceByID(ctx, id, next)
			if err != nil {
				return err
			}
			out = fromDocument(doc)
			return nil
		})
		if !docstore.IsConflict(err) {
			break
		}
	}
	if docstore.IsConflict(err) {
		return Player{}, shared.ErrConflict
	}
	if err != nil {
		return Player{}, wrap("update", err)
	}
	return out, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) (Player, error) {
	doc, err := s.coll.DeleteByID(ctx, id)
	if err != nil {
		return Player{}, wrap("delete", err)
	}
	return fromDocument(doc), nil
}

var _ Store = (*PGStore)(nil)
