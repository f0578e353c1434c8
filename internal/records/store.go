package records

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/clubdesk/clubdesk/internal/platform/docstore"
	"github.com/clubdesk/clubdesk/internal/shared"
)

// Store persists records.
type Store interface {
	Create(ctx context.Context, in Input) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, filter ListFilter) ([]Record, int, error)
	Update(ctx context.Context, id string, patch Patch) (Record, error)
	Delete(ctx context.Context, id string) error
}

type recordDocument struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	Level    string `json:"level"`
}

func fromDocument(d docstore.Document[recordDocument]) Record {
	return Record{
		ID:        d.ID,
		Name:      d.Data.Name,
		Position:  d.Data.Position,
		Level:     d.Data.Level,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// PGStore keeps records in the records jsonb collection.
type PGStore struct {
	coll *docstore.Collection[recordDocument]
}

func NewPGStore(db docstore.DBTX) (*PGStore, error) {
	coll, err := docstore.NewCollection[recordDocument](db, "records")
	if err != nil {
		return nil, err
	}
	return &PGStore{coll: coll}, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return shared.ErrNotFound
	}
	return fmt.Errorf("records: %s: %w", op, err)
}

func (s *PGStore) Create(ctx context.Context, in Input) (Record, error) {
	doc, err := s.coll.Insert(ctx, recordDocument(in))
	if err != nil {
		return Record{}, wrap("create", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	doc, err := s.coll.FindByID(ctx, id)
	if err != nil {
		return Record{}, wrap("get", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]Record, int, error) {
	var where []docstore.Condition
	if f.Name != "" {
		where = append(where, docstore.Regex("name", regexp.QuoteMeta(f.Name)))
	}
	if f.Position != "" {
		where = append(where, docstore.Eq("position", f.Position))
	}
	if f.Level != "" {
		where = append(where, docstore.Eq("level", f.Level))
	}
	q := docstore.Query{Where: where, Skip: f.Offset(), Limit: f.Limit}
	if path := f.sortPath(); path != "" {
		q.Sort = []docstore.Sort{{Path: path, Desc: f.Desc()}}
	}
	total, err := s.coll.Count(ctx, q)
	if err != nil {
		return nil, 0, wrap("count", err)
	}
	docs, err := s.coll.Find(ctx, q)
	if err != nil {
		return nil, 0, wrap("list", err)
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDocument(d))
	}
	return out, total, nil
}

func (s *PGStore) Update(ctx context.Context, id string, p Patch) (Record, error) {
	set := map[string]any{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Position != nil {
		set["position"] = *p.Position
	}
	if p.Level != nil {
		set["level"] = *p.Level
	}
	doc, err := s.coll.UpdateByID(ctx, id, docstore.Update{Set: set})
	if err != nil {
		return Record{}, wrap("update", err)
	}
	return fromDocument(doc), nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteByID(ctx, id)
	return wrap("delete", err)
}

var _ Store = (*PGStore)(nil)
