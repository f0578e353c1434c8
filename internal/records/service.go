package records

import (
	"context"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// Service validates record input before it reaches the store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, in Input) (Record, error) {
	if err := Validate(&in); err != nil {
		return Record{}, err
	}
	return s.store.Create(ctx, in)
}

// CreateMany persists each entry on its own; invalid entries are reported
// without blocking the valid ones.
func (s *Service) CreateMany(ctx context.Context, inputs []Input) shared.BulkResult[Record] {
	return shared.CreateEach(ctx, inputs, s.Create)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) (shared.Page[Record], error) {
	f.ListParams = f.ListParams.Normalize()
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return shared.Page[Record]{}, err
	}
	return shared.NewPage("records retrieved", items, total, f.ListParams), nil
}

func (s *Service) Update(ctx context.Context, id string, p Patch) (Record, error) {
	if err := ValidatePatch(&p); err != nil {
		return Record{}, err
	}
	return s.store.Update(ctx, id, p)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
