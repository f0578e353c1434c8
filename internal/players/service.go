package players

import (
	"context"
	"encoding/json"

	"github.com/clubdesk/clubdesk/internal/shared"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Create(ctx context.Context, d Data) (Player, error) {
	if err := Validate(&d); err != nil {
		return Player{}, err
	}
	return s.store.Create(ctx, d)
}

// CreateMany decodes and stores every raw entry independently.
func (s *Service) CreateMany(ctx context.Context, entries []json.RawMessage) shared.BulkResult[Player] {
	return shared.CreateEach(ctx, entries, func(ctx context.Context, raw json.RawMessage) (Player, error) {
		d, err := Decode(raw)
		if err != nil {
			return Player{}, err
		}
		return s.Create(ctx, d)
	})
}

func (s *Service) Get(ctx context.Context, id string) (Player, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) (shared.Page[Player], error) {
	f.ListParams = f.ListParams.Normalize()
	errs := shared.ValidationErrors{}
	if f.MinAge != nil && *f.MinAge < 0 {
		errs.Add("minAge", "must be greater than or equal to 0")
	}
	if f.MaxAge != nil && *f.MaxAge < 0 {
		errs.Add("maxAge", "must be greater than or equal to 0")
	}
	if f.Position != "" && !ValidPosition(f.Position) {
		errs.Add("position", "is not a known position")
	}
	if err := errs.Err(); err != nil {
		return shared.Page[Player]{}, err
	}
	items, total, err := s.store.List(ctx, f)
	if err != nil {
		return shared.Page[Player]{}, err
	}
	return shared.NewPage("players retrieved", items, total, f.ListParams), nil
}

// Update merges patch into the stored player and revalidates the result
// before replacing it.
func (s *Service) Update(ctx context.Context, id string, patch map[string]any) (Player, error) {
	if err := ValidatePatch(patch); err != nil {
		return Player{}, err
	}
	return s.store.Update(ctx, id, func(current Data) (Data, error) {
		merged, err := Merge(current, patch)
		if err != nil {
			return Data{}, err
		}
		if err := Validate(&merged); err != nil {
			return Data{}, err
		}
		return merged, nil
	})
}

func (s *Service) Delete(ctx context.Context, id string) (Player, error) {
	return s.store.Delete(ctx, id)
}
