package records

import (
	"strings"
	"time"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// Levels accepted for a record.
const (
	LevelJunior = "Junior"
	LevelMid    = "Mid"
	LevelSenior = "Senior"
)

// Record is a staff entry with a name, position and seniority level.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is the create payload.
type Input struct {
	Name     string `json:"name" validate:"required,min=3,max=50"`
	Position string `json:"position" validate:"required"`
	Level    string `json:"level" validate:"required,oneof=Junior Mid Senior"`
}

// Patch is a partial update.
type Patch struct {
	Name     *string `json:"name" validate:"omitempty,min=3,max=50"`
	Position *string `json:"position" validate:"omitempty,min=1"`
	Level    *string `json:"level" validate:"omitempty,oneof=Junior Mid Senior"`
}

// ListFilter narrows GET /record.
type ListFilter struct {
	Name     string
	Position string
	Level    string
	shared.ListParams
}

var sortPaths = map[string]string{"name": "name", "level": "level"}

func (f ListFilter) sortPath() string { return sortPaths[f.SortBy] }

// Validate trims in and reports field errors.
func Validate(in *Input) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Position = strings.TrimSpace(in.Position)
	return shared.ValidateStruct(in).Err()
}

// ValidatePatch trims p and reports field errors.
func ValidatePatch(p *Patch) error {
	for _, f := range []*string{p.Name, p.Position} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	errs := shared.ValidateStruct(p)
	if p.Name == nil && p.Position == nil && p.Level == nil {
		errs.Add("body", "no updatable fields provided")
	}
	return errs.Err()
}
