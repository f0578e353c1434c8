// Package players manages the club roster. A player is a nested document of
// personal data, physical and football attributes, contract terms and a
// medical history.
package players

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/clubdesk/clubdesk/internal/shared"
)

// Positions a player can be listed under.
var Positions = []string{"ST", "LM", "CM", "RM", "LB", "CB", "RB", "GK", "CAM", "LWB", "RWB", "CDM", "LAM", "RAM"}

// ValidPosition reports whether p is one of Positions.
func ValidPosition(p string) bool { return slices.Contains(Positions, p) }

// PositionGroups are the keys of a PositionSet.
var PositionGroups = []string{"attack", "midfield", "wide", "defense", "goalkeeper"}

type PersonalData struct {
	Name              string  `json:"name" validate:"required"`
	Lastname          string  `json:"lastname" validate:"required"`
	DateOfBirth       string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Nationality       string  `json:"nationality" validate:"required"`
	SecondNationality *string `json:"secondNationality"`
	PersonalID        *int64  `json:"personalId" validate:"required"`
	Avatar            string  `json:"avatar"`
	Nickname          *string `json:"nickname"`
	ClothesSize       string  `json:"clothesSize" validate:"required,oneof=XS S M L XL XXL"`
	ShirtNumber       *int    `json:"shirtNumber" validate:"required,gte=0"`
	ShirtName         string  `json:"shirtName" validate:"required"`
	Email             string  `json:"email" validate:"required,email"`
	PhoneNumber       string  `json:"phoneNumber" validate:"required"`
	Children          *int    `json:"children" validate:"required,gte=0"`
	MaritalSituation  string  `json:"maritalSituation" validate:"required,oneof=single married divorced"`
}

type PhysicalAttributes struct {
	Height        string `json:"height" validate:"required"`
	Weight        string `json:"weight" validate:"required"`
	PreferredFoot string `json:"preferredFoot" validate:"required,oneof=left right"`
}

type Benefits struct {
	FlightAllowance         string `json:"flightAllowance,omitempty"`
	IndividualApartment     string `json:"individualApartment,omitempty"`
	SharedApartmentEstimate string `json:"sharedApartmentEstimate,omitempty"`
}

type Bonuses struct {
	PerGoal       string `json:"perGoal,omitempty"`
	PerAssist     string `json:"perAssist,omitempty"`
	PerCleanSheet string `json:"perCleanSheet,omitempty"`
}

type Contract struct {
	StartDate            string    `json:"startDate,omitempty"`
	EndDate              string    `json:"endDate,omitempty"`
	GrossSalary          string    `json:"grossSalary,omitempty"`
	SocialSecurityNumber string    `json:"socialSecurityNumber,omitempty"`
	Benefits             *Benefits `json:"benefits,omitempty"`
	Bonuses              *Bonuses  `json:"bonuses,omitempty"`
	ReleaseClause        string    `json:"releaseClause,omitempty"`
	MarketValue          string    `json:"marketValue,omitempty"`
	OnLoan               bool      `json:"onLoan"`
	Agent                string    `json:"agent,omitempty"`
}

// PositionSet lists the positions a player covers, grouped by line.
type PositionSet struct {
	Attack     []string `json:"attack,omitempty" validate:"omitempty,dive,oneof=ST LM CM RM LB CB RB GK CAM LWB RWB CDM LAM RAM"`
	Midfield   []string `json:"midfield,omitempty" validate:"omitempty,dive,oneof=ST LM CM RM LB CB RB GK CAM LWB RWB CDM LAM RAM"`
	Wide       []string `json:"wide,omitempty" validate:"omitempty,dive,oneof=ST LM CM RM LB CB RB GK CAM LWB RWB CDM LAM RAM"`
	Defense    []string `json:"defense,omitempty" validate:"omitempty,dive,oneof=ST LM CM RM LB CB RB GK CAM LWB RWB CDM LAM RAM"`
	Goalkeeper []string `json:"goalkeeper,omitempty" validate:"omitempty,dive,oneof=ST LM CM RM LB CB RB GK CAM LWB RWB CDM LAM RAM"`
}

// Ratings maps a skill name to its score.
type Ratings map[string]float64

type FootballAttributes struct {
	FirstPosition  *PositionSet `json:"firstPosition,omitempty"`
	SecondPosition *PositionSet `json:"secondPosition,omitempty"`
	ThirdPosition  *PositionSet `json:"thirdPosition,omitempty"`
	Goalkeeper     Ratings      `json:"goalkeeper,omitempty"`
	Defensive      Ratings      `json:"defensive,omitempty"`
	Offensive      Ratings      `json:"offensive,omitempty"`
	Physical       Ratings      `json:"physical,omitempty"`
	Mental         Ratings      `json:"mental,omitempty"`
}

// ratingSkills lists the accepted keys of every rating group.
var ratingSkills = map[string][]string{
	"goalkeeper": {"reflexes", "oneOnOne", "aerialReach", "kicking", "footwork", "throwing", "wingspan", "shotStopping", "agility"},
	"defensive":  {"marking", "anticipation", "tackling", "aerialDuels", "positioning", "coverage", "oneVsOneDefending", "wideDuels", "counterPressing"},
	"offensive": {"finishing", "dribbling", "shortPassing", "longPassing", "crossing", "vision", "longShots", "offTheBall",
		"ballProgression", "projection", "switchesOfPlay", "playmaking", "throughBalls", "oneVsOneAttacking", "backToGoalPlay",
		"heading", "insideTheBoxFinishing"},
	"physical": {"pace", "acceleration", "strength", "power", "stamina", "jumping", "agility", "wingspan", "coordination"},
	"mental": {"ambition", "leadership", "winningMentality", "decisionMaking", "concentration", "tacticalIntelligence",
		"composure", "adaptability", "emotionalBalance", "authority", "creativity"},
}

type MedicalEntry struct {
	Type             string `json:"type,omitempty"`
	Surgery          bool   `json:"surgery"`
	SurgeryType      string `json:"surgeryType,omitempty"`
	StartDate        string `json:"startDate,omitempty"`
	EndDate          string `json:"endDate,omitempty"`
	CurrentlyInjured bool   `json:"currentlyInjured"`
}

// Data is the stored player document.
type Data struct {
	PersonalData       *PersonalData       `json:"personalData" validate:"required"`
	PhysicalAttributes *PhysicalAttributes `json:"physicalAttributes" validate:"required"`
	Contract           *Contract           `json:"contract,omitempty"`
	FootballAttributes *FootballAttributes `json:"footballAttributes,omitempty"`
	MedicalHistory     []MedicalEntry      `json:"medicalHistory"`
}

// Player is a stored document with its identity and timestamps.
type Player struct {
	ID string `json:"id"`
	Data
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListFilter narrows GET /clubPlayers.
type ListFilter struct {
	Name     string
	Position string
	MinAge   *int
	MaxAge   *int
	shared.ListParams
}

// Validate normalizes d and reports every failing field by its json path.
func Validate(d *Data) error {
	if p := d.PersonalData; p != nil {
		p.Name = strings.TrimSpace(p.Name)
		p.Lastname = strings.TrimSpace(p.Lastname)
		p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	}
	if d.MedicalHistory == nil {
		d.MedicalHistory = []MedicalEntry{}
	}
	errs := shared.ValidateStruct(d)
	if fa := d.FootballAttributes; fa != nil {
		groups := map[string]Ratings{
			"goalkeeper": fa.Goalkeeper,
			"defensive":  fa.Defensive,
			"offensive":  fa.Offensive,
			"physical":   fa.Physical,
			"mental":     fa.Mental,
		}
		for group, ratings := range groups {
			for skill := range ratings {
				if !slices.Contains(ratingSkills[group], skill) {
					errs.Add("footballAttributes."+group+"."+skill, "is not a known rating")
				}
			}
		}
	}
	return errs.Err()
}

// Decode reads one player document. Type mismatches are reported as field
// errors rather than a malformed body.
func Decode(raw []byte) (Data, error) {
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, decodeError(err)
	}
	return d, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return shared.ValidationErrors{field: "must be of type " + typeErr.Type.String()}
	}
	return shared.ValidationErrors{"body": "must be a JSON object"}
}

// immutableKeys are ignored when merging a partial update.
var immutableKeys = map[string]bool{"id": true, "_id": true, "createdAt": true, "updatedAt": true}

// Merge applies patch over existing one level deep: a nested object in the
// patch is combined with the stored one, provided keys winning, while scalars
// and arrays replace the stored value.
func Merge(existing Data, patch map[string]any) (Data, error) {
	raw, err := json.Marshal(existing)
	if err != nil {
		return Data{}, fmt.Errorf("players: encode: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Data{}, fmt.Errorf("players: decode: %w", err)
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if immutableKeys[k] {
			continue
		}
		incoming, isObject := patch[k].(map[string]any)
		current, hasObject := doc[k].(map[string]any)
		if isObject && hasObject {
			for nk, nv := range incoming {
				current[nk] = nv
			}
			continue
		}
		doc[k] = patch[k]
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return Data{}, fmt.Errorf("players: encode: %w", err)
	}
	return Decode(merged)
}

// ValidatePatch rejects patches that carry nothing to change.
func ValidatePatch(patch map[string]any) error {
	for k := range patch {
		if !immutableKeys[k] {
			return nil
		}
	}
	return shared.ValidationErrors{"body": "no updatable fields provided"}
}
