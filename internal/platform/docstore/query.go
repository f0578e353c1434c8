package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Op is a filter operator.
type Op string

const (
	OpEq       Op = "eq"
	OpRegex    Op = "regex"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
	OpExists   Op = "exists"
)

// Condition filters documents on the value at a dotted field path.
type Condition struct {
	Path  string
	Op    Op
	Value any
}

// Eq matches documents whose field equals value (JSON containment).
func Eq(path string, value any) Condition { return Condition{Path: path, Op: OpEq, Value: value} }

// Regex matches a case-insensitive POSIX regular expression.
func Regex(path, pattern string) Condition {
	return Condition{Path: path, Op: OpRegex, Value: pattern}
}

// Gt, Gte and Lte compare numbers, time.Time values or strings.
func Gt(path string, value any) Condition  { return Condition{Path: path, Op: OpGt, Value: value} }
func Gte(path string, value any) Condition { return Condition{Path: path, Op: OpGte, Value: value} }
func Lte(path string, value any) Condition { return Condition{Path: path, Op: OpLte, Value: value} }

// Contains matches documents whose array field contains value.
func Contains(path string, value any) Condition {
	return Condition{Path: path, Op: OpContains, Value: value}
}

// Exists matches documents that carry a value at path.
func Exists(path string) Condition { return Condition{Path: path, Op: OpExists} }

// Sort orders results by a field path.
type Sort struct {
	Path string
	Desc bool
}

// Query selects documents. Where conditions are ANDed; when AnyOf is
// non-empty at least one of its conditions must also hold.
type Query struct {
	Where []Condition
	AnyOf []Condition
	Sort  []Sort
	Skip  int
	Limit int
}

// Update describes a shallow top-level change: Set keys overwrite, Unset
// keys are removed.
type Update struct {
	Set   map[string]any
	Unset []string
}

type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func splitPath(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("docstore: empty field path")
	}
	parts := strings.Split(path, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("docstore: invalid field path %q", path)
		}
	}
	return parts, nil
}

// nest turns ["a","b"], v into {"a":{"b":v}}.
func nest(parts []string, value any) any {
	out := value
	for i := len(parts) - 1; i >= 0; i-- {
		out = map[string]any{parts[i]: out}
	}
	return out
}

var comparisons = map[Op]string{OpGt: ">", OpGte: ">=", OpLte: "<="}

func (b *builder) condition(c Condition) (string, error) {
	parts, err := splitPath(c.Path)
	if err != nil {
		return "", err
	}
	switch c.Op {
	case OpEq:
		raw, err := json.Marshal(nest(parts, c.Value))
		if err != nil {
			return "", fmt.Errorf("docstore: encode %s: %w", c.Path, err)
		}
		return "doc @> " + b.arg(string(raw)) + "::jsonb", nil
	case OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("docstore: regex on %s needs a string pattern", c.Path)
		}
		return "doc #>> " + b.arg(parts) + "::text[] ~* " + b.arg(pattern), nil
	case OpGt, OpGte, OpLte:
		cmp := comparisons[c.Op]
		field := "doc #>> " + b.arg(parts) + "::text[]"
		switch v := c.Value.(type) {
		case time.Time:
			return "(" + field + ")::timestamptz " + cmp + " " + b.arg(v.UTC()), nil
		case int, int32, int64, float32, float64:
			return "(" + field + ")::numeric " + cmp + " " + b.arg(v), nil
		case string:
			return field + " " + cmp + " " + b.arg(v), nil
		default:
			return "", fmt.Errorf("docstore: unsupported range value %T on %s", c.Value, c.Path)
		}
	case OpContains:
		raw, err := json.Marshal([]any{c.Value})
		if err != nil {
			return "", fmt.Errorf("docstore: encode %s: %w", c.Path, err)
		}
		return "doc #> " + b.arg(parts) + "::text[] @> " + b.arg(string(raw)) + "::jsonb", nil
	case OpExists:
		return "doc #> " + b.arg(parts) + "::text[] IS NOT NULL", nil
	default:
		return "", fmt.Errorf("docstore: unknown operator %q", c.Op)
	}
}

// where renders the WHERE clause body, "TRUE" when the query has no filters.
func (b *builder) where(q Query) (string, error) {
	clauses := make([]string, 0, len(q.Where)+1)
	for _, c := range q.Where {
		clause, err := b.condition(c)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	if len(q.AnyOf) > 0 {
		alternatives := make([]string, 0, len(q.AnyOf))
		for _, c := range q.AnyOf {
			clause, err := b.condition(c)
			if err != nil {
				return "", err
			}
			alternatives = append(alternatives, clause)
		}
		clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
	}
	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), nil
}

func (b *builder) orderBy(sorts []Sort) (string, error) {
	terms := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		parts, err := splitPath(s.Path)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		terms = append(terms, "doc #>> "+b.arg(parts)+"::text[] "+dir)
	}
	terms = append(terms, "created_at ASC", "id ASC")
	return strings.Join(terms, ", "), nil
}

func (b *builder) page(q Query) string {
	var sb strings.Builder
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(q.Limit))
	}
	if q.Skip > 0 {
		sb.WriteString(" OFFSET " + b.arg(q.Skip))
	}
	return sb.String()
}

func (b *builder) update(u Update) (string, error) {
	set := u.Set
	if set == nil {
		set = map[string]any{}
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("docstore: encode update: %w", err)
	}
	unset := u.Unset
	if unset == nil {
		unset = []string{}
	}
	return "doc = (doc || " + b.arg(string(raw)) + "::jsonb) - " + b.arg(unset) + "::text[], updated_at = now()", nil
}
