// Package dialect holds the SQL fragments that differ between databases.
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupported is returned when no dialect is registered under a name.
var ErrUnsupported = errors.New("dialect: unsupported database")

// Dialect renders database-specific SQL fragments.
type Dialect interface {
	// Name is the canonical dialect name.
	Name() string

	// GroupConcat aggregates field over a group, joined by sep.
	GroupConcat(field, sep string) string

	// OrderBy renders an ORDER BY term for field in which NULLs sort first.
	OrderBy(field string) string
}

// Registry maps database names and their aliases to dialects.
type Registry struct {
	byName map[string]Dialect
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Dialect)}
}

// Register adds d under its name and any aliases. Names are case-insensitive.
func (r *Registry) Register(d Dialect, aliases ...string) {
	r.byName[strings.ToLower(d.Name())] = d
	for _, a := range aliases {
		r.byName[strings.ToLower(a)] = d
	}
}

// Lookup returns the dialect registered under name.
func (r *Registry) Lookup(name string) (Dialect, error) {
	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnsupported, name, strings.Join(r.Names(), ", "))
	}
	return d, nil
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default knows sqlite, mysql and postgres under their common driver names.
var Default = func() *Registry {
	r := NewRegistry()
	r.Register(SQLite{}, "sqlite3")
	r.Register(MySQL{}, "mysql2")
	r.Register(Postgres{}, "postgresql", "pgx")
	return r
}()

// Lookup finds name in the Default registry.
func Lookup(name string) (Dialect, error) {
	return Default.Lookup(name)
}

func literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// SQLite sorts NULLs first natively.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) GroupConcat(field, sep string) string {
	return fmt.Sprintf("GROUP_CONCAT(%s, %s)", field, literal(sep))
}

func (SQLite) OrderBy(field string) string { return field }

// MySQL sorts NULLs first natively.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) GroupConcat(field, sep string) string {
	return fmt.Sprintf("GROUP_CONCAT(`%s` SEPARATOR %s)", field, literal(sep))
}

func (MySQL) OrderBy(field string) string { return "`" + field + "`" }

// Postgres sorts NULLs last unless told otherwise.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) GroupConcat(field, sep string) string {
	return fmt.Sprintf(`array_to_string(array_agg("%s"), %s)`, field, literal(sep))
}

func (Postgres) OrderBy(field string) string { return `"` + field + `" NULLS FIRST` }
