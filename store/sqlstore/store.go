// Package sqlstore implements tree.Store on a relational database through gorm.
//
// All nodes live in one table. The scope of a node is stored as its canonical
// key, and every statement filters on it, so partitions never see each other.
// Structural updates are single UPDATE statements with CASE expressions, which
// evaluate every condition against the row as it was before the statement.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/jacentio/nestedset/dialect"
	"github.com/jacentio/nestedset/tree"
)

// nodeRow is the table layout.
type nodeRow struct {
	ID       string         `gorm:"column:id;primaryKey"`
	ScopeKey string         `gorm:"column:scope_key;not null;index:idx_scope_lft,priority:1;index:idx_scope_rgt,priority:1;index:idx_scope_parent,priority:1"`
	Lft      int64          `gorm:"column:lft;not null;index:idx_scope_lft,priority:2"`
	Rgt      int64          `gorm:"column:rgt;not null;index:idx_scope_rgt,priority:2"`
	ParentID sql.NullString `gorm:"column:parent_id;index:idx_scope_parent,priority:2"`
	Level    int            `gorm:"column:level;not null;default:0"`
	Slug     string         `gorm:"column:slug;not null;default:''"`
	Path     string         `gorm:"column:path;not null;default:''"`
}

func toRow(n *tree.Node) *nodeRow {
	return &nodeRow{
		ID:       string(n.ID),
		ScopeKey: n.Scope.Key(),
		Lft:      n.Left,
		Rgt:      n.Right,
		ParentID: sql.NullString{String: string(n.ParentID), Valid: n.ParentID != ""},
		Level:    n.Level,
		Slug:     n.Slug,
		Path:     n.Path,
	}
}

func (r *nodeRow) node() (*tree.Node, error) {
	scope, err := tree.ParseScope(r.ScopeKey)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", r.ID, err)
	}
	return &tree.Node{
		ID:       tree.ID(r.ID),
		Left:     r.Lft,
		Right:    r.Rgt,
		ParentID: tree.ID(r.ParentID.String),
		Scope:    scope,
		Level:    r.Level,
		Slug:     r.Slug,
		Path:     r.Path,
	}, nil
}

// Store is a tree.Store backed by gorm.
type Store struct {
	db      *gorm.DB
	config  Config
	dialect dialect.Dialect
	logger  *slog.Logger
	inTx    bool
}

// New creates a store on an open gorm connection. The dialect is chosen from
// the gorm dialector name.
func New(db *gorm.DB, config Config) (*Store, error) {
	config.validate()
	d, err := dialect.Lookup(db.Dialector.Name())
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:      db,
		config:  config,
		dialect: d,
		logger:  slog.Default(),
	}
	if config.AutoMigrate {
		if err := s.table(context.Background()).AutoMigrate(&nodeRow{}); err != nil {
			return nil, fmt.Errorf("auto-migrate %s: %w", config.Table, err)
		}
	}
	return s, nil
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (s *Store) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.config.Table)
}

func (s *Store) scoped(ctx context.Context, scope tree.Scope) *gorm.DB {
	return s.table(ctx).Where("scope_key = ?", scope.Key())
}

func column(f tree.Field) string {
	if f == tree.FieldWidth {
		return "(rgt - lft)"
	}
	return f.String()
}

var comparisons = map[tree.Op]string{
	tree.OpEq: "=",
	tree.OpNe: "<>",
	tree.OpLt: "<",
	tree.OpLe: "<=",
	tree.OpGt: ">",
	tree.OpGe: ">=",
}

// condSQL renders one condition. Root parents are stored as NULL.
func condSQL(c tree.Cond) (string, []any, error) {
	col := column(c.Field)
	var value any = c.Int
	if c.Field.IsString() {
		value = c.Str
	}
	switch c.Op {
	case tree.OpNull:
		if c.Field == tree.FieldParent {
			return col + " IS NULL", nil, nil
		}
		if c.Field.IsString() {
			return col + " = ''", nil, nil
		}
		return col + " = 0", nil, nil
	case tree.OpNotNull:
		if c.Field == tree.FieldParent {
			return col + " IS NOT NULL", nil, nil
		}
		if c.Field.IsString() {
			return col + " <> ''", nil, nil
		}
		return col + " <> 0", nil, nil
	case tree.OpPrefix:
		if !c.Field.IsString() {
			return "", nil, fmt.Errorf("prefix match on integer field %s", c.Field)
		}
		// SUBSTR keeps the match case-sensitive where LIKE would not be.
		return "SUBSTR(" + col + ", 1, ?) = ?", []any{utf8.RuneCountInString(c.Str), c.Str}, nil
	}
	op, ok := comparisons[c.Op]
	if !ok {
		return "", nil, fmt.Errorf("unknown operator %d", c.Op)
	}
	return col + " " + op + " ?", []any{value}, nil
}

func where(db *gorm.DB, p tree.Predicate) (*gorm.DB, error) {
	for _, c := range p {
		clause, args, err := condSQL(c)
		if err != nil {
			return nil, err
		}
		db = db.Where(clause, args...)
	}
	return db, nil
}

func (s *Store) orderBy(o tree.Order) string {
	switch o {
	case tree.OrderByLeftDesc:
		return "lft DESC, id"
	case tree.OrderByPath:
		return s.dialect.OrderBy("path") + ", id"
	}
	return "lft, id"
}

func rowsToNodes(rows []nodeRow) ([]*tree.Node, error) {
	nodes := make([]*tree.Node, 0, len(rows))
	for i := range rows {
		n, err := rows[i].node()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Select loads the rows of scope matching q. Ties the database cannot order
// the way the engine does are settled by tree.SortNodes.
func (s *Store) Select(ctx context.Context, scope tree.Scope, q tree.Query) ([]*tree.Node, error) {
	db, err := where(s.scoped(ctx, scope), q.Where)
	if err != nil {
		return nil, err
	}
	db = db.Order(s.orderBy(q.Order))
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	var rows []nodeRow
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	nodes, err := rowsToNodes(rows)
	if err != nil {
		return nil, err
	}
	tree.SortNodes(nodes, q.Order)
	return nodes, nil
}

// Get loads the row with id from any scope.
func (s *Store) Get(ctx context.Context, id tree.ID) (*tree.Node, error) {
	var row nodeRow
	err := s.table(ctx).Where("id = ?", string(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.node()
}

// exists reports whether a row with id is stored.
func (s *Store) exists(ctx context.Context, id tree.ID) (bool, error) {
	var count int64
	if err := s.table(ctx).Where("id = ?", string(id)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert adds a row for n. A duplicate ID maps to tree.ErrAlreadyExists.
func (s *Store) Insert(ctx context.Context, n *tree.Node) error {
	err := s.table(ctx).Create(toRow(n)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", tree.ErrAlreadyExists, n.ID)
	}
	if err != nil {
		// Not every driver translates constraint errors.
		if found, lookupErr := s.exists(ctx, n.ID); lookupErr == nil && found {
			return fmt.Errorf("%w: %s", tree.ErrAlreadyExists, n.ID)
		}
		return err
	}
	return nil
}

// Save updates every column of the given nodes in one transaction.
func (s *Store) Save(ctx context.Context, nodes []*tree.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	return s.Transaction(ctx, func(txs tree.Store) error {
		tx := txs.(*Store)
		for _, n := range nodes {
			row := toRow(n)
			res := tx.table(ctx).Where("id = ?", row.ID).Updates(map[string]any{
				"scope_key": row.ScopeKey,
				"lft":       row.Lft,
				"rgt":       row.Rgt,
				"parent_id": row.ParentID,
				"level":     row.Level,
				"slug":      row.Slug,
				"path":      row.Path,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				found, err := tx.exists(ctx, n.ID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("%w: %s", tree.ErrNotFound, n.ID)
				}
			}
		}
		return nil
	})
}

// caseSQL renders CASE WHEN col BETWEEN from AND to THEN col + delta ... ELSE col END.
func caseSQL(col string, shifts []tree.Shift) (string, []any) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("CASE")
	for _, sh := range shifts {
		b.WriteString(" WHEN " + col + " BETWEEN ? AND ? THEN " + col + " + ?")
		args = append(args, sh.From, sh.To, sh.Delta)
	}
	b.WriteString(" ELSE " + col + " END")
	return b.String(), args
}

// touched restricts an update to rows that can change.
func touched(a tree.Assignment) (string, []any) {
	var (
		parts []string
		args  []any
	)
	for col, shifts := range map[string][]tree.Shift{"lft": a.Left, "rgt": a.Right} {
		for _, sh := range shifts {
			if sh.Delta == 0 {
				continue
			}
			parts = append(parts, col+" BETWEEN ? AND ?")
			args = append(args, sh.From, sh.To)
		}
	}
	if a.Reparent != nil {
		parts = append(parts, "id = ?")
		args = append(args, string(a.Reparent.ID))
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// UpdateAll shifts bounds and rewrites at most one parent pointer with a single
// UPDATE over the rows of scope the assignment can change.
func (s *Store) UpdateAll(ctx context.Context, scope tree.Scope, a tree.Assignment) (int64, error) {
	set := map[string]any{}
	if len(a.Left) > 0 {
		expr, args := caseSQL("lft", a.Left)
		set["lft"] = gorm.Expr(expr, args...)
	}
	if len(a.Right) > 0 {
		expr, args := caseSQL("rgt", a.Right)
		set["rgt"] = gorm.Expr(expr, args...)
	}
	if a.Reparent != nil {
		parent := sql.NullString{String: string(a.Reparent.Parent), Valid: a.Reparent.Parent != ""}
		set["parent_id"] = gorm.Expr("CASE WHEN id = ? THEN ? ELSE parent_id END", string(a.Reparent.ID), parent)
	}
	if len(set) == 0 {
		return 0, nil
	}
	cond, args := touched(a)
	if cond == "()" {
		return 0, nil
	}
	res := s.scoped(ctx, scope).Where(cond, args...).Updates(set)
	return res.RowsAffected, res.Error
}

// DeleteAll deletes the rows of scope matching p.
func (s *Store) DeleteAll(ctx context.Context, scope tree.Scope, p tree.Predicate) (int64, error) {
	db, err := where(s.scoped(ctx, scope), p)
	if err != nil {
		return 0, err
	}
	res := db.Delete(&nodeRow{})
	return res.RowsAffected, res.Error
}

// Max returns MAX(f) over scope; ok is false when the scope has no rows.
func (s *Store) Max(ctx context.Context, scope tree.Scope, f tree.Field) (int64, bool, error) {
	if f.IsString() {
		return 0, false, fmt.Errorf("max of string field %s", f)
	}
	var max sql.NullInt64
	if err := s.scoped(ctx, scope).Select("MAX(" + column(f) + ")").Row().Scan(&max); err != nil {
		return 0, false, err
	}
	return max.Int64, max.Valid, nil
}

// Transaction runs fn in a database transaction. Calls made on the store passed
// to fn, including nested Transaction calls, share that transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx tree.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{
			db:      tx,
			config:  s.config,
			dialect: s.dialect,
			logger:  s.logger,
			inTx:    true,
		})
	})
}

// Scopes lists every scope holding at least one node.
func (s *Store) Scopes(ctx context.Context) ([]tree.Scope, error) {
	var keys []string
	if err := s.table(ctx).Distinct("scope_key").Order("scope_key").Pluck("scope_key", &keys).Error; err != nil {
		return nil, err
	}
	scopes := make([]tree.Scope, 0, len(keys))
	for _, k := range keys {
		sc, err := tree.ParseScope(k)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

// AggregatePath computes the path of n from the stored intervals in a single
// query: the slugs (or IDs, for nodes without a slug) of n and its ancestors,
// root first, joined by sep.
func (s *Store) AggregatePath(ctx context.Context, n *tree.Node, sep string) (string, error) {
	inner := s.scoped(ctx, n.Scope).
		Select("COALESCE(NULLIF(slug, ''), id) AS seg").
		Where("lft <= ? AND rgt >= ?", n.Left, n.Right).
		Order("lft").
		// MySQL ignores ORDER BY in a derived table without LIMIT.
		Limit(math.MaxInt32)
	var path sql.NullString
	err := s.db.WithContext(ctx).
		Table("(?) AS chain", inner).
		Select(s.dialect.GroupConcat("seg", sep)).
		Row().Scan(&path)
	if err != nil {
		return "", err
	}
	return path.String, nil
}
