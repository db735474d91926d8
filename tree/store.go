package tree

import (
	"context"
	"math"
	"sort"
	"strings"
)

// Field names a node column that predicates and aggregates can address.
type Field int

const (
	FieldID Field = iota
	FieldLeft
	FieldRight
	FieldParent
	FieldPath
	// FieldWidth is the derived value Right - Left.
	FieldWidth
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldLeft:
		return "lft"
	case FieldRight:
		return "rgt"
	case FieldParent:
		return "parent_id"
	case FieldPath:
		return "path"
	case FieldWidth:
		return "width"
	}
	return "unknown"
}

// IsString reports whether the field holds a string value.
func (f Field) IsString() bool {
	return f == FieldID || f == FieldParent || f == FieldPath
}

// Op is a comparison operator in a Cond.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	// OpNull matches an empty string field (a root's parent).
	OpNull
	OpNotNull
	// OpPrefix matches string fields starting with Str.
	OpPrefix
)

// Cond is one comparison of a node field against a constant.
// Int is used for integer fields, Str for string fields.
type Cond struct {
	Field Field
	Op    Op
	Int   int64
	Str   string
}

// Lt and friends build integer comparisons.
func Lt(f Field, v int64) Cond { return Cond{Field: f, Op: OpLt, Int: v} }
func Le(f Field, v int64) Cond { return Cond{Field: f, Op: OpLe, Int: v} }
func Gt(f Field, v int64) Cond { return Cond{Field: f, Op: OpGt, Int: v} }
func Ge(f Field, v int64) Cond { return Cond{Field: f, Op: OpGe, Int: v} }
func Eq(f Field, v int64) Cond { return Cond{Field: f, Op: OpEq, Int: v} }

// IDIs matches one node; IDIsNot excludes one.
func IDIs(id ID) Cond    { return Cond{Field: FieldID, Op: OpEq, Str: string(id)} }
func IDIsNot(id ID) Cond { return Cond{Field: FieldID, Op: OpNe, Str: string(id)} }

// ParentIs matches children of id; an empty id matches roots.
func ParentIs(id ID) Cond {
	if id == "" {
		return Cond{Field: FieldParent, Op: OpNull}
	}
	return Cond{Field: FieldParent, Op: OpEq, Str: string(id)}
}

// PathIs matches an exact path; PathUnder matches strict descendants by path.
func PathIs(p string) Cond                { return Cond{Field: FieldPath, Op: OpEq, Str: p} }
func PathUnder(p string, sep string) Cond { return Cond{Field: FieldPath, Op: OpPrefix, Str: p + sep} }

// IsLeafCond matches leaves.
func IsLeafCond() Cond { return Eq(FieldWidth, 1) }

func (c Cond) intValue(n *Node) int64 {
	switch c.Field {
	case FieldLeft:
		return n.Left
	case FieldRight:
		return n.Right
	case FieldWidth:
		return n.Right - n.Left
	}
	return 0
}

func (c Cond) strValue(n *Node) string {
	switch c.Field {
	case FieldID:
		return string(n.ID)
	case FieldParent:
		return string(n.ParentID)
	case FieldPath:
		return n.Path
	}
	return ""
}

// Match evaluates the condition against n.
func (c Cond) Match(n *Node) bool {
	if c.Field.IsString() {
		v := c.strValue(n)
		switch c.Op {
		case OpEq:
			return v == c.Str
		case OpNe:
			return v != c.Str
		case OpLt:
			return v < c.Str
		case OpLe:
			return v <= c.Str
		case OpGt:
			return v > c.Str
		case OpGe:
			return v >= c.Str
		case OpNull:
			return v == ""
		case OpNotNull:
			return v != ""
		case OpPrefix:
			return strings.HasPrefix(v, c.Str)
		}
		return false
	}
	v := c.intValue(n)
	switch c.Op {
	case OpEq:
		return v == c.Int
	case OpNe:
		return v != c.Int
	case OpLt:
		return v < c.Int
	case OpLe:
		return v <= c.Int
	case OpGt:
		return v > c.Int
	case OpGe:
		return v >= c.Int
	case OpNull:
		return v == 0
	case OpNotNull:
		return v != 0
	}
	return false
}

// Predicate is a conjunction of conditions. The empty predicate matches every node.
type Predicate []Cond

// Where builds a predicate.
func Where(conds ...Cond) Predicate { return Predicate(conds) }

// And returns a new predicate with extra conditions appended.
func (p Predicate) And(conds ...Cond) Predicate {
	out := make(Predicate, 0, len(p)+len(conds))
	return append(append(out, p...), conds...)
}

// Match evaluates every condition against n.
func (p Predicate) Match(n *Node) bool {
	for _, c := range p {
		if !c.Match(n) {
			return false
		}
	}
	return true
}

// Order selects the result ordering of a Query.
type Order int

const (
	OrderByLeft Order = iota
	OrderByLeftDesc
	OrderByPath
)

// Query describes a Select.
type Query struct {
	Where Predicate
	Order Order
	// Limit caps the number of results; 0 means no limit.
	Limit int
}

// SortNodes sorts nodes in place in the given order. Ties are broken by ID so
// results are deterministic regardless of the backing store.
func SortNodes(nodes []*Node, o Order) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		switch o {
		case OrderByLeftDesc:
			if a.Left != b.Left {
				return a.Left > b.Left
			}
		case OrderByPath:
			if a.Path != b.Path {
				return a.Path < b.Path
			}
		default:
			if a.Left != b.Left {
				return a.Left < b.Left
			}
		}
		return compareIDs(a.ID, b.ID) < 0
	})
}

// Shift adds Delta to a bound whose current value lies in [From, To].
type Shift struct {
	From, To int64
	Delta    int64
}

// Reparent sets the parent of one node.
type Reparent struct {
	ID     ID
	Parent ID // empty for root
}

// Assignment is a conditional bulk rewrite of a scope. For each bound, the first
// Shift whose range contains the old value applies; values outside every range
// are left alone. All conditions are evaluated against the values before the
// update, like a single SQL UPDATE with CASE expressions.
type Assignment struct {
	Left     []Shift
	Right    []Shift
	Reparent *Reparent
}

// Transposition returns the shifts that swap the adjacent ranges [a,b] and [c,d].
func Transposition(a, b, c, d int64) []Shift {
	return []Shift{
		{From: a, To: b, Delta: d - b},
		{From: c, To: d, Delta: a - c},
	}
}

// ShiftFrom returns a single shift applying to every value >= from.
func ShiftFrom(from, delta int64) []Shift {
	return []Shift{{From: from, To: math.MaxInt64, Delta: delta}}
}

func applyShifts(v int64, shifts []Shift) int64 {
	for _, s := range shifts {
		if v >= s.From && v <= s.To {
			return v + s.Delta
		}
	}
	return v
}

// Apply rewrites n in place and reports whether anything changed.
func (a Assignment) Apply(n *Node) bool {
	left := applyShifts(n.Left, a.Left)
	right := applyShifts(n.Right, a.Right)
	parent := n.ParentID
	if a.Reparent != nil && a.Reparent.ID == n.ID {
		parent = a.Reparent.Parent
	}
	changed := left != n.Left || right != n.Right || parent != n.ParentID
	n.Left, n.Right, n.ParentID = left, right, parent
	return changed
}

// Store is the record store a Tree runs against.
//
// Every method is scoped: nodes of different scopes never match each other's
// predicates. Implementations must make Transaction all-or-nothing; a Store
// passed to the transaction callback may itself start nested transactions,
// which join the outer one.
type Store interface {
	// Select returns nodes of scope matching q, ordered by q.Order.
	Select(ctx context.Context, scope Scope, q Query) ([]*Node, error)

	// Get returns a node by ID in any scope, or ErrNotFound.
	Get(ctx context.Context, id ID) (*Node, error)

	// Insert stores a new node, or returns ErrAlreadyExists.
	Insert(ctx context.Context, n *Node) error

	// Save overwrites existing nodes.
	Save(ctx context.Context, nodes []*Node) error

	// UpdateAll applies a to every node of scope and returns the number of rows changed.
	UpdateAll(ctx context.Context, scope Scope, a Assignment) (int64, error)

	// DeleteAll removes every node of scope matching p.
	DeleteAll(ctx context.Context, scope Scope, p Predicate) (int64, error)

	// Max returns the largest value of an integer field in scope; ok is false for an empty scope.
	Max(ctx context.Context, scope Scope, f Field) (max int64, ok bool, err error)

	// Transaction runs fn atomically.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
