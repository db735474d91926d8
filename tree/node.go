package tree

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jacentio/nestedset/internal/scopekey"
)

// ID identifies a node. IDs are unique across all scopes of a collection.
type ID string

// ParseID converts a loosely typed identifier into an ID.
// Integers, integral floats, json.Number and strings all map onto the same
// canonical form, so 5 and "5" are the same identity.
func ParseID(v any) (ID, error) {
	switch x := v.(type) {
	case ID:
		return canonicalID(string(x))
	case string:
		return canonicalID(x)
	case int:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return ID(strconv.FormatInt(x, 10)), nil
	case uint:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return ID(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return ID(strconv.FormatUint(x, 10)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return "", fmt.Errorf("%w: %v", ErrInvalidID, x)
		}
		return ID(strconv.FormatInt(int64(x), 10)), nil
	case json.Number:
		return canonicalID(x.String())
	case fmt.Stringer:
		return canonicalID(x.String())
	default:
		return "", fmt.Errorf("%w: %v (%T)", ErrInvalidID, v, v)
	}
}

// canonicalID trims the value and strips redundant leading zeros and signs from
// decimal integers so "007" and "7" resolve to the same node.
func canonicalID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10)), nil
	}
	return ID(s), nil
}

// compareIDs orders decimal IDs numerically and everything else lexically.
func compareIDs(a, b ID) int {
	na, errA := strconv.ParseInt(string(a), 10, 64)
	nb, errB := strconv.ParseInt(string(b), 10, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// ScopeValue is one field of a scope tuple.
type ScopeValue struct {
	Name  string
	Value string
}

// Scope is the partition key tuple isolating one forest inside a shared collection.
// The zero Scope addresses a collection without partitioning.
type Scope []ScopeValue

// NewScope builds a scope from alternating name/value arguments.
func NewScope(pairs ...string) Scope {
	s := make(Scope, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, ScopeValue{Name: pairs[i], Value: pairs[i+1]})
	}
	return s
}

// ParseScope reverses Scope.Key.
func ParseScope(key string) (Scope, error) {
	names, values, err := scopekey.Decode(key)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	s := make(Scope, len(names))
	for i := range names {
		s[i] = ScopeValue{Name: names[i], Value: values[i]}
	}
	return s, nil
}

// Key returns the canonical partition key of the scope.
func (s Scope) Key() string {
	names := make([]string, len(s))
	values := make([]string, len(s))
	for i, v := range s {
		names[i], values[i] = v.Name, v.Value
	}
	return scopekey.Encode(names, values)
}

// Equal reports whether both scopes address the same partition.
func (s Scope) Equal(other Scope) bool {
	return s.Key() == other.Key()
}

func (s Scope) String() string {
	if len(s) == 0 {
		return "{}"
	}
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = v.Name + "=" + v.Value
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Record is the capability a host type needs to take part in a nested set.
type Record interface {
	NodeID() ID
	Bounds() (left, right int64)
	ParentRef() ID
	PartitionScope() Scope
}

// Node is one row of the nested set.
type Node struct {
	ID       ID
	Left     int64
	Right    int64
	ParentID ID // empty for roots
	Scope    Scope

	// Level is the number of strict ancestors. Maintained when Config.TrackLevel is set.
	Level int

	// Slug is the path segment of this node; Path is the slug chain from the root.
	// Path is maintained when Config.TrackPath is set.
	Slug string
	Path string
}

// FromRecord copies the nested set fields of a host record.
func FromRecord(r Record) *Node {
	if n, ok := r.(*Node); ok {
		return n.Clone()
	}
	left, right := r.Bounds()
	return &Node{
		ID:       r.NodeID(),
		Left:     left,
		Right:    right,
		ParentID: r.ParentRef(),
		Scope:    r.PartitionScope(),
	}
}

func (n *Node) NodeID() ID                  { return n.ID }
func (n *Node) Bounds() (left, right int64) { return n.Left, n.Right }
func (n *Node) ParentRef() ID               { return n.ParentID }
func (n *Node) PartitionScope() Scope       { return n.Scope }

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Scope != nil {
		c.Scope = append(Scope(nil), n.Scope...)
	}
	return &c
}

// HasInterval reports whether bounds were assigned.
func (n *Node) HasInterval() bool {
	return n.Left > 0 && n.Right > n.Left
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// IsLeaf reports whether the node has no descendants.
func (n *Node) IsLeaf() bool {
	return n.Right-n.Left == 1
}

// DescendantCount returns the number of nodes in the subtree below n.
func (n *Node) DescendantCount() int64 {
	if n.Right <= n.Left {
		return 0
	}
	return (n.Right - n.Left - 1) / 2
}

// HasChildren reports whether the node has at least one descendant.
func (n *Node) HasChildren() bool {
	return n.DescendantCount() > 0
}

// IsAncestorOf reports whether n strictly contains other.
func (n *Node) IsAncestorOf(other *Node) bool {
	return n.Scope.Equal(other.Scope) && n.Left < other.Left && n.Right > other.Right
}

// IsDescendantOf reports whether other strictly contains n.
func (n *Node) IsDescendantOf(other *Node) bool {
	return other.IsAncestorOf(n)
}

// refresh copies the persisted structure of fresh into n.
func (n *Node) refresh(fresh *Node) {
	n.Left = fresh.Left
	n.Right = fresh.Right
	n.ParentID = fresh.ParentID
	n.Level = fresh.Level
	n.Path = fresh.Path
	n.Scope = fresh.Scope
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[%d,%d]", n.ID, n.Left, n.Right)
}
