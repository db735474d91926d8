package tree

import (
	"fmt"
	"strings"
)

type refKind uint8

const (
	refUnset refKind = iota
	refCleared
	refSet
)

// Ref is one relocation hint: unset, explicitly cleared, or a node ID.
type Ref struct {
	kind refKind
	id   ID
}

// SetRef refers to a node.
func SetRef(id ID) Ref { return Ref{kind: refSet, id: id} }

// ClearedRef is the explicit "no node" hint.
func ClearedRef() Ref { return Ref{kind: refCleared} }

// Given reports whether the hint was supplied at all, set or cleared.
func (r Ref) Given() bool { return r.kind != refUnset }

// IsSet reports whether the hint names a node.
func (r Ref) IsSet() bool { return r.kind == refSet }

// Cleared reports whether the hint was explicitly cleared.
func (r Ref) Cleared() bool { return r.kind == refCleared }

// ID returns the referenced node, or "" unless IsSet.
func (r Ref) ID() ID { return r.id }

// String renders the ID, "null" or "unset".
func (r Ref) String() string {
	switch r.kind {
	case refSet:
		return string(r.id)
	case refCleared:
		return "null"
	}
	return "unset"
}

// MoveRequest is a sparse set of relocation hints for MoveByAttributes and Create.
// The zero value requests nothing.
type MoveRequest struct {
	Parent Ref
	Left   Ref
	Right  Ref
	Path   string
}

// Clear is the empty request.
func Clear() MoveRequest { return MoveRequest{} }

// ByParent requests n become the last child of parent.
func ByParent(parent ID) MoveRequest { return MoveRequest{Parent: SetRef(parent)} }

// ToRoot requests n become a root.
func ToRoot() MoveRequest { return MoveRequest{Parent: ClearedRef()} }

// ByLeftNeighbor requests n be placed right of left.
func ByLeftNeighbor(left ID) MoveRequest { return MoveRequest{Left: SetRef(left)} }

// ByRightNeighbor requests n be placed left of right.
func ByRightNeighbor(right ID) MoveRequest { return MoveRequest{Right: SetRef(right)} }

// Leftmost requests n become the first of its siblings.
func Leftmost() MoveRequest { return MoveRequest{Left: ClearedRef()} }

// Rightmost requests n become the last of its siblings.
func Rightmost() MoveRequest { return MoveRequest{Right: ClearedRef()} }

// ByPath requests n be reparented under the node owning the parent portion of p.
func ByPath(p string) MoveRequest { return MoveRequest{Path: p} }

// WithParent returns r with the parent hint set to id.
func (r MoveRequest) WithParent(id ID) MoveRequest { r.Parent = SetRef(id); return r }

// WithLeft returns r with the left neighbour hint set to id.
func (r MoveRequest) WithLeft(id ID) MoveRequest { r.Left = SetRef(id); return r }

// WithRight returns r with the right neighbour hint set to id.
func (r MoveRequest) WithRight(id ID) MoveRequest { r.Right = SetRef(id); return r }

// IsZero reports whether the request carries no hint.
func (r MoveRequest) IsZero() bool {
	return !r.Parent.Given() && !r.Left.Given() && !r.Right.Given() && r.Path == ""
}

// String renders every hint, for logs and errors.
func (r MoveRequest) String() string {
	return fmt.Sprintf("parent=%s left=%s right=%s path=%q", r.Parent, r.Left, r.Right, r.Path)
}

// Attribute keys understood by ParseMoveRequest.
const (
	AttrParentID = "parent_id"
	AttrLeftID   = "left_id"
	AttrRightID  = "right_id"
	AttrPath     = "path"
)

// ParseMoveRequest extracts relocation hints from loosely typed attributes, as
// received from a form or JSON body. nil, "" and "null" clear a reference; any
// other value must parse as an ID. Unknown keys are ignored.
func ParseMoveRequest(attrs map[string]any) (MoveRequest, error) {
	var req MoveRequest
	for key, dst := range map[string]*Ref{
		AttrParentID: &req.Parent,
		AttrLeftID:   &req.Left,
		AttrRightID:  &req.Right,
	} {
		v, ok := attrs[key]
		if !ok {
			continue
		}
		ref, err := parseRef(v)
		if err != nil {
			return MoveRequest{}, fmt.Errorf("%s: %w", key, err)
		}
		*dst = ref
	}
	if v, ok := attrs[AttrPath]; ok && v != nil {
		p, ok := v.(string)
		if !ok {
			return MoveRequest{}, fmt.Errorf("%s: expected string, got %T", AttrPath, v)
		}
		req.Path = p
	}
	return req, nil
}

func parseRef(v any) (Ref, error) {
	if v == nil {
		return ClearedRef(), nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" || s == "null" {
			return ClearedRef(), nil
		}
	}
	id, err := ParseID(v)
	if err != nil {
		return Ref{}, err
	}
	return SetRef(id), nil
}
