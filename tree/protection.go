package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Position is where a node goes relative to its move target.
type Position int

const (
	PositionChild Position = iota + 1
	PositionLeft
	PositionRight
	PositionRoot
)

var positionNames = map[Position]string{
	PositionChild: "child",
	PositionLeft:  "left",
	PositionRight: "right",
	PositionRoot:  "root",
}

func (p Position) String() string {
	if name, ok := positionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

// Valid reports whether p is one of the four known positions.
func (p Position) Valid() bool {
	_, ok := positionNames[p]
	return ok
}

// ParsePosition maps "child", "left", "right" or "root" to a Position.
func ParsePosition(s string) (Position, error) {
	for p, name := range positionNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, impossible("position must be one of child, left, right, root but is %q", s)
}

func impossible(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrImpossibleMove, fmt.Sprintf(format, args...))
}

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistentMove, fmt.Sprintf(format, args...))
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// CheckMove validates moving node to target at pos without touching storage.
// target may be nil only for PositionRoot.
func CheckMove(node, target Record, pos Position) error {
	if !pos.Valid() {
		return impossible("position must be one of child, left, right, root but is %s", pos)
	}
	if node == nil {
		return impossible("a new node can not be moved")
	}
	left, right := node.Bounds()
	if node.NodeID() == "" || left <= 0 || right <= left {
		return impossible("a new node can not be moved")
	}
	if target == nil {
		if pos != PositionRoot {
			return impossible("position %s needs a target", pos)
		}
		return nil
	}
	if target.NodeID() == node.NodeID() {
		return impossible("a node can't be moved to itself")
	}
	tl, tr := target.Bounds()
	if left <= tl && tl <= right && left <= tr && tr <= right {
		return impossible("a node can't be moved to a descendant of itself")
	}
	if !node.PartitionScope().Equal(target.PartitionScope()) {
		return impossible("a node can't be moved to a different scope")
	}
	return nil
}

// hints is a relocation request after every reference was resolved to a record.
type hints struct {
	parentGiven bool
	parent      *Node // nil when parentGiven and cleared
	left        *Node
	right       *Node
	leftNext    *Node // right sibling of left
}

// checkHints rejects self-contradicting relocation hints.
func checkHints(h hints) error {
	if h.left != nil && h.right != nil {
		if h.leftNext == nil || h.leftNext.ID != h.right.ID {
			next := "none"
			if h.leftNext != nil {
				next = string(h.leftNext.ID)
			}
			return inconsistent("both left (%s) and right (%s) were given but right is not the right sibling (%s) of left",
				h.left.ID, h.right.ID, next)
		}
	}
	if h.parentGiven && h.parent != nil {
		if h.left != nil && h.left.ParentID != h.parent.ID {
			return inconsistent("both left (%s) and parent (%s) were given but left's parent is %q",
				h.left.ID, h.parent.ID, h.left.ParentID)
		}
		if h.right != nil && h.right.ParentID != h.parent.ID {
			return inconsistent("both right (%s) and parent (%s) were given but right's parent is %q",
				h.right.ID, h.parent.ID, h.right.ParentID)
		}
	}
	return nil
}
