package tree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jacentio/nestedset/tree"
)

func TestCheck_Valid(t *testing.T) {
	assert.NoError(t, tree.Check(seedNodes()))
	assert.NoError(t, tree.Check(nil))
}

func TestCheck_Violations(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*tree.Node
	}{
		{"inverted", []*tree.Node{{ID: "a", Left: 2, Right: 1}}},
		{"odd span", []*tree.Node{{ID: "a", Left: 1, Right: 3}}},
		{"shared bound", []*tree.Node{
			{ID: "a", Left: 1, Right: 4},
			{ID: "b", Left: 2, Right: 4, ParentID: "a"},
		}},
		{"partial overlap", []*tree.Node{
			{ID: "a", Left: 1, Right: 4},
			{ID: "b", Left: 3, Right: 6, ParentID: "a"},
		}},
		{"parent mismatch", []*tree.Node{
			{ID: "a", Left: 1, Right: 4},
			{ID: "b", Left: 2, Right: 3},
		}},
		{"top level with parent", []*tree.Node{
			{ID: "a", Left: 1, Right: 2, ParentID: "z"},
		}},
		{"first root offset", []*tree.Node{
			{ID: "a", Left: 3, Right: 4},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tree.Check(tt.nodes)
			assert.True(t, errors.Is(err, tree.ErrCorrupt), "got %v", err)
		})
	}
}
