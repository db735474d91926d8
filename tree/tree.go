package tree

import (
	"context"
	"log/slog"
)

// Tree runs nested set operations against a Store.
type Tree struct {
	store   Store
	config  Config
	logger  *slog.Logger
	metrics *Metrics
	hooks   Hooks
}

// Hooks are called around every move, including the relocation Create does.
// Both run inside the move transaction, so an error from either aborts the
// move and rolls it back. Hooks see a copy of the node as stored: BeforeMove
// before the bounds change, AfterMove after. They also run for moves that turn
// out to be no-ops.
type Hooks struct {
	BeforeMove func(ctx context.Context, n *Node) error
	AfterMove  func(ctx context.Context, n *Node) error
}

func (h Hooks) beforeMove(ctx context.Context, n *Node) error {
	if h.BeforeMove == nil {
		return nil
	}
	return h.BeforeMove(ctx, n.Clone())
}

func (h Hooks) afterMove(ctx context.Context, s Store, id ID) error {
	if h.AfterMove == nil {
		return nil
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return h.AfterMove(ctx, n.Clone())
}

// New creates a new Tree instance.
func New(store Store, config Config) *Tree {
	config.validate()
	return &Tree{
		store:  store,
		config: config,
		logger: slog.Default(),
	}
}

// SetLogger sets the logger used for structural changes.
func (t *Tree) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	t.logger = logger
}

// SetMetrics sets the metrics sink, or disables metrics when m is nil.
func (t *Tree) SetMetrics(m *Metrics) {
	t.metrics = m
}

// SetHooks replaces the move hooks.
func (t *Tree) SetHooks(h Hooks) {
	t.hooks = h
}

// Config returns the effective configuration.
func (t *Tree) Config() Config {
	return t.config
}

// Store returns the underlying record store.
func (t *Tree) Store() Store {
	return t.store
}

// reload fetches the persisted state of n, mapping a missing row to an
// impossible move since an unsaved node has no interval to move.
func reload(ctx context.Context, s Store, n *Node) (*Node, error) {
	if n == nil || n.ID == "" {
		return nil, impossible("a new node can not be moved")
	}
	fresh, err := s.Get(ctx, n.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, impossible("a new node can not be moved")
		}
		return nil, err
	}
	return fresh, nil
}

func (t *Tree) tracksStructure() bool {
	return t.config.TrackLevel || t.config.TrackPath
}
