// Package tree maintains hierarchies as nested sets.
//
// Every node carries an interval [Left, Right]. A node's descendants are exactly
// the nodes whose intervals lie strictly inside its own, so ancestry, subtree and
// leaf queries become range predicates instead of recursive walks. Nodes are
// partitioned by [Scope]: each scope is an independent forest numbered from 1.
//
// # Store
//
// A [Tree] runs against any [Store]. The store only needs scoped selects, bulk
// conditional updates expressed as [Assignment], bulk deletes and transactions.
// Implementations live under store/: an in-memory store, a SQL store on gorm and
// a DynamoDB store.
//
// # Moving
//
// All relocations reduce to one transposition of two adjacent bound ranges:
//
//	t.MoveToChildOf(ctx, n, parent)
//	t.MoveToLeftOf(ctx, n, sibling)
//	t.MoveToRoot(ctx, n)
//
// Hosts that receive sparse form input use [Tree.MoveByAttributes] with a
// [MoveRequest], which tells an unset hint apart from an explicitly cleared one.
// Illegal moves fail with [ErrImpossibleMove]; contradicting hints fail with
// [ErrInconsistentMove]. Both leave the store untouched.
//
// # Bulk loading
//
// [Tree.Batch] inserts and reparents without renumbering and reconciles the
// scope with a single [Tree.RebuildFromParents] on commit.
//
// # Errors
//
//   - [ErrImpossibleMove] - the move can never succeed
//   - [ErrInconsistentMove] - hints contradict each other
//   - [ErrNotFound] - node doesn't exist
//   - [ErrAlreadyExists] - node with ID already exists
//   - [ErrCorrupt] - interval invariants are violated
package tree
