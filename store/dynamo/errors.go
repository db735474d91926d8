package dynamo

import "errors"

var (
	// ErrConcurrentModification is returned when a transaction commits over
	// nodes that changed since it read them (version mismatch).
	ErrConcurrentModification = errors.New("nestedset/dynamo: node was modified concurrently")

	// ErrTransactionTooLarge is returned when a transaction would write more
	// items than one TransactWriteItems call accepts.
	ErrTransactionTooLarge = errors.New("nestedset/dynamo: transaction writes too many items")
)
