// Package dynamo stores nested set nodes in a single DynamoDB table.
//
// Each scope maps to one partition: pk is the scope key with a configurable
// prefix (hashed when it would exceed the DynamoDB key limit) and sk is the
// node ID. A global secondary index on id finds a node without knowing its
// scope.
//
// # Transactions
//
// DynamoDB cannot run the bulk conditional UPDATE a relational store uses to
// shift intervals, so a transaction reads the scopes it touches into memory,
// lets the engine rewrite them there and commits the changed items with one
// TransactWriteItems call:
//
//   - new items are written with attribute_not_exists(pk)
//   - changed and deleted items are guarded by their version
//
// A lost race surfaces as [ErrConcurrentModification]; callers retry. A
// transaction touching more than [Config].MaxTransactItems items fails with
// [ErrTransactionTooLarge]. Large scopes are better served by the SQL store.
//
// # Expiry
//
// [Store.Expire] sets a TTL on a node and every node below it, in one
// transaction. Expired items are hidden from reads straight away and removed by
// DynamoDB later; the stream package turns that
// removal into a tree.Reclaim so the scope is compacted again.
//
// # Table layout
//
//	cfg := dynamo.DefaultConfig()
//	if err := dynamo.CreateTable(ctx, client, cfg); err != nil { ... }
//	s := dynamo.New(client, cfg, logger)
//	t := tree.New(s, tree.DefaultConfig())
package dynamo
