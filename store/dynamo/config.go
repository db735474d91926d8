package dynamo

// Config holds configuration for the Store.
type Config struct {
	// Table is the node table, keyed by (pk, sk).
	// Default: "nestedset_nodes"
	Table string

	// IDIndex is a global secondary index with id as its hash key. It is used
	// to find a node without knowing its scope.
	// Default: "id-index"
	IDIndex string

	// PartitionPrefix is prepended to every scope key to form pk.
	// Default: "scope#"
	PartitionPrefix string

	// MaxTransactItems caps the number of writes in one transaction. A
	// transaction that would write more fails with ErrTransactionTooLarge.
	// Default: 100 (the DynamoDB limit)
	// Max: 100
	MaxTransactItems int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:            "nestedset_nodes",
		IDIndex:          "id-index",
		PartitionPrefix:  "scope#",
		MaxTransactItems: 100,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "nestedset_nodes"
	}
	if c.IDIndex == "" {
		c.IDIndex = "id-index"
	}
	if c.PartitionPrefix == "" {
		c.PartitionPrefix = "scope#"
	}
	if c.MaxTransactItems < 1 || c.MaxTransactItems > 100 {
		c.MaxTransactItems = 100
	}
}
