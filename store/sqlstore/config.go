package sqlstore

// Config holds configuration for the SQL store.
type Config struct {
	// Table is the name of the nodes table.
	// Default: "nodes"
	Table string

	// AutoMigrate creates or updates the table and its indexes on open.
	AutoMigrate bool

	// MaxOpenConns caps the connection pool. SQLite always uses a single
	// connection.
	// Default: 16
	MaxOpenConns int
}

// DefaultConfig returns a configuration that migrates the "nodes" table.
func DefaultConfig() Config {
	return Config{
		Table:        "nodes",
		AutoMigrate:  true,
		MaxOpenConns: 16,
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = "nodes"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 16
	}
}
