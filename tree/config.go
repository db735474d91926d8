package tree

// Config holds configuration for a Tree.
type Config struct {
	// PathSeparator joins slugs into paths.
	// Default: "/"
	PathSeparator string

	// TrackLevel keeps Node.Level current after every structural change.
	TrackLevel bool

	// TrackPath keeps Node.Path current after every structural change.
	// Nodes without a slug contribute their ID to the path.
	TrackPath bool
}

// DefaultConfig returns a configuration maintaining both level and path.
func DefaultConfig() Config {
	return Config{
		PathSeparator: "/",
		TrackLevel:    true,
		TrackPath:     true,
	}
}

// validate ensures config values are usable.
func (c *Config) validate() {
	if c.PathSeparator == "" {
		c.PathSeparator = "/"
	}
}
