package driver

import (
	"go.uber.org/zap"
)

// Config describes how to reach the Neo4j server.
type Config struct {
	// URI is the server address, e.g. neo4j://localhost:7687 or bolt+s://host:7687.
	URI      string
	Username string
	Password string
	// Database selects the target database; empty means the server default.
	Database string
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for statement tracing.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records statement counts and latencies on m.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// AccessMode tells the server whether a session reads or writes.
type AccessMode int

const (
	// ReadMode sessions may be routed to followers in a cluster.
	ReadMode AccessMode = iota
	// WriteMode sessions always go to the leader.
	WriteMode
)
