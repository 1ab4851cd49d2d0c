package ogm

import (
	"context"
	"fmt"
)

// Statement operation names. Executors may use them as metrics or log labels.
const (
	OpUpsertNode  = "upsert_node"
	OpCreateNode  = "create_node"
	OpLink        = "link"
	OpUnlinkStale = "unlink_stale"
	OpDeleteNode  = "delete_node"
	OpQuery       = "query"
	OpSchema      = "schema"
)

// Statement is a Cypher text with its parameters.
type Statement struct {
	Text   string
	Params map[string]any
	// Op names what the statement does, one of the Op constants.
	Op string
}

// String returns the statement text.
func (s Statement) String() string {
	return s.Text
}

// Executor runs statements against the store. Each returned row maps the
// projected names to values; nodes are returned as property maps.
type Executor interface {
	Execute(ctx context.Context, stmt Statement) ([]map[string]any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, stmt Statement) ([]map[string]any, error)

// Execute calls f(ctx, stmt).
func (f ExecutorFunc) Execute(ctx context.Context, stmt Statement) ([]map[string]any, error) {
	return f(ctx, stmt)
}

// checkCtx returns a wrapped error if the context is already done.
func checkCtx(ctx context.Context, op, typeName string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s %s: context cancelled: %w", op, typeName, err)
	}
	return nil
}
