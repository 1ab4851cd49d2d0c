package ogm

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// lastVersion is the version of the most recent save pass in this process.
var lastVersion atomic.Int64

// nextVersion returns a pass version that is the current time in epoch
// milliseconds, or one more than the previous version if the clock has
// not advanced past it.
func nextVersion(now time.Time) int64 {
	for {
		prev := lastVersion.Load()
		v := now.UnixMilli()
		if v <= prev {
			v = prev + 1
		}
		if lastVersion.CompareAndSwap(prev, v) {
			return v
		}
	}
}

// GraphContext is a unit of work over the store. It holds the tracked
// objects and the objects pending deletion, and writes both on Save.
// A GraphContext is not safe for concurrent use.
type GraphContext struct {
	tracked []any
	pending []any
	logger  *zap.Logger
	clock   func() time.Time
}

// ContextOption configures a GraphContext.
type ContextOption func(*GraphContext)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) ContextOption {
	return func(c *GraphContext) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source used for pass versions.
func WithClock(clock func() time.Time) ContextOption {
	return func(c *GraphContext) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewGraphContext creates an empty GraphContext.
func NewGraphContext(opts ...ContextOption) *GraphContext {
	c := &GraphContext{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Track adds obj to the tracked set.
//
// An object already tracked by reference is left alone. Otherwise, if every
// key value of obj is set and a tracked object of the same type has equal key
// values, obj's mapped fields are copied into that object, which stays the
// tracked instance. Tracking an object that is pending deletion cancels the
// deletion.
func (c *GraphContext) Track(obj any) error {
	desc, err := validObject("track", obj)
	if err != nil {
		return err
	}

	c.pending, err = removeMatching(c.pending, desc, obj)
	if err != nil {
		return fmt.Errorf("track %s: %w", desc.Label, err)
	}

	if indexOfRef(c.tracked, obj) >= 0 {
		return nil
	}
	matches, err := valueMatches(c.tracked, desc, obj)
	if err != nil {
		return fmt.Errorf("track %s: %w", desc.Label, err)
	}
	switch len(matches) {
	case 0:
		c.tracked = append(c.tracked, obj)
	case 1:
		existing := c.tracked[matches[0]]
		desc.copyMapped(reflectValue(existing), reflectValue(obj))
		c.logger.Debug("merged into tracked object",
			zap.String("label", desc.Label))
	default:
		return &AmbiguousIdentityError{TypeName: desc.Label, Count: len(matches)}
	}
	return nil
}

// Untrack removes obj from the tracked set, by reference or by key value
// equality, and marks it for deletion on the next Save. Marking the same
// object twice records a single deletion.
func (c *GraphContext) Untrack(obj any) error {
	desc, err := validObject("untrack", obj)
	if err != nil {
		return err
	}

	c.tracked, err = removeMatching(c.tracked, desc, obj)
	if err != nil {
		return fmt.Errorf("untrack %s: %w", desc.Label, err)
	}

	if indexOfRef(c.pending, obj) >= 0 {
		return nil
	}
	matches, err := valueMatches(c.pending, desc, obj)
	if err != nil {
		return fmt.Errorf("untrack %s: %w", desc.Label, err)
	}
	if len(matches) > 0 {
		return nil
	}
	c.pending = append(c.pending, obj)
	return nil
}

// Tracked returns a snapshot of the tracked objects in tracking order.
func (c *GraphContext) Tracked() []any {
	return append([]any(nil), c.tracked...)
}

// Pending returns a snapshot of the objects pending deletion.
func (c *GraphContext) Pending() []any {
	return append([]any(nil), c.pending...)
}

// Close forgets every tracked and pending object without touching the store.
func (c *GraphContext) Close() {
	c.tracked = nil
	c.pending = nil
}

// Save writes the tracked object graph and then deletes the pending objects.
//
// Nodes are upserted in index order and their keys copied back. Every edge
// is then written with the pass version and, for connections, the
// connection's properties, and edges of the same navigation
// property left over from earlier passes are removed. Finally each pending
// object is deleted with its edges. The pending set is cleared only when all
// deletions succeed. Statements already executed are not undone on failure.
func (c *GraphContext) Save(ctx context.Context, exec Executor) error {
	if exec == nil {
		return &ArgumentError{Op: "save", Message: "executor must not be nil"}
	}
	if err := checkCtx(ctx, "save", "graph"); err != nil {
		return err
	}

	log := c.logger.With(zap.String("pass", uuid.NewString()))
	start := time.Now()

	idx, err := BuildObjectGraphIndex(c.tracked)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	log.Debug("object graph indexed",
		zap.Int("objects", len(idx.Objects)),
		zap.Int("edges", len(idx.Edges)))

	if err := c.upsertNodes(ctx, exec, idx); err != nil {
		return err
	}

	version := nextVersion(c.clock())
	links, err := c.writeEdges(ctx, exec, idx, version)
	if err != nil {
		return err
	}

	deleted, err := c.deletePending(ctx, exec)
	if err != nil {
		return err
	}

	log.Info("save completed",
		zap.Int("nodes", len(idx.Objects)),
		zap.Int("links", links),
		zap.Int("deleted", deleted),
		zap.Int64("version", version),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *GraphContext) upsertNodes(ctx context.Context, exec Executor, idx *ObjectGraphIndex) error {
	for i, obj := range idx.Objects {
		desc := idx.Descriptors[i]
		v := reflectValue(obj)

		stmt, err := desc.strategy.BuildUpsert(desc, v)
		if err != nil {
			return fmt.Errorf("save: upsert %s: %w", desc.Label, err)
		}
		rows, err := exec.Execute(ctx, stmt)
		if err != nil {
			return fmt.Errorf("save: upsert %s: %w", desc.Label, err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("save: upsert %s: no node returned", desc.Label)
		}
		if err := desc.strategy.CopyBack(desc, v, rows[0]); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

func (c *GraphContext) writeEdges(ctx context.Context, exec Executor, idx *ObjectGraphIndex, version int64) (int, error) {
	links := 0
	for _, edge := range idx.Edges {
		owner := idx.Descriptors[edge.Owner]
		ov := reflectValue(idx.Objects[edge.Owner])

		for i, t := range edge.Targets {
			var props map[string]any
			if edge.Via != nil {
				var err error
				if props, err = edge.Via.connectionProps(edge.Connections[i]); err != nil {
					return links, fmt.Errorf("save: link %s.%s: %w", owner.Label, edge.Property, err)
				}
			}
			stmt, err := buildLink(owner, ov, edge.Property, idx.Descriptors[t], reflectValue(idx.Objects[t]), props, version)
			if err != nil {
				return links, fmt.Errorf("save: link %s.%s: %w", owner.Label, edge.Property, err)
			}
			if _, err := exec.Execute(ctx, stmt); err != nil {
				return links, fmt.Errorf("save: link %s.%s: %w", owner.Label, edge.Property, err)
			}
			links++
		}

		stmt, err := buildUnlinkStale(owner, ov, edge.Property, version)
		if err != nil {
			return links, fmt.Errorf("save: unlink %s.%s: %w", owner.Label, edge.Property, err)
		}
		if _, err := exec.Execute(ctx, stmt); err != nil {
			return links, fmt.Errorf("save: unlink %s.%s: %w", owner.Label, edge.Property, err)
		}
	}
	return links, nil
}

func (c *GraphContext) deletePending(ctx context.Context, exec Executor) (int, error) {
	deleted := 0
	for _, obj := range c.pending {
		desc, err := descriptorFor(obj)
		if err != nil {
			return deleted, fmt.Errorf("save: %w", err)
		}
		stmt, ok, err := desc.strategy.BuildDelete(desc, reflectValue(obj))
		if err != nil {
			return deleted, fmt.Errorf("save: delete %s: %w", desc.Label, err)
		}
		if !ok {
			continue
		}
		if _, err := exec.Execute(ctx, stmt); err != nil {
			return deleted, fmt.Errorf("save: delete %s: %w", desc.Label, err)
		}
		deleted++
	}
	c.pending = nil
	return deleted, nil
}

// indexOfRef returns the position of obj in objs by pointer identity.
func indexOfRef(objs []any, obj any) int {
	for i, o := range objs {
		if o == obj {
			return i
		}
	}
	return -1
}

// valueMatches returns the positions of objects in objs that have the same
// type as obj and equal key values. Objects whose keys are not all set never
// match by value.
func valueMatches(objs []any, desc *TypeDescriptor, obj any) ([]int, error) {
	key, allSet, err := desc.keyValues(reflectValue(obj))
	if err != nil || !allSet {
		return nil, err
	}
	t := reflect.TypeOf(obj)
	var matches []int
	for i, o := range objs {
		if reflect.TypeOf(o) != t {
			continue
		}
		other, _, err := desc.keyValues(reflectValue(o))
		if err != nil {
			return nil, err
		}
		if reflect.DeepEqual(key, other) {
			matches = append(matches, i)
		}
	}
	return matches, nil
}

// removeMatching drops obj from objs by reference, or else the single object
// equal to it by key value.
func removeMatching(objs []any, desc *TypeDescriptor, obj any) ([]any, error) {
	if i := indexOfRef(objs, obj); i >= 0 {
		return append(objs[:i:i], objs[i+1:]...), nil
	}
	matches, err := valueMatches(objs, desc, obj)
	if err != nil {
		return objs, err
	}
	switch len(matches) {
	case 0:
		return objs, nil
	case 1:
		i := matches[0]
		return append(objs[:i:i], objs[i+1:]...), nil
	default:
		return objs, &AmbiguousIdentityError{TypeName: desc.Label, Count: len(matches)}
	}
}
