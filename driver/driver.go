package driver

import (
	"context"
	"errors"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-cypherogm/ogm"
)

// Driver represents an active connection pool to a Neo4j server.
// It is used to open sessions and transactions.
type Driver struct {
	drv      neo4j.DriverWithContext
	database string
	logger   *zap.Logger
	metrics  *Metrics
	mu       sync.Mutex
}

// Open connects to the server described by cfg and verifies connectivity.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Driver, error) {
	if cfg.URI == "" {
		return nil, &DriverError{Op: "open", Err: errors.New("empty URI")}
	}
	drv, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, wrapError("open", err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		_ = drv.Close(ctx)
		return nil, wrapError("open", err)
	}
	d := newDriver(drv, cfg.Database, opts...)
	d.logger.Info("connected", zap.String("uri", cfg.URI), zap.String("database", cfg.Database))
	return d, nil
}

func newDriver(drv neo4j.DriverWithContext, database string, opts ...Option) *Driver {
	d := &Driver{drv: drv, database: database, logger: zap.NewNop()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Close releases the connection pool. Closing twice is a no-op.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drv == nil {
		return nil
	}
	err := d.drv.Close(ctx)
	d.drv = nil
	return wrapError("close", err)
}

// IsOpen reports whether the driver still holds a connection pool.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drv != nil
}

func (d *Driver) session(ctx context.Context, mode AccessMode) (neo4j.SessionWithContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drv == nil {
		return nil, ErrNotConnected
	}
	access := neo4j.AccessModeRead
	if mode == WriteMode {
		access = neo4j.AccessModeWrite
	}
	return d.drv.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   access,
		DatabaseName: d.database,
	}), nil
}

// Session opens an auto-commit session. Every statement it executes is
// committed on its own.
func (d *Driver) Session(ctx context.Context, mode AccessMode) (*Session, error) {
	sess, err := d.session(ctx, mode)
	if err != nil {
		return nil, err
	}
	return &Session{
		sess: sess,
		exec: d.executor(func(ctx context.Context, text string, params map[string]any) ([]*neo4j.Record, error) {
			result, err := sess.Run(ctx, text, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		}),
	}, nil
}

// Begin opens a write session with an explicit transaction. The caller must
// Commit or Rollback, then Close.
func (d *Driver) Begin(ctx context.Context) (*Tx, error) {
	sess, err := d.session(ctx, WriteMode)
	if err != nil {
		return nil, err
	}
	tx, err := sess.BeginTransaction(ctx)
	if err != nil {
		_ = sess.Close(ctx)
		return nil, wrapError("begin", err)
	}
	return newTx(sess, tx, d.executor(func(ctx context.Context, text string, params map[string]any) ([]*neo4j.Record, error) {
		result, err := tx.Run(ctx, text, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})), nil
}

// InTransaction runs fn inside one explicit transaction, committing when fn
// returns nil and rolling back otherwise.
func (d *Driver) InTransaction(ctx context.Context, fn func(exec ogm.Executor) error) error {
	tx, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Close(ctx)
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			d.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit(ctx)
}

func (d *Driver) executor(run runFunc) *executor {
	return &executor{run: run, logger: d.logger, metrics: d.metrics}
}

// Session is an auto-commit session implementing ogm.Executor.
type Session struct {
	sess neo4j.SessionWithContext
	exec *executor
}

// Execute runs stmt in its own implicit transaction.
func (s *Session) Execute(ctx context.Context, stmt ogm.Statement) ([]map[string]any, error) {
	return s.exec.Execute(ctx, stmt)
}

// Close releases the session's connection.
func (s *Session) Close(ctx context.Context) error {
	return wrapError("close session", s.sess.Close(ctx))
}
