package driver

import (
	"context"
	"sync"

	"github.com/CaliLuke/go-cypherogm/ogm"
)

// txHandle is the part of neo4j.ExplicitTransaction a Tx drives.
type txHandle interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// closer is the part of neo4j.SessionWithContext a Tx owns.
type closer interface {
	Close(ctx context.Context) error
}

// Tx represents an explicit transaction. It implements ogm.Executor; all
// statements it executes commit or roll back together.
type Tx struct {
	sess closer
	tx   txHandle
	exec *executor
	mu   sync.Mutex
	done bool
}

func newTx(sess closer, tx txHandle, exec *executor) *Tx {
	return &Tx{sess: sess, tx: tx, exec: exec}
}

// Execute runs stmt inside the transaction.
func (t *Tx) Execute(ctx context.Context, stmt ogm.Statement) ([]map[string]any, error) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done {
		return nil, ErrTxDone
	}
	return t.exec.Execute(ctx, stmt)
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.finish(); err != nil {
		return err
	}
	return wrapError("commit", t.tx.Commit(ctx))
}

// Rollback discards every change made in the transaction.
func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.finish(); err != nil {
		return err
	}
	return wrapError("rollback", t.tx.Rollback(ctx))
}

func (t *Tx) finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	return nil
}

// Close rolls back an unfinished transaction and releases its session.
func (t *Tx) Close(ctx context.Context) error {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
	txErr := t.tx.Close(ctx)
	sessErr := t.sess.Close(ctx)
	if txErr != nil {
		return wrapError("close", txErr)
	}
	return wrapError("close session", sessErr)
}
