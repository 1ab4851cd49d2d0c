package driver

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-cypherogm/ogm"
)

// runFunc runs one Cypher text and collects every record it returns.
type runFunc func(ctx context.Context, text string, params map[string]any) ([]*neo4j.Record, error)

// executor is shared by sessions and transactions: it traces, measures and
// converts around a runFunc.
type executor struct {
	run     runFunc
	logger  *zap.Logger
	metrics *Metrics
}

func (e *executor) Execute(ctx context.Context, stmt ogm.Statement) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapError(stmt.Op, err)
	}
	start := time.Now()
	records, err := e.run(ctx, stmt.Text, stmt.Params)
	elapsed := time.Since(start)
	e.metrics.Observe(stmt.Op, elapsed, err)
	if err != nil {
		e.logger.Debug("statement failed",
			zap.String("op", stmt.Op),
			zap.String("statement", stmt.Text),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, wrapError(stmt.Op, err)
	}
	rows := convertRecords(records)
	e.logger.Debug("statement",
		zap.String("op", stmt.Op),
		zap.String("statement", stmt.Text),
		zap.Int("params", len(stmt.Params)),
		zap.Int("rows", len(rows)),
		zap.Duration("elapsed", elapsed))
	return rows, nil
}
