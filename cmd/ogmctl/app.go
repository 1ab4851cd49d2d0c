package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CaliLuke/go-cypherogm/driver"
	"github.com/CaliLuke/go-cypherogm/internal/bookstore"
	"github.com/CaliLuke/go-cypherogm/internal/config"
	"github.com/CaliLuke/go-cypherogm/ogm"
)

// store is what the commands need from a connection.
type store interface {
	ogm.Executor
	InTransaction(ctx context.Context, fn func(exec ogm.Executor) error) error
	Close(ctx context.Context) error
}

// driverStore runs standalone statements in their own auto-commit session.
type driverStore struct {
	*driver.Driver
}

func (s driverStore) Execute(ctx context.Context, stmt ogm.Statement) ([]map[string]any, error) {
	sess, err := s.Session(ctx, driver.WriteMode)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close(ctx) }()
	return sess.Execute(ctx, stmt)
}

type app struct {
	configPath string
	metrics    bool
	cfg        *config.Config
	logger     *zap.Logger
	open       func(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *driver.Metrics) (store, error)
}

func newApp() *app {
	return &app{open: openDriver}
}

func openDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *driver.Metrics) (store, error) {
	drv, err := driver.Open(ctx, cfg.Neo4j.Driver(), driver.WithLogger(logger), driver.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	return driverStore{drv}, nil
}

// setup loads configuration, builds the logger and registers the model.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logger == nil {
		a.logger, err = config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
	}
	if a.metrics {
		cfg.Metrics.Enabled = true
	}
	a.cfg = cfg
	return bookstore.Register()
}

// connect opens the store and hands it to fn, closing it afterwards. With
// metrics enabled the statement metrics are written to stderr at the end.
func (a *app) connect(cmd *cobra.Command, fn func(s store) error) error {
	ctx := cmd.Context()
	var (
		reg     *prometheus.Registry
		metrics *driver.Metrics
	)
	if a.cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		var err error
		if metrics, err = driver.NewMetrics(reg); err != nil {
			return err
		}
	}

	s, err := a.open(ctx, a.cfg, a.logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(ctx); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}()
	err = fn(s)
	if reg != nil {
		if werr := writeMetrics(cmd.ErrOrStderr(), reg); werr != nil {
			a.logger.Warn("write metrics failed", zap.Error(werr))
		}
	}
	return err
}

// writeMetrics renders everything gathered from reg in the Prometheus text format.
func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
