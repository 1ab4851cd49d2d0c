//go:build integration

package driver

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CaliLuke/go-cypherogm/internal/bookstore"
	"github.com/CaliLuke/go-cypherogm/ogm"
)

func testConfig() Config {
	cfg := Config{
		URI:      "neo4j://localhost:7687",
		Username: "neo4j",
		Password: os.Getenv("OGM_NEO4J_PASSWORD"),
		Database: os.Getenv("OGM_NEO4J_DATABASE"),
	}
	if uri := os.Getenv("OGM_NEO4J_URI"); uri != "" {
		cfg.URI = uri
	}
	if user := os.Getenv("OGM_NEO4J_USERNAME"); user != "" {
		cfg.Username = user
	}
	return cfg
}

func openTest(t *testing.T) *Driver {
	t.Helper()
	ctx := context.Background()
	drv, err := Open(ctx, testConfig(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err, "connect")
	t.Cleanup(func() { _ = drv.Close(ctx) })

	sess, err := drv.Session(ctx, WriteMode)
	require.NoError(t, err)
	defer sess.Close(ctx)
	_, err = sess.Execute(ctx, ogm.Statement{Text: "MATCH (n) DETACH DELETE n", Op: ogm.OpDeleteNode})
	require.NoError(t, err, "clean database")

	ogm.ClearRegistry()
	t.Cleanup(ogm.ClearRegistry)
	require.NoError(t, bookstore.Register())
	return drv
}

func TestIntegration_SaveAndQuery(t *testing.T) {
	drv := openTest(t)
	ctx := context.Background()

	sess, err := drv.Session(ctx, WriteMode)
	require.NoError(t, err)
	defer sess.Close(ctx)
	require.NoError(t, ogm.EnsureSchema(ctx, sess))

	gc := ogm.NewGraphContext(ogm.WithLogger(zaptest.NewLogger(t)))
	book := bookstore.Dune()
	require.NoError(t, gc.Track(book))
	require.NoError(t, drv.InTransaction(ctx, func(exec ogm.Executor) error {
		return gc.Save(ctx, exec)
	}))
	require.NotZero(t, book.Id)

	q, err := bookstore.ChaptersQuery()
	require.NoError(t, err)
	books, err := q.Execute(ctx, sess)
	require.NoError(t, err)
	require.Len(t, books, 1)
	got := books[0]
	assert.Equal(t, book.Id, got.Id)
	assert.Equal(t, "Frank Herbert", got.Author.Name)
	require.Len(t, got.Chapters, 3)
	for _, c := range got.Chapters {
		assert.Same(t, got, c.Book)
	}

	// Replacing the collection drops the stale edges.
	book.Chapters = book.Chapters[:1]
	require.NoError(t, gc.Save(ctx, sess))
	q, err = bookstore.ChaptersQuery()
	require.NoError(t, err)
	books, err = q.Execute(ctx, sess)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Len(t, books[0].Chapters, 1)
}

func TestIntegration_RollbackDiscardsWrites(t *testing.T) {
	drv := openTest(t)
	ctx := context.Background()

	gc := ogm.NewGraphContext()
	require.NoError(t, gc.Track(&bookstore.Author{Name: "Ursula K. Le Guin"}))

	tx, err := drv.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, gc.Save(ctx, tx))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Close(ctx))

	sess, err := drv.Session(ctx, ReadMode)
	require.NoError(t, err)
	defer sess.Close(ctx)
	rows, err := sess.Execute(ctx, ogm.Statement{Text: "MATCH (n:Author) RETURN count(n) AS c", Op: ogm.OpQuery})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(0), rows[0]["c"])
}
