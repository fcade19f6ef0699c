package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/tokisama/pkg/db"
)

func openScratchDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, val TEXT)")
	require.NoError(t, err)
	return conn
}

func insertVal(val string) WriteFunc {
	return func(ctx context.Context, tx db.DBExecutor) error {
		_, err := tx.Exec("INSERT INTO test (val) VALUES (?)", val)
		return err
	}
}

func countRows(t *testing.T, conn *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM test").Scan(&n))
	return n
}

func TestBatchWriterTransactions(t *testing.T) {
	conn := openScratchDB(t)

	bw := NewBatchWriter(conn, 2, 0)
	require.NoError(t, bw.Submit(insertVal("A")))
	require.NoError(t, bw.Submit(insertVal("B")))
	require.NoError(t, bw.Submit(insertVal("C")))

	doneCh := make(chan error, 1)
	go func() { doneCh <- bw.Close() }()
	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for batch commit/close")
	}

	assert.Equal(t, 3, countRows(t, conn))
	assert.Equal(t, 3, bw.Committed())
}

func TestBatchWriterRollback(t *testing.T) {
	conn := openScratchDB(t)

	bw := NewBatchWriter(conn, 2, 0)
	errCh := make(chan error, 1)
	bw.OnError = func(e error) { errCh <- e }

	intentional := errors.New("intentional error")
	require.NoError(t, bw.Submit(insertVal("C")))
	require.NoError(t, bw.Submit(func(ctx context.Context, tx db.DBExecutor) error { return intentional }))

	err := bw.Close()
	require.ErrorIs(t, err, intentional)

	select {
	case e := <-errCh:
		require.ErrorIs(t, e, intentional)
	default:
		t.Fatal("expected OnError to be called")
	}
	assert.Zero(t, countRows(t, conn), "the whole batch must roll back")
	assert.Zero(t, bw.Committed())
}

func TestBatchWriterFlushesBySize(t *testing.T) {
	bw := NewBatchWriter(nil, 5, 0)
	var mu sync.Mutex
	called := 0
	for i := 0; i < 12; i++ {
		err := bw.Submit(func(ctx context.Context, tx db.DBExecutor) error {
			mu.Lock()
			called++
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, bw.Close())
	assert.Equal(t, 12, called)
}

func TestBatchWriterFlushesOnInterval(t *testing.T) {
	bw := NewBatchWriter(nil, 10, 20*time.Millisecond)
	flushed := make(chan struct{})
	require.NoError(t, bw.Submit(func(ctx context.Context, tx db.DBExecutor) error {
		close(flushed)
		return nil
	}))

	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("interval flush did not run")
	}
	require.NoError(t, bw.Close())
}

func TestBatchWriterSubmitAfterClose(t *testing.T) {
	bw := NewBatchWriter(nil, 1, 0)
	require.NoError(t, bw.Close())

	err := bw.Submit(func(ctx context.Context, tx db.DBExecutor) error { return nil })
	require.ErrorIs(t, err, ErrBatchWriterClosed)
	require.ErrorIs(t, bw.Close(), ErrBatchWriterClosed)
}
