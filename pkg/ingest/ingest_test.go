package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/tokisama/pkg/db"
	"github.com/japaniel/tokisama/pkg/lexicon"
	"github.com/japaniel/tokisama/pkg/miner"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testLexicon() *lexicon.Lexicon {
	return lexicon.FromPairs([][2]string{
		{"moku", "food"}, {"pona", "good"}, {"jan", "person"}, {"li", "predicate"}, {"tomo", "house"},
	})
}

func samplePairs(n int) []miner.Pair {
	pairs := make([]miner.Pair, n)
	for i := range pairs {
		pairs[i] = miner.NewPair(fmt.Sprintf("word%d good food", i), "moku li pona")
	}
	return pairs
}

func newTestIngester(conn *sql.DB) *Ingester {
	lx := testLexicon()
	return NewIngester(conn, lx, miner.NewIgnoreSet(lx, miner.DefaultIgnoreWords))
}

func TestIngestPreservesOrder(t *testing.T) {
	ig := newTestIngester(nil)
	ig.Workers = 8

	pairs := samplePairs(200)
	bags, report, err := ig.Ingest(context.Background(), "doc", pairs)
	require.NoError(t, err)
	require.Len(t, bags, len(pairs))
	assert.Equal(t, 200, report.Pairs)
	assert.Zero(t, report.Stored)

	lx := testLexicon()
	moku, _ := lx.Lookup("moku")
	li, _ := lx.Lookup("li")
	for i, b := range bags {
		require.True(t, b.HasEnglish(fmt.Sprintf("word%d", i)), "bag %d out of order", i)
		assert.Equal(t, uint32(1), b.TokiPona[moku])
		assert.NotContains(t, b.TokiPona, li, "ignored word counted")
	}
}

func TestIngestStoresPairs(t *testing.T) {
	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.BatchSize = 3

	var mu sync.Mutex
	var progress [][2]int
	ig.OnProgress = func(current, total int) {
		mu.Lock()
		progress = append(progress, [2]int{current, total})
		mu.Unlock()
	}

	pairs := samplePairs(10)
	_, report, err := ig.Ingest(context.Background(), "story.csv", pairs)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Stored)

	stored, err := db.GetPairs(conn, "story.csv")
	require.NoError(t, err)
	require.Len(t, stored, 10)
	for i, p := range stored {
		assert.Equal(t, i, p.Position)
		assert.Equal(t, pairs[i].English, p.English)
	}

	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{10, 10}, progress[len(progress)-1])
	assert.Equal(t, [2]int{3, 10}, progress[0])
}

func TestIngestEmpty(t *testing.T) {
	bags, _, err := newTestIngester(nil).Ingest(context.Background(), "doc", nil)
	require.NoError(t, err)
	assert.Empty(t, bags)
}

func TestIngestContextCancel(t *testing.T) {
	ig := newTestIngester(setupDB(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bags, _, err := ig.Ingest(ctx, "doc", samplePairs(100))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, bags)
}

// failingPool always returns an error on Submit to simulate producer error.
type failingPool struct{}

func (f *failingPool) Start(ctx context.Context) {}
func (f *failingPool) Submit(job Job) error      { return errors.New("submit failed") }
func (f *failingPool) SubmitCtx(ctx context.Context, job Job) error {
	return errors.New("submit failed")
}
func (f *failingPool) Close() {}

func TestIngestHandlesSubmitError(t *testing.T) {
	ig := newTestIngester(setupDB(t))
	ig.PoolFactory = func(workers, queue int) WorkerPoolInterface { return &failingPool{} }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := ig.Ingest(ctx, "doc", samplePairs(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit failed")
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "sentences.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte(
		"1\tmoku li pona\t2\tFood is good!\n"+
			"3\tjan li moku\t4\tThe person eats.\n"+
			"broken line\n"), 0o644))

	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.Root = dir
	bags, reports, err := ig.IngestFiles(context.Background(), []string{tsv})
	require.NoError(t, err)
	require.Len(t, bags, 2)
	require.Len(t, reports, 1)
	assert.Equal(t, "sentences.tsv", reports[0].Document)
	assert.Equal(t, 1, reports[0].Stats.Skipped)
	assert.True(t, bags[0].HasEnglish("food"))
	assert.True(t, bags[1].HasEnglish("person"))

	n, err := db.CountPairs(conn, "sentences.tsv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, _, err = ig.IngestFiles(context.Background(), []string{filepath.Join(dir, "missing.tsv")})
	require.Error(t, err)
}

func TestIngestFiles_SameBaseNameInDifferentDirs(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) string {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	first := write("beatrix/1.tsv",
		"1\tmoku li pona\t2\tFood is good!\n"+
			"3\tjan li moku\t4\tThe person eats.\n")
	second := write("pepper/1.tsv", "5\tjan li pona\t6\tThe person is good.\n")

	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.Root = dir
	bags, reports, err := ig.IngestFiles(context.Background(), []string{first, second})
	require.NoError(t, err)
	require.Len(t, bags, 3)
	require.Len(t, reports, 2)
	assert.Equal(t, "beatrix/1.tsv", reports[0].Document)
	assert.Equal(t, "pepper/1.tsv", reports[1].Document)

	total, err := db.CountPairs(conn, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	n, err := db.CountPairs(conn, "beatrix/1.tsv")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = db.CountPairs(conn, "pepper/1.tsv")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// without a root the cleaned paths still differ
	ig.Root = ""
	assert.NotEqual(t, ig.DocumentName(first), ig.DocumentName(second))
	assert.Equal(t, filepath.ToSlash(filepath.Clean(first)), ig.DocumentName(first))
}

func TestIngestFiles_RejectsDuplicateDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sentences.tsv")
	require.NoError(t, os.WriteFile(path, []byte("1\tmoku li pona\t2\tFood is good!\n"), 0o644))

	conn := setupDB(t)
	ig := newTestIngester(conn)
	ig.Root = dir
	_, _, err := ig.IngestFiles(context.Background(), []string{path, filepath.Join(dir, ".", "sentences.tsv")})
	require.ErrorIs(t, err, ErrDuplicateDocument)

	n, err := db.CountPairs(conn, "")
	require.NoError(t, err)
	assert.Zero(t, n)

	// paths outside the root fall back to the cleaned path
	outside := filepath.Join(filepath.Dir(dir), "elsewhere.tsv")
	assert.Equal(t, filepath.ToSlash(filepath.Clean(outside)), ig.DocumentName(outside))
}
