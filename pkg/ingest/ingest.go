// Package ingest turns corpus documents into translation bags concurrently,
// keeping document order and optionally storing every pair in sqlite.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/japaniel/tokisama/pkg/db"
	"github.com/japaniel/tokisama/pkg/miner"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester builds bags from sentence pairs.
type Ingester struct {
	// DB receives every ingested pair when non-nil.
	DB      *sql.DB
	Lexicon miner.Lexicon
	Ignore  miner.IgnoreSet
	// Root, when set, names stored documents by their slash-separated path
	// relative to it. Otherwise the cleaned path is used.
	Root string

	BatchSize int
	Workers   int
	// Logger is nil-safe; nil means slog.Default().
	Logger *slog.Logger
	// OnProgress is called every BatchSize pairs and once at the end.
	OnProgress func(current, total int)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates an Ingester. conn may be nil.
func NewIngester(conn *sql.DB, lx miner.Lexicon, ignore miner.IgnoreSet) *Ingester {
	return &Ingester{
		DB:        conn,
		Lexicon:   lx,
		Ignore:    ignore,
		BatchSize: 50,
		Workers:   4,
	}
}

// Report summarises one ingestion.
type Report struct {
	Document string
	Pairs    int
	Stored   int
	Stats    miner.CorpusStats
}

type processedPair struct {
	Index int
	Pair  miner.Pair
	Bag   miner.Bag
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger != nil {
		return ig.Logger
	}
	return slog.Default()
}

func (ig *Ingester) newPool() WorkerPoolInterface {
	workers := max(ig.Workers, 1)
	if ig.PoolFactory != nil {
		return ig.PoolFactory(workers, workers*2)
	}
	return NewWorkerPool(workers, workers*2)
}

// Ingest builds one bag per pair. The returned bags are in pair order. When
// DB is set each pair is stored under document at its position.
func (ig *Ingester) Ingest(ctx context.Context, document string, pairs []miner.Pair) ([]miner.Bag, Report, error) {
	report := Report{Document: document, Pairs: len(pairs)}
	total := len(pairs)
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	if total == 0 {
		return []miner.Bag{}, report, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := ig.newPool()
	wp.Start(ctx)
	workers := max(ig.Workers, 1)
	resultCh := make(chan processedPair, workers*2)

	var bw *BatchWriter
	if ig.DB != nil {
		bw = NewBatchWriter(ig.DB, ig.BatchSize, 100*time.Millisecond)
		bw.Logger = ig.logger()
	}

	bags := make([]miner.Bag, 0, total)
	doneCh := make(chan error, 1)

	// Consumer: reassemble results in pair order.
	go func() {
		buffer := make(map[int]processedPair)
		next := 0
		for res := range resultCh {
			buffer[res.Index] = res
			for {
				item, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				bags = append(bags, item.Bag)

				if bw != nil {
					row := db.CorpusPair{
						Document: document,
						Position: item.Index,
						English:  item.Pair.English,
						TokiPona: item.Pair.TokiPona,
					}
					err := bw.Submit(func(ctx context.Context, tx db.DBExecutor) error {
						return db.InsertPair(tx, row)
					})
					if err != nil {
						cancel()
						doneCh <- err
						return
					}
				}

				next++
				if ig.OnProgress != nil && ig.BatchSize > 0 && next%ig.BatchSize == 0 {
					ig.OnProgress(next, total)
				}
			}
		}
		doneCh <- nil
	}()

	// Producer: one job per pair.
	var submitErr error
	for i, p := range pairs {
		idx, pair := i, p
		job := func(ctx context.Context) error {
			res := processedPair{
				Index: idx,
				Pair:  pair,
				Bag:   miner.NewBag(pair.English, pair.TokiPona, ig.Lexicon, ig.Ignore),
			}
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if ctx.Err() == nil && !errors.Is(err, ErrPoolClosed) {
				submitErr = fmt.Errorf("submit pair %d: %w", idx, err)
				cancel()
			}
			break
		}
	}

	// All workers are gone once Close returns, so nothing can send on resultCh.
	wp.Close()
	close(resultCh)
	err := <-doneCh

	if bw != nil {
		if cerr := bw.Close(); cerr != nil && err == nil {
			err = cerr
		}
		report.Stored = bw.Committed()
	}
	if err == nil {
		err = submitErr
	}
	if err == nil && len(bags) < total {
		if err = ctx.Err(); err == nil {
			err = fmt.Errorf("ingest %s: %d of %d pairs processed", document, len(bags), total)
		}
	}
	if err != nil {
		return nil, report, err
	}

	if ig.OnProgress != nil {
		ig.OnProgress(total, total)
	}
	ig.logger().Debug("ingested document",
		slog.String("document", document),
		slog.Int("pairs", total),
		slog.Int("stored", report.Stored))
	return bags, report, nil
}

// ErrDuplicateDocument is returned when two corpus files map to the same
// stored document name.
var ErrDuplicateDocument = errors.New("duplicate document")

// DocumentName returns the name under which pairs from path are stored.
func (ig *Ingester) DocumentName(path string) string {
	if ig.Root != "" {
		if rel, err := filepath.Rel(ig.Root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// IngestFiles loads every corpus file and ingests it, concatenating the bags
// in file order. Pairs are stored under DocumentName(path).
func (ig *Ingester) IngestFiles(ctx context.Context, paths []string) ([]miner.Bag, []Report, error) {
	names := make(map[string]string, len(paths))
	for _, path := range paths {
		name := ig.DocumentName(path)
		if prev, ok := names[name]; ok {
			return nil, nil, fmt.Errorf("%s and %s both map to %q: %w", prev, path, name, ErrDuplicateDocument)
		}
		names[name] = path
	}

	var all []miner.Bag
	reports := make([]Report, 0, len(paths))
	for _, path := range paths {
		pairs, stats, err := miner.LoadCorpus(path, ig.logger())
		if err != nil {
			return nil, reports, err
		}
		bags, report, err := ig.Ingest(ctx, ig.DocumentName(path), pairs)
		if err != nil {
			return nil, reports, fmt.Errorf("ingest %s: %w", path, err)
		}
		report.Stats = stats
		reports = append(reports, report)
		all = append(all, bags...)

		ig.logger().Info("corpus loaded",
			slog.String("file", path),
			slog.Int("rows", stats.Rows),
			slog.Int("pairs", stats.Pairs),
			slog.Int("skipped", stats.Skipped))
	}
	return all, reports, nil
}
