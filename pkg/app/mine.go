package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/japaniel/tokisama/pkg/config"
	"github.com/japaniel/tokisama/pkg/db"
	"github.com/japaniel/tokisama/pkg/ingest"
	"github.com/japaniel/tokisama/pkg/lexicon"
	"github.com/japaniel/tokisama/pkg/miner"
)

// MineResult summarises a mining run.
type MineResult struct {
	// RunID is empty when no database is configured.
	RunID string
	// Files counts corpus files, or stored documents when re-mining.
	Files int
	Bags  int
	Lines int
	// StoredPairs is the number of corpus pairs in the database after the run.
	StoredPairs int
	ModelPath   string
}

// CorpusFiles expands the configured CSV directories into their .csv files
// (sorted by name) followed by the TSV files, all resolved against the
// data directory.
func CorpusFiles(cfg config.CorpusConfig, data config.DataConfig) ([]string, error) {
	var files []string
	for _, dir := range cfg.CSVDirs {
		dir = data.Path(strings.TrimSpace(dir))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("corpus dir: %w", err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				found = append(found, filepath.Join(dir, e.Name()))
			}
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	for _, f := range cfg.TSV {
		files = append(files, data.Path(strings.TrimSpace(f)))
	}
	return files, nil
}

func newIngester(cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, logger *slog.Logger) *ingest.Ingester {
	ig := ingest.NewIngester(conn, lx, miner.NewIgnoreSet(lx, miner.DefaultIgnoreWords))
	ig.Root = cfg.Data.Dir
	ig.Workers = cfg.Corpus.Workers
	ig.BatchSize = cfg.Database.BatchSize
	ig.Logger = logger
	return ig
}

// Mine reads every corpus file, mines the association model and writes it
// to the configured model file. When conn is non-nil the corpus pairs and
// the emitted lines are recorded under a new run.
func Mine(ctx context.Context, cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, logger *slog.Logger) (MineResult, error) {
	logger = orDefault(logger)

	files, err := CorpusFiles(cfg.Corpus, cfg.Data)
	if err != nil {
		return MineResult{}, err
	}
	if len(files) == 0 {
		return MineResult{}, fmt.Errorf("mine: no corpus files configured")
	}

	bags, _, err := newIngester(cfg, lx, conn, logger).IngestFiles(ctx, files)
	if err != nil {
		return MineResult{}, err
	}
	return finishMine(cfg, lx, conn, bags, len(files), logger)
}

// MineStored re-mines the model from the corpus pairs already in the
// database, without reading any corpus file.
func MineStored(ctx context.Context, cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, logger *slog.Logger) (MineResult, error) {
	logger = orDefault(logger)
	if conn == nil {
		return MineResult{}, fmt.Errorf("mine: stored corpus needs a database")
	}

	docs, err := db.Documents(conn)
	if err != nil {
		return MineResult{}, fmt.Errorf("list documents: %w", err)
	}
	if len(docs) == 0 {
		return MineResult{}, fmt.Errorf("mine: no stored corpus pairs")
	}

	// pairs are already stored, so ingest without a database
	ig := newIngester(cfg, lx, nil, logger)
	var bags []miner.Bag
	for _, doc := range docs {
		stored, err := db.GetPairs(conn, doc)
		if err != nil {
			return MineResult{}, fmt.Errorf("load %s: %w", doc, err)
		}
		pairs := make([]miner.Pair, len(stored))
		for i, p := range stored {
			pairs[i] = miner.NewPair(p.English, p.TokiPona)
		}
		b, _, err := ig.Ingest(ctx, doc, pairs)
		if err != nil {
			return MineResult{}, fmt.Errorf("ingest %s: %w", doc, err)
		}
		bags = append(bags, b...)
	}
	return finishMine(cfg, lx, conn, bags, len(docs), logger)
}

func finishMine(cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, bags []miner.Bag, files int, logger *slog.Logger) (MineResult, error) {
	m := miner.New(bags)
	entries := m.Model(cfg.Miner.Cutoff)

	res := MineResult{
		Files:     files,
		Bags:      m.BagCount(),
		ModelPath: cfg.Data.Path(cfg.Data.Model),
	}
	var err error
	if res.Lines, err = writeModelFile(res.ModelPath, entries, lx); err != nil {
		return MineResult{}, err
	}

	if conn != nil {
		id, err := recordRun(conn, cfg.Miner.Cutoff, m.BagCount(), entries, lx)
		if err != nil {
			return MineResult{}, err
		}
		res.RunID = id
		if res.StoredPairs, err = db.CountPairs(conn, ""); err != nil {
			return MineResult{}, fmt.Errorf("count pairs: %w", err)
		}
	}

	logger.Info("model mined",
		slog.Int("files", res.Files),
		slog.Int("bags", res.Bags),
		slog.Int("lines", res.Lines),
		slog.Int("stored_pairs", res.StoredPairs),
		slog.String("path", res.ModelPath),
		slog.String("run", res.RunID))
	return res, nil
}

// writeModelFile writes through a temp file so a failed run leaves the
// previous model in place.
func writeModelFile(path string, entries []miner.ModelEntry, lx *lexicon.Lexicon) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := miner.WriteModel(tmp, entries, lx)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write model: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return n, nil
}

func recordRun(conn *sql.DB, cutoff float64, bags int, entries []miner.ModelEntry, lx *lexicon.Lexicon) (string, error) {
	tx, err := conn.Begin()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	run, err := db.CreateRun(tx, cutoff, bags)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Format(lx)
	}
	if err := db.SaveModelLines(tx, run.ID, lines); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return run.ID.String(), nil
}
