// Package app wires the lexicon, dictionary tiers, miner and index together
// from a Config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/japaniel/tokisama/pkg/config"
	"github.com/japaniel/tokisama/pkg/db"
	"github.com/japaniel/tokisama/pkg/dictionary"
	"github.com/japaniel/tokisama/pkg/index"
	"github.com/japaniel/tokisama/pkg/lexicon"
)

// MergedDictionary is the name the merged dictionary is stored under.
const MergedDictionary = "merged"

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// LoadLexicon reads the lexicon file, downloading it first when it is
// missing and a URL is configured.
func LoadLexicon(ctx context.Context, cfg config.DataConfig, logger *slog.Logger) (*lexicon.Lexicon, error) {
	logger = orDefault(logger)
	path := cfg.Path(cfg.Lexicon)
	if err := dictionary.EnsureFile(ctx, path, cfg.LexiconURL); err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	lx, err := lexicon.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("lexicon loaded", slog.String("path", path), slog.Int("words", lx.Len()))
	return lx, nil
}

// LoadDictionary reads the canonical, curated and generated tiers
// concurrently and merges them in that priority order. Only the canonical
// file is required. When the model file is missing and conn is non-nil the
// generated tier comes from the latest stored mining run.
func LoadDictionary(ctx context.Context, cfg config.DataConfig, lx dictionary.Lexicon, conn *sql.DB, logger *slog.Logger) (*dictionary.Dictionary, error) {
	logger = orDefault(logger)

	var canonical, curated, generated *dictionary.Dictionary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d, stats, err := dictionary.LoadWordset(cfg.Path(cfg.Canonical), lx, dictionary.Canonical, logger)
		if err != nil {
			return fmt.Errorf("canonical tier: %w", err)
		}
		logTier(logger, "canonical", stats)
		canonical = d
		return gctx.Err()
	})
	g.Go(func() error {
		d, stats, err := dictionary.LoadWordset(cfg.Path(cfg.Compounds), lx, dictionary.Curated, logger)
		if optionalMissing(err) {
			logger.Warn("curated tier missing", slog.String("path", cfg.Path(cfg.Compounds)))
			return nil
		}
		if err != nil {
			return fmt.Errorf("curated tier: %w", err)
		}
		logTier(logger, "curated", stats)
		curated = d
		return gctx.Err()
	})
	g.Go(func() error {
		d, stats, err := dictionary.LoadModel(cfg.Path(cfg.Model), lx, logger)
		if optionalMissing(err) && conn != nil {
			d, stats, err = storedModel(conn, lx, logger)
		}
		if optionalMissing(err) || errors.Is(err, db.ErrNotFound) {
			logger.Warn("generated tier missing", slog.String("path", cfg.Path(cfg.Model)))
			return nil
		}
		if err != nil {
			return fmt.Errorf("generated tier: %w", err)
		}
		logTier(logger, "generated", stats)
		generated = d
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dictionary.MergeTiers(canonical, curated, generated), nil
}

// storedModel parses the lines of the latest mining run.
func storedModel(conn *sql.DB, lx dictionary.Lexicon, logger *slog.Logger) (*dictionary.Dictionary, dictionary.LoadStats, error) {
	run, err := db.LatestRun(conn)
	if err != nil {
		return nil, dictionary.LoadStats{}, err
	}
	lines, err := db.LoadModelLines(conn, run.ID)
	if err != nil {
		return nil, dictionary.LoadStats{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	logger.Info("generated tier from stored run",
		slog.String("run", run.ID.String()),
		slog.Time("created", run.CreatedAt),
		slog.Int("lines", len(lines)))
	return dictionary.ReadModel(strings.NewReader(strings.Join(lines, "\n")), lx, logger)
}

func optionalMissing(err error) bool {
	return err != nil && errors.Is(err, os.ErrNotExist)
}

func logTier(logger *slog.Logger, tier string, stats dictionary.LoadStats) {
	logger.Info("dictionary tier loaded",
		slog.String("tier", tier),
		slog.Int("lines", stats.Lines),
		slog.Int("records", stats.Records),
		slog.Int("skipped", stats.Skipped),
		slog.Int("dropped", stats.Dropped))
}

// BuildIndex loads and merges the dictionary tiers and builds the lookup
// index. When conn is non-nil the merged dictionary is stored as well.
func BuildIndex(ctx context.Context, cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, logger *slog.Logger) (*index.Index, error) {
	logger = orDefault(logger)

	d, err := LoadDictionary(ctx, cfg.Data, lx, conn, logger)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		if err := db.SaveDictionary(conn, MergedDictionary, d, lx); err != nil {
			return nil, fmt.Errorf("store dictionary: %w", err)
		}
	}

	return buildIndex(cfg.Index, d, lx, logger), nil
}

// LoadStoredIndex builds the index from the merged dictionary saved by an
// earlier BuildIndex, without reading any dictionary file.
func LoadStoredIndex(cfg *config.Config, lx *lexicon.Lexicon, conn *sql.DB, logger *slog.Logger) (*index.Index, error) {
	logger = orDefault(logger)
	if conn == nil {
		return nil, fmt.Errorf("stored index needs a database")
	}
	d, err := db.LoadDictionary(conn, MergedDictionary, lx, logger)
	if err != nil {
		return nil, fmt.Errorf("load %s dictionary: %w", MergedDictionary, err)
	}
	if d.Len() == 0 {
		return nil, fmt.Errorf("%s dictionary: %w", MergedDictionary, db.ErrNotFound)
	}
	return buildIndex(cfg.Index, d, lx, logger), nil
}

func buildIndex(cfg config.IndexConfig, d *dictionary.Dictionary, lx *lexicon.Lexicon, logger *slog.Logger) *index.Index {
	ix := index.Build(d, lx,
		index.WithMaxResults(cfg.MaxResults),
		index.WithMaxSimilar(cfg.MaxSimilar))
	logger.Info("index built", slog.Int("entries", ix.Len()), slog.Int("keys", ix.Keys()))
	return ix
}
