package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/japaniel/tokisama/pkg/dictionary"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// CorpusPair is one aligned sentence pair as stored.
type CorpusPair struct {
	Document string
	Position int
	English  string
	TokiPona string
}

// ModelRun records one mining pass.
type ModelRun struct {
	ID        uuid.UUID
	Cutoff    float64
	BagCount  int
	LineCount int
	CreatedAt time.Time
}

func exec(db DBExecutor, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.Exec(query, args...)
}

func query(db DBExecutor, b squirrel.Sqlizer) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.Query(q, args...)
}

// InsertPair stores p, replacing the text of an existing pair at the same
// document position.
func InsertPair(db DBExecutor, p CorpusPair) error {
	if strings.TrimSpace(p.Document) == "" {
		return fmt.Errorf("document must be non-empty")
	}
	if p.Position < 0 {
		return fmt.Errorf("position must be non-negative, got %d", p.Position)
	}
	_, err := exec(db, squirrel.Insert("corpus_pairs").
		Columns("document", "position", "english", "toki_pona").
		Values(p.Document, p.Position, p.English, p.TokiPona).
		Suffix("ON CONFLICT(document, position) DO UPDATE SET english = excluded.english, toki_pona = excluded.toki_pona"))
	if err != nil {
		return fmt.Errorf("insert pair %s#%d: %w", p.Document, p.Position, err)
	}
	return nil
}

// CountPairs returns the number of stored pairs for document, or for all
// documents when document is empty.
func CountPairs(db DBExecutor, document string) (int, error) {
	b := squirrel.Select("COUNT(*)").From("corpus_pairs")
	if document != "" {
		b = b.Where(squirrel.Eq{"document": document})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Documents returns the names of all documents with stored pairs, sorted.
func Documents(db DBExecutor) ([]string, error) {
	rows, err := query(db, squirrel.Select("DISTINCT document").
		From("corpus_pairs").
		OrderBy("document"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetPairs returns the pairs of document in position order.
func GetPairs(db DBExecutor, document string) ([]CorpusPair, error) {
	rows, err := query(db, squirrel.Select("document", "position", "english", "toki_pona").
		From("corpus_pairs").
		Where(squirrel.Eq{"document": document}).
		OrderBy("position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CorpusPair
	for rows.Next() {
		var p CorpusPair
		if err := rows.Scan(&p.Document, &p.Position, &p.English, &p.TokiPona); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveDictionary replaces the stored dictionary called name with d.
// Compounds are stored as surface text so a later lexicon can re-resolve them.
func SaveDictionary(db *sql.DB, name string, d *dictionary.Dictionary, lx dictionary.Surfacer) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("dictionary name must be non-empty")
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if _, err := exec(tx, squirrel.Delete("translations").Where(squirrel.Eq{"dictionary": name})); err != nil {
		return fmt.Errorf("clear dictionary %s: %w", name, err)
	}
	for i, t := range d.Entries {
		_, err := exec(tx, squirrel.Insert("translations").
			Columns("dictionary", "position", "english", "compound", "weight", "source").
			Values(name, i, t.English, t.Compound.Render(lx), t.Weight, t.Source.String()))
		if err != nil {
			return fmt.Errorf("insert translation %q: %w", t.English, err)
		}
	}
	return tx.Commit()
}

// LoadDictionary reads the dictionary called name back in stored order.
// Rows whose compound no longer resolves against lx are skipped and logged.
func LoadDictionary(db DBExecutor, name string, lx dictionary.Lexicon, logger *slog.Logger) (*dictionary.Dictionary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := query(db, squirrel.Select("english", "compound", "weight", "source").
		From("translations").
		Where(squirrel.Eq{"dictionary": name}).
		OrderBy("position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	d := dictionary.New()
	for rows.Next() {
		var english, compound, source string
		var weight uint32
		if err := rows.Scan(&english, &compound, &weight, &source); err != nil {
			return nil, err
		}
		src, err := dictionary.ParseSource(source)
		if err != nil {
			return nil, fmt.Errorf("translation %q: %w", english, err)
		}
		c, unknown, ok := dictionary.ParseCompound(compound, lx)
		if !ok {
			logger.Warn("stored translation no longer resolves",
				slog.String("dictionary", name),
				slog.String("english", english),
				slog.String("word", unknown))
			continue
		}
		d.Add(dictionary.Translation{English: english, Compound: c, Weight: weight, Source: src})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// CreateRun records a new mining run and returns it with a fresh id.
func CreateRun(db DBExecutor, cutoff float64, bagCount int) (ModelRun, error) {
	run := ModelRun{
		ID:        uuid.New(),
		Cutoff:    cutoff,
		BagCount:  bagCount,
		CreatedAt: time.Now().UTC(),
	}
	_, err := exec(db, squirrel.Insert("model_runs").
		Columns("id", "cutoff", "bag_count", "created_at").
		Values(run.ID.String(), run.Cutoff, run.BagCount, run.CreatedAt))
	if err != nil {
		return ModelRun{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// SaveModelLines appends lines to the run and updates its line count.
func SaveModelLines(db DBExecutor, runID uuid.UUID, lines []string) error {
	id := runID.String()
	var offset int
	q, args, err := squirrel.Select("COUNT(*)").From("model_lines").Where(squirrel.Eq{"run_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := db.QueryRow(q, args...).Scan(&offset); err != nil {
		return err
	}

	for i, line := range lines {
		_, err := exec(db, squirrel.Insert("model_lines").
			Columns("run_id", "position", "line").
			Values(id, offset+i, line))
		if err != nil {
			return fmt.Errorf("insert model line %d: %w", offset+i, err)
		}
	}

	res, err := exec(db, squirrel.Update("model_runs").
		Set("line_count", offset+len(lines)).
		Where(squirrel.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// LoadModelLines returns the run's lines in emission order.
func LoadModelLines(db DBExecutor, runID uuid.UUID) ([]string, error) {
	rows, err := query(db, squirrel.Select("line").
		From("model_lines").
		Where(squirrel.Eq{"run_id": runID.String()}).
		OrderBy("position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently created run.
func LatestRun(db DBExecutor) (ModelRun, error) {
	q, args, err := squirrel.Select("id", "cutoff", "bag_count", "line_count", "created_at").
		From("model_runs").
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return ModelRun{}, fmt.Errorf("build query: %w", err)
	}

	var run ModelRun
	var id string
	err = db.QueryRow(q, args...).Scan(&id, &run.Cutoff, &run.BagCount, &run.LineCount, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelRun{}, ErrNotFound
	}
	if err != nil {
		return ModelRun{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return ModelRun{}, fmt.Errorf("run id %q: %w", id, err)
	}
	return run, nil
}
