package dictionary

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LoadStats summarises one wordset or model read.
type LoadStats struct {
	Lines   int
	Records int
	Skipped int
	Dropped int
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s
}

// ReadWordset reads curated lines (see ParseLine) into a dictionary of the
// given tier. Malformed lines are logged and skipped.
func ReadWordset(r io.Reader, lx Lexicon, source Source, logger *slog.Logger) (*Dictionary, LoadStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dictionary{Entries: make([]Translation, 0, 200)}
	var stats LoadStats

	scanner := newScanner(r)
	for scanner.Scan() {
		stats.Lines++
		line := scanner.Text()

		ts, err := ParseLine(line, lx, source)
		if err != nil {
			stats.Skipped++
			logger.Warn("could not parse line",
				slog.String("source", source.String()),
				slog.Int("line", stats.Lines),
				slog.String("text", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.Add(ts...)
		stats.Records += len(ts)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read %s wordset: %w", source, err)
	}

	return d, stats, nil
}

// ReadModel reads mined model lines (see FromModelLine) into a Generated
// dictionary. Malformed lines are logged and skipped; garbage-filtered
// lines are counted in Dropped without a log entry.
func ReadModel(r io.Reader, lx Lexicon, logger *slog.Logger) (*Dictionary, LoadStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dictionary{Entries: make([]Translation, 0, 2000)}
	var stats LoadStats

	scanner := newScanner(r)
	for scanner.Scan() {
		stats.Lines++
		line := scanner.Text()

		t, ok, err := FromModelLine(line, lx)
		switch {
		case err != nil:
			stats.Skipped++
			logger.Warn("could not parse model line",
				slog.Int("line", stats.Lines),
				slog.String("text", line),
				slog.String("error", err.Error()),
			)
		case !ok:
			stats.Dropped++
		default:
			d.Add(t)
			stats.Records++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read model: %w", err)
	}

	return d, stats, nil
}

// LoadWordset opens path and calls ReadWordset.
func LoadWordset(path string, lx Lexicon, source Source, logger *slog.Logger) (*Dictionary, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	defer f.Close()
	return ReadWordset(f, lx, source, logger)
}

// LoadModel opens path and calls ReadModel.
func LoadModel(path string, lx Lexicon, logger *slog.Logger) (*Dictionary, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, err
	}
	defer f.Close()
	return ReadModel(f, lx, logger)
}
