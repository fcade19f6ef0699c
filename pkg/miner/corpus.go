package miner

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var (
	// ErrMalformedRow marks a corpus row that cannot be split into an aligned pair.
	ErrMalformedRow = errors.New("malformed corpus row")
	// ErrMissingColumns is returned for a CSV corpus whose header lacks a required column.
	ErrMissingColumns = errors.New("corpus header missing required column")
)

const (
	columnTranslation = "translation"
	columnOriginal    = "original"
	columnFinal       = "final"

	markerTextStart = "text start"
	markerPredefine = "predefine"

	// tsv sentence pair files: id, toki pona, id, english
	tsvTokiPona = 1
	tsvEnglish  = 3
)

// Pair is one aligned, normalised English/Toki Pona fragment.
type Pair struct {
	English  string
	TokiPona string
}

// NewPair normalises both sides with NormalizeText.
func NewPair(english, tokiPona string) Pair {
	return Pair{English: NormalizeText(english), TokiPona: NormalizeText(tokiPona)}
}

// CorpusStats summarises one corpus read.
type CorpusStats struct {
	Rows       int
	Pairs      int
	Predefines int
	Skipped    int
}

// StripTalker removes a leading speaker tag: "[dan] hello" -> " hello".
func StripTalker(s string) string {
	start := strings.IndexByte(s, '[')
	end := strings.IndexByte(s, ']')
	if start < 0 || end < 0 || start >= end {
		return s
	}
	if strings.TrimSpace(s[:start]) != "" {
		return s
	}
	return s[end+1:]
}

// NormalizeText strips a talker tag, folds ASCII punctuation and every
// non-ASCII rune to a space and lowercases the rest.
func NormalizeText(s string) string {
	s = StripTalker(s)
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
}

func logSkip(logger *slog.Logger, row int, err error) {
	logger.Warn("skipping corpus row", slog.Int("row", row), slog.String("error", err.Error()))
}

// ReadCSV reads a story corpus. The header names the translation, original
// and final columns; rows are taken from the "text start" marker onwards,
// "predefine" rows before it are only counted.
func ReadCSV(r io.Reader, logger *slog.Logger) ([]Pair, CorpusStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var stats CorpusStats

	header, err := cr.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read corpus header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	col := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.Trim(strings.TrimSpace(h), `"`), name) {
				return i
			}
		}
		return -1
	}
	translationIdx, originalIdx, finalIdx := col(columnTranslation), col(columnOriginal), col(columnFinal)
	if translationIdx < 0 || originalIdx < 0 || finalIdx < 0 {
		return nil, stats, fmt.Errorf("%w: need %q, %q and %q", ErrMissingColumns, columnTranslation, columnOriginal, columnFinal)
	}
	maxIdx := max(translationIdx, originalIdx, finalIdx)

	var pairs []Pair
	started := false
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		stats.Rows++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			stats.Skipped++
			logSkip(logger, stats.Rows, fmt.Errorf("%w: %v", ErrMalformedRow, err))
			continue
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read corpus: %w", err)
		}
		if len(rec) <= maxIdx {
			stats.Skipped++
			logSkip(logger, stats.Rows, fmt.Errorf("%w: %d fields, need %d", ErrMalformedRow, len(rec), maxIdx+1))
			continue
		}

		marker := strings.TrimSpace(rec[translationIdx])
		switch {
		case started || strings.EqualFold(marker, markerTextStart):
			started = true
			pairs = append(pairs, NewPair(rec[originalIdx], rec[finalIdx]))
		case strings.EqualFold(marker, markerPredefine):
			stats.Predefines++
		}
	}

	stats.Pairs = len(pairs)
	return pairs, stats, nil
}

// ReadTSV reads sentence pair lines "id\ttoki pona\tid\tenglish".
func ReadTSV(r io.Reader, logger *slog.Logger) ([]Pair, CorpusStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var stats CorpusStats
	var pairs []Pair
	for scanner.Scan() {
		stats.Rows++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= tsvEnglish {
			stats.Skipped++
			logSkip(logger, stats.Rows, fmt.Errorf("%w: %d fields, need %d", ErrMalformedRow, len(fields), tsvEnglish+1))
			continue
		}
		pairs = append(pairs, NewPair(fields[tsvEnglish], fields[tsvTokiPona]))
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read corpus: %w", err)
	}

	stats.Pairs = len(pairs)
	return pairs, stats, nil
}

// LoadCorpus reads path with ReadCSV or ReadTSV depending on its extension.
func LoadCorpus(path string, logger *slog.Logger) ([]Pair, CorpusStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, CorpusStats{}, err
	}
	defer f.Close()

	var (
		pairs []Pair
		stats CorpusStats
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		pairs, stats, err = ReadCSV(f, logger)
	case ".tsv", ".txt":
		pairs, stats, err = ReadTSV(f, logger)
	default:
		return nil, CorpusStats{}, fmt.Errorf("%s: unsupported corpus format", path)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("%s: %w", path, err)
	}
	return pairs, stats, nil
}
