package config

import (
	"fmt"
	"strings"
)

// Validate checks limits that env-default tags cannot express. Load calls it.
func (c *Config) Validate() error {
	if c.Miner.Cutoff < 0 {
		return fmt.Errorf("miner.cutoff must be >= 0 (got %v)", c.Miner.Cutoff)
	}
	if c.Index.MaxResults <= 0 {
		return fmt.Errorf("index.max_results must be > 0 (got %d)", c.Index.MaxResults)
	}
	if c.Index.MaxSimilar <= 0 {
		return fmt.Errorf("index.max_similar must be > 0 (got %d)", c.Index.MaxSimilar)
	}
	if c.Corpus.Workers <= 0 {
		return fmt.Errorf("corpus.workers must be > 0 (got %d)", c.Corpus.Workers)
	}
	if c.Database.BatchSize <= 0 {
		return fmt.Errorf("database.batch_size must be > 0 (got %d)", c.Database.BatchSize)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	if strings.TrimSpace(c.Data.Lexicon) == "" {
		return fmt.Errorf("data.lexicon is required")
	}
	return nil
}
