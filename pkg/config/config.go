// Package config loads tokisama settings from YAML and the environment.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Miner    MinerConfig    `yaml:"miner"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DataConfig locates the lexicon and dictionary files. Relative file names
// are resolved against Dir.
type DataConfig struct {
	Dir        string `yaml:"dir"         env:"DATA_DIR"         env-default:"data"`
	Lexicon    string `yaml:"lexicon"     env:"DATA_LEXICON"     env-default:"pu.csv"`
	Canonical  string `yaml:"canonical"   env:"DATA_CANONICAL"   env-default:"words.txt"`
	Compounds  string `yaml:"compounds"   env:"DATA_COMPOUNDS"   env-default:"compounds.txt"`
	Model      string `yaml:"model"       env:"DATA_MODEL"       env-default:"generated_dict.txt"`
	LexiconURL string `yaml:"lexicon_url" env:"DATA_LEXICON_URL"`
}

// Path resolves name against Dir unless it is absolute.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// CorpusConfig lists the parallel corpora fed to the miner.
type CorpusConfig struct {
	CSVDirs []string `yaml:"csv_dirs" env:"CORPUS_CSV_DIRS" env-separator:","`
	TSV     []string `yaml:"tsv"      env:"CORPUS_TSV"      env-separator:","`
	Workers int      `yaml:"workers"  env:"CORPUS_WORKERS"  env-default:"4"`
}

// MinerConfig holds association mining settings.
type MinerConfig struct {
	Cutoff float64 `yaml:"cutoff" env:"MINER_CUTOFF" env-default:"100"`
}

// IndexConfig holds lookup limits.
type IndexConfig struct {
	MaxResults int `yaml:"max_results" env:"INDEX_MAX_RESULTS" env-default:"5"`
	MaxSimilar int `yaml:"max_similar" env:"INDEX_MAX_SIMILAR" env-default:"5"`
}

// DatabaseConfig holds sqlite settings. An empty Path disables persistence.
type DatabaseConfig struct {
	Path      string `yaml:"path"       env:"DATABASE_PATH"`
	BatchSize int    `yaml:"batch_size" env:"DATABASE_BATCH_SIZE" env-default:"50"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"127.0.0.1"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}
