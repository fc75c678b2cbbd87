// Package config loads corpusync configuration from a TOML file, with
// API keys supplied through the environment (optionally via a .env
// file).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/civisdocs/corpusync/internal/syncer"
)

// Config is the full on-disk configuration.
type Config struct {
	DataDirs   []string `toml:"data_dirs"`
	TrackingDB string   `toml:"tracking_db"`

	Chroma    ChromaConfig    `toml:"chroma"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Sync      SyncConfig      `toml:"sync"`
}

// ChromaConfig locates the vector index.
type ChromaConfig struct {
	URL        string `toml:"url"`
	Collection string `toml:"collection"`
}

// EmbeddingConfig selects the embedding provider. The API key is never
// stored in the file; it comes from the environment.
type EmbeddingConfig struct {
	Provider  string `toml:"provider"`
	CacheSize int    `toml:"cache_size"`
}

// SyncConfig holds the run parameters.
type SyncConfig struct {
	ChunkSize      int  `toml:"chunk_size"`
	ChunkOverlap   int  `toml:"chunk_overlap"`
	BatchSize      int  `toml:"batch_size"`
	FileWorkers    int  `toml:"file_workers"`
	BatchWorkers   int  `toml:"batch_workers"`
	MaxRetries     int  `toml:"max_retries"`
	BatchDelayMS   int  `toml:"batch_delay_ms"`
	CleanupDeleted bool `toml:"cleanup_deleted"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	sc := syncer.DefaultConfig()
	return Config{
		DataDirs: []string{
			"data/service-public/vosdroits-latest",
			"data/service-public/entreprendre-latest",
		},
		TrackingDB: "chroma_db/tracking.sqlite3",
		Chroma: ChromaConfig{
			URL:        "http://localhost:8000",
			Collection: "service_public",
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		Sync: SyncConfig{
			ChunkSize:      sc.ChunkSize,
			ChunkOverlap:   sc.ChunkOverlap,
			BatchSize:      sc.BatchSize,
			FileWorkers:    sc.FileWorkers,
			BatchWorkers:   sc.BatchWorkers,
			MaxRetries:     sc.MaxRetries,
			BatchDelayMS:   int(sc.BatchDelay.Milliseconds()),
			CleanupDeleted: sc.CleanupDeleted,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// fine; the defaults stand. A .env file in the working directory is
// loaded into the environment when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SyncerConfig converts the on-disk sync section into run parameters.
func (c Config) SyncerConfig() syncer.Config {
	sc := syncer.DefaultConfig()
	sc.DataDirs = c.DataDirs
	sc.CleanupDeleted = c.Sync.CleanupDeleted
	sc.ChunkSize = c.Sync.ChunkSize
	sc.ChunkOverlap = c.Sync.ChunkOverlap
	sc.BatchSize = c.Sync.BatchSize
	sc.FileWorkers = c.Sync.FileWorkers
	sc.BatchWorkers = c.Sync.BatchWorkers
	sc.MaxRetries = c.Sync.MaxRetries
	sc.BatchDelay = time.Duration(c.Sync.BatchDelayMS) * time.Millisecond
	return sc
}
