package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved, absolute application paths.
// This is the single source of truth for file locations.
type Paths struct {
	BaseDir      string
	RawDir       string
	ProcessedDir string
	LogsDir      string

	// FactTableFile is the processed cache file
	FactTableFile string
}

// ResolvePaths turns the configured directories into absolute paths
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}
		return filepath.Join(base, dir)
	}

	processed := resolve(c.Paths.ProcessedDir)

	return &Paths{
		BaseDir:       base,
		RawDir:        resolve(c.Paths.RawDir),
		ProcessedDir:  processed,
		LogsDir:       resolve(c.Paths.LogsDir),
		FactTableFile: filepath.Join(processed, FactTableFileName),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.RawDir,
		p.ProcessedDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// RawFile returns the path of a raw dataset file
func (p *Paths) RawFile(name string) string {
	return filepath.Join(p.RawDir, name)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths at startup
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("raw", p.RawDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Group("files",
			slog.String("fact_table", p.FactTableFile),
			slog.Bool("fact_table_exists", FileExists(p.FactTableFile)),
		))
}
