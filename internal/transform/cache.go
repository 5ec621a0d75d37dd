package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "deliverypulse/internal/errors"
	"deliverypulse/internal/infrastructure"
	"deliverypulse/internal/loader"
	"deliverypulse/pkg/contracts/domain"
)

// GetFactOrders returns the fact table from the cache file when allowed and present,
// otherwise builds it from rawDir and refreshes the cache.
// An unreadable or stale cache falls through to a rebuild.
func GetFactOrders(ctx context.Context, rawDir string, store *Store, useCacheFile bool) ([]domain.FactOrder, *BuildInfo, error) {
	logger := infrastructure.LoggerFromContext(ctx).With(slog.String("component", "transform"))

	if useCacheFile && store.Exists() {
		rows, info, err := store.Load(ctx)
		if err == nil {
			logger.InfoContext(ctx, "Fact table loaded from cache",
				slog.String("path", store.Path()),
				slog.Int("rows", len(rows)),
				slog.Time("built_at", info.BuiltAt))
			return rows, info, nil
		}
		logger.WarnContext(ctx, "Cache unusable, rebuilding",
			slog.String("path", store.Path()),
			slog.String("error", err.Error()))
	}

	return BuildAndSave(ctx, rawDir, store)
}

// BuildAndSave loads the raw CSVs, builds the fact table and writes the cache
func BuildAndSave(ctx context.Context, rawDir string, store *Store) ([]domain.FactOrder, *BuildInfo, error) {
	logger := infrastructure.LoggerFromContext(ctx).With(slog.String("component", "transform"))
	start := time.Now()

	tables, err := loader.LoadRequired(ctx, rawDir)
	if err != nil {
		return nil, nil, loadError(ctx, err)
	}

	rows, err := Build(ctx, tables)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, fmt.Errorf("build failed: %w", err)
		}
		return nil, nil, apperrors.BuildError(err)
	}

	info, err := store.Save(ctx, rows)
	if err != nil {
		// The table is still usable in memory; only the cache write failed.
		logger.ErrorContext(ctx, "Failed to write fact table cache",
			slog.String("path", store.Path()),
			slog.String("error", err.Error()))
		return rows, &BuildInfo{BuiltAt: time.Now().UTC(), Rows: len(rows), SchemaVersion: SchemaVersion, Source: "raw"}, nil
	}

	logger.InfoContext(ctx, "Fact table cache written",
		slog.String("path", store.Path()),
		slog.String("build_id", info.ID),
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)))

	return rows, info, nil
}

// loadError classifies a LoadRequired failure. Cancellation passes through untouched.
func loadError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	var missing *loader.MissingFilesError
	if errors.As(err, &missing) {
		return apperrors.NewMissingDataError(missing.Files, err)
	}
	return apperrors.NewParsingError("failed to read raw tables", err)
}
