package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/hackbot/core/config"
	"github.com/m3rciful/hackbot/core/logger"
)

const migComponent = "db.migrate"

// RunMigrations applies all up migrations from cfg.MigrationsDir. A relative
// directory is resolved against the working directory. The server must
// already accept connections.
func RunMigrations(ctx context.Context, cfg coreconfig.DatabaseConfig) error {
	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	files := ListMigrationFiles(dir)
	logger.Debug(ctx, migComponent, "resolve",
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
		previewAttr(files),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), URLDSN(cfg))
	if err != nil {
		logger.Error(ctx, migComponent, "init", slog.String("status", "error"), slog.String("err", err.Error()))
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn(ctx, migComponent, "close", slog.Any("err", errors.Join(srcErr, dbErr)))
		}
	}()

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := logger.Took(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.Error(ctx, migComponent, "apply",
			slog.String("status", "error"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	logger.Info(ctx, migComponent, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		previewAttr(applied),
		slog.Duration("duration", took),
	)
	return nil
}

func previewAttr(names []string) slog.Attr {
	preview, truncated := logger.SummarizeStrings(names, 6)
	if truncated {
		preview += ", ..."
	}
	return slog.String("files_preview", preview)
}

// ListMigrationFiles returns the sorted *.up.sql names in dir.
func ListMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// migrationVersion parses the numeric prefix of "0001_name.up.sql".
func migrationVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the files with from < version <= to.
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := migrationVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
