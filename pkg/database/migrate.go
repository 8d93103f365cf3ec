package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"rainfall-platform/pkg/logging"
)

//go:embed migrations
var migrationsFS embed.FS

// Migration directions
const (
	MigrateUp   = "up"
	MigrateDown = "down"
)

// MigrationFiles lists the migration files for a driver and direction in
// the order they must be applied.
func MigrationFiles(driver, direction string) ([]string, error) {
	if direction != MigrateUp && direction != MigrateDown {
		return nil, fmt.Errorf("invalid migration direction %q", direction)
	}

	dir := path.Join("migrations", driver)
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for driver %q: %w", driver, err)
	}

	suffix := "." + direction + ".sql"
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	if direction == MigrateDown {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	return files, nil
}

// Migrate applies the embedded schema migrations in the given direction
func (p *DB) Migrate(ctx context.Context, direction string) error {
	files, err := MigrationFiles(p.config.Driver, direction)
	if err != nil {
		return err
	}

	for _, file := range files {
		content, err := migrationsFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if _, err := p.db.ExecContext(ctx, string(content)); err != nil {
			p.metrics.RecordDBError("migration_error")
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}

		p.logger.Info(ctx, "[DB_MIGRATE] Migration applied", logging.Fields{
			"file":      file,
			"direction": direction,
		})
	}

	return nil
}
