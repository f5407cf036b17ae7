package app

import (
	"context"
	"database/sql"
	"fmt"

	"grievline/internal/config"
	"grievline/internal/db"
	"grievline/internal/domain"
	"grievline/internal/migrate"
	"grievline/internal/repo"
)

// Open opens the workspace store with migrations applied and the
// config-declared departments seeded. Config is optional; defaults are
// used when grievline.yml is absent.
func Open(ctx context.Context, workspace string) (*sql.DB, *config.Config, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if cfg == nil {
		cfg = config.Default("default")
	}
	if err := SeedDepartments(ctx, repo.Repo{DB: conn}, cfg); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("seed departments: %w", err)
	}
	return conn, cfg, nil
}

// SeedDepartments upserts the config-declared department catalog so
// routing targets always exist before the first assignment.
func SeedDepartments(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	for id, dept := range cfg.Departments {
		if err := r.UpsertDepartment(ctx, domain.Department{ID: id, Name: dept.Name}); err != nil {
			return err
		}
	}
	return nil
}
