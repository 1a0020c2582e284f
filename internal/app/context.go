package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"sapaboard/internal/config"
	"sapaboard/internal/db"
	"sapaboard/internal/engine"
	"sapaboard/internal/migrate"
	"sapaboard/internal/repo"
)

// Runtime is an opened workspace: config, migrated database and engine.
type Runtime struct {
	Workspace string
	DB        *sql.DB
	Repo      repo.Repo
	Config    *config.Config
	Engine    engine.Engine
}

func (rt *Runtime) Close() error {
	if rt == nil || rt.DB == nil {
		return nil
	}
	return rt.DB.Close()
}

// Open loads sapaboard.yml (defaults when absent), opens and migrates the
// workspace database and builds the engine.
func Open(ctx context.Context, workspace string, logger *slog.Logger) (*Runtime, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Runtime{
		Workspace: workspace,
		DB:        conn,
		Repo:      repo.Repo{DB: conn},
		Config:    cfg,
		Engine:    engine.New(conn, cfg, logger),
	}, nil
}

// SeedAdmin creates the first user when the workspace has none. It reports
// whether a user was created. Empty credentials are a no-op.
func SeedAdmin(ctx context.Context, rt *Runtime, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	n, err := rt.Repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := rt.Engine.AddUser(ctx, email, password); err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	return true, nil
}
