package seeder

import (
	"context"
	"fmt"

	"curation-grid/internal/database"
)

type CommunitiesSeeder struct{}

func (CommunitiesSeeder) Name() string { return "communities" }

var communities = []struct {
	ID   int64
	Name string
}{
	{1, "Morning Brew"},
	{2, "Tech Brew"},
	{3, "Retail Brew"},
	{4, "Marketing Brew"},
	{5, "HR Brew"},
	{6, "CFO Brew"},
}

func (CommunitiesSeeder) Run(ctx context.Context, db database.DB) error {
	if err := EnsureTableColumns(ctx, db, "communities", "id", "community_name"); err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	for _, c := range communities {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO communities (id, community_name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
			c.ID,
			c.Name,
		); err != nil {
			return err
		}
	}
	// explicit ids leave the serial behind
	if _, err := tx.Exec(ctx, `SELECT setval(pg_get_serial_sequence('communities', 'id'), (SELECT MAX(id) FROM communities))`); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
