// Package seeder fills a fresh curation schema with communities and sample
// job postings for local development.
package seeder

import (
	"context"

	"curation-grid/internal/database"
)

type Seeder interface {
	Name() string
	Run(ctx context.Context, db database.DB) error
}
