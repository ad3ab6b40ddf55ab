package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"curation-grid/internal/database"
	"curation-grid/internal/feed"
)

// PostingsSeeder inserts Count deterministic postings with ids 1..Count, so
// reruns are no-ops.
type PostingsSeeder struct {
	Count int
	Now   func() time.Time
}

func (PostingsSeeder) Name() string { return "job_postings" }

var (
	sampleCompanies = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises"}
	sampleTitles    = []string{"Software Engineer", "Product Designer", "Data Analyst", "Account Executive", "Marketing Manager", "Staff Accountant"}
	sampleLocations = []feed.Location{
		{City: "New York", State: "NY", Country: "United States"},
		{City: "Austin", State: "TX", Country: "United States"},
		{City: "Chicago", State: "IL", Country: "United States"},
		{City: "Toronto", State: "ON", Country: "Canada"},
	}
	sampleTypes    = []string{"FULL_TIME", "PART_TIME", "CONTRACTOR"}
	samplePartners = []struct{ name, payment string }{
		{"Appcast", "cpc"},
		{"Talroo", "cpa"},
		{"", ""},
	}
)

type posting struct {
	id             int64
	company        string
	title          string
	locations      string
	employmentType string
	isRemote       *bool
	salaryMin      *float64
	salaryMax      *float64
	cpc            *float64
	postedAt       int64
	partner        string
	payment        string
}

func samplePosting(i int, now time.Time) (posting, error) {
	loc := sampleLocations[i%len(sampleLocations)]
	locs, err := json.Marshal([]feed.Location{loc})
	if err != nil {
		return posting{}, err
	}
	partner := samplePartners[i%len(samplePartners)]

	p := posting{
		id:             int64(i + 1),
		company:        sampleCompanies[i%len(sampleCompanies)],
		title:          sampleTitles[i%len(sampleTitles)],
		locations:      string(locs),
		employmentType: sampleTypes[i%len(sampleTypes)],
		postedAt:       now.Add(-time.Duration(i) * time.Hour).UnixMilli(),
		partner:        partner.name,
		payment:        partner.payment,
	}
	if i%3 != 2 {
		remote := i%3 == 0
		p.isRemote = &remote
	}
	if i%2 == 0 {
		lo, hi := float64(60000+1000*(i%40)), float64(90000+1000*(i%40))
		p.salaryMin, p.salaryMax = &lo, &hi
	}
	if partner.payment == "cpc" {
		cpc := 0.25 + float64(i%8)*0.05
		p.cpc = &cpc
	}
	return p, nil
}

func (s PostingsSeeder) Run(ctx context.Context, db database.DB) error {
	if err := EnsureTableColumns(ctx, db, "job_postings", "id", "company", "title", "locations", "posted_at", "partner_name"); err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t0 := now()

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	for i := 0; i < s.Count; i++ {
		p, err := samplePosting(i, t0)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			ctx,
			`INSERT INTO job_postings
				(id, company, title, locations, employment_type, is_remote, salary_min, salary_max, salary_period, cpc, posted_at, partner_name, payment_type)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO NOTHING`,
			p.id, p.company, p.title, p.locations, p.employmentType, p.isRemote,
			p.salaryMin, p.salaryMax, "yearly", p.cpc, p.postedAt, p.partner, p.payment,
		)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
