// Package postgres serves the feed contract straight from the curation
// schema, for deployments that sit next to the feed database instead of
// calling the remote API.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"curation-grid/internal/database"
	"curation-grid/internal/feed"
)

const statusUserAdded = "user_added"

// overrideColumns whitelists the wire keys UpdateJobOverrides may write. The
// keys double as column names on both job_postings and curated_jobs.
var overrideColumns = map[string]bool{
	feed.WireCustomCompany:        true,
	feed.WireCustomLocation:       true,
	feed.WireCustomEmploymentType: true,
	feed.WireCustomIsRemote:       true,
}

type FeedRepository struct {
	db     database.DB
	logger *zap.Logger
}

func NewFeedRepository(db database.DB, logger *zap.Logger) *FeedRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedRepository{db: db, logger: logger.Named("feed_repo")}
}

const postingColumns = `id, company, title, ai_title, locations, employment_type, is_remote,
	salary_min, salary_max, salary_period, cpc, cpa, posted_at, partner_name, payment_type,
	custom_company_name, custom_location, custom_employment_type, custom_is_remote`

func scanPosting(row database.Row) (feed.RawJob, error) {
	var (
		j       feed.RawJob
		locs    []byte
		partner feed.Partner
		custLoc string
	)
	err := row.Scan(
		&j.ID, &j.Company, &j.Title, &j.AITitle, &locs, &j.EmploymentType, &j.IsRemote,
		&j.SalaryMin, &j.SalaryMax, &j.SalaryPeriod, &j.CPC, &j.CPA, &j.PostedAt,
		&partner.PartnerName, &partner.PaymentType,
		&j.CustomCompanyName, &custLoc, &j.CustomEmploymentType, &j.CustomIsRemote,
	)
	if err != nil {
		return feed.RawJob{}, err
	}
	if len(locs) > 0 {
		if err := json.Unmarshal(locs, &j.Location); err != nil {
			return feed.RawJob{}, fmt.Errorf("decode locations of job %d: %w", j.ID, err)
		}
	}
	if partner.PartnerName != "" {
		j.SinglePartner = &partner
	}
	j.CustomLocation = feed.FlexLocation{Text: custLoc}
	return j, nil
}

func searchPattern(search string) string {
	search = strings.Join(strings.Fields(search), " ")
	if search == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

func offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

func (r *FeedRepository) ListJobs(ctx context.Context, page, pageSize int, search string, filters feed.Filters) (feed.JobPage, error) {
	if pageSize < 1 {
		return feed.JobPage{}, feed.ErrInvalidInput
	}
	rows, err := r.db.Query(ctx, `
SELECT `+postingColumns+`
FROM job_postings
WHERE deleted_at IS NULL
	AND ($1 = '' OR title ILIKE $1 OR company ILIKE $1 OR ai_title ILIKE $1)
	AND ($2 = '' OR partner_name = $2)
ORDER BY posted_at DESC, id DESC
LIMIT $3 OFFSET $4`,
		searchPattern(search), strings.TrimSpace(filters.FeedSource), pageSize+1, offset(page, pageSize),
	)
	if err != nil {
		return feed.JobPage{}, err
	}
	defer rows.Close()

	items := make([]feed.RawJob, 0, pageSize)
	for rows.Next() {
		j, err := scanPosting(rows)
		if err != nil {
			return feed.JobPage{}, err
		}
		items = append(items, j)
	}
	if err := rows.Err(); err != nil {
		return feed.JobPage{}, err
	}

	more := len(items) > pageSize
	if more {
		items = items[:pageSize]
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	curations, err := r.curationsByPosting(ctx, r.db, ids)
	if err != nil {
		return feed.JobPage{}, err
	}
	for i := range items {
		if c, ok := curations[items[i].ID]; ok {
			items[i].Curation = c
		}
	}
	return feed.JobPage{Items: items, HasMore: more}, nil
}

func (r *FeedRepository) curationsByPosting(ctx context.Context, q database.Querier, ids []int64) (map[int64]*feed.RawCuration, error) {
	out := make(map[int64]*feed.RawCuration, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
SELECT cj.job_posting_id, cj.id, cj.status, cj.is_priority, cj.priority_reason, cj.click_count,
	cj.formatted_title, cj.custom_company_name, cj.custom_location, cj.custom_employment_type,
	cj.custom_is_remote, cj.cached_location,
	COALESCE(array_agg(c.id ORDER BY c.id) FILTER (WHERE c.id IS NOT NULL), '{}'),
	COALESCE(array_agg(c.community_name ORDER BY c.id) FILTER (WHERE c.id IS NOT NULL), '{}')
FROM curated_jobs cj
LEFT JOIN curated_job_communities cjc ON cjc.curated_job_id = cj.id
LEFT JOIN communities c ON c.id = cjc.community_id
WHERE cj.job_posting_id = ANY($1)
GROUP BY cj.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postingID int64
			c         feed.RawCuration
			custLoc   string
			commIDs   []int64
			commNames []string
		)
		if err := rows.Scan(
			&postingID, &c.ID, &c.Status, &c.IsPriority, &c.PriorityReason, &c.ClickCount,
			&c.FormattedTitle, &c.CustomCompanyName, &custLoc, &c.CustomEmploymentType,
			&c.CustomIsRemote, &c.CachedLocation, &commIDs, &commNames,
		); err != nil {
			return nil, err
		}
		c.CustomLocation = feed.FlexLocation{Text: custLoc}
		c.CommunityIDs = make([]feed.CommunityRef, len(commIDs))
		for i, id := range commIDs {
			c.CommunityIDs[i] = feed.CommunityRef{ID: id}
			if i < len(commNames) {
				c.CommunityIDs[i].CommunityName = commNames[i]
			}
		}
		out[postingID] = &c
	}
	return out, rows.Err()
}

func (r *FeedRepository) postingsByID(ctx context.Context, q database.Querier, ids []int64) (map[int64]feed.RawJob, error) {
	out := make(map[int64]feed.RawJob, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
SELECT `+postingColumns+`
FROM job_postings
WHERE deleted_at IS NULL AND id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		j, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out[j.ID] = j
	}
	return out, rows.Err()
}

func (r *FeedRepository) ListCuratedJobs(ctx context.Context, page int, search string, pageSize int) (feed.CuratedPage, error) {
	if pageSize < 1 {
		return feed.CuratedPage{}, feed.ErrInvalidInput
	}
	rows, err := r.db.Query(ctx, `
SELECT cj.id, cj.job_posting_id, cj.status, cj.click_count, cj.is_priority, cj.priority_reason,
	cj.formatted_title, cj.custom_company_name, cj.custom_location, cj.custom_employment_type,
	cj.custom_is_remote, cj.cached_job_title, cj.cached_company, cj.cached_location,
	cj.cached_employment_type, cj.cached_is_remote, cj.cached_feed_source, cj.cached_payment_type,
	cj.cached_posted_at, cj.cached_cpc, cj.cached_cpa,
	(EXTRACT(EPOCH FROM cj.created_at) * 1000)::BIGINT,
	COALESCE(array_agg(cjc.community_id ORDER BY cjc.community_id) FILTER (WHERE cjc.community_id IS NOT NULL), '{}')
FROM curated_jobs cj
LEFT JOIN curated_job_communities cjc ON cjc.curated_job_id = cj.id
WHERE $1 = ''
	OR cj.formatted_title ILIKE $1
	OR cj.cached_job_title ILIKE $1
	OR cj.cached_company ILIKE $1
	OR EXISTS (
		SELECT 1 FROM job_postings jp
		WHERE jp.id = cj.job_posting_id AND (jp.title ILIKE $1 OR jp.company ILIKE $1)
	)
GROUP BY cj.id
ORDER BY cj.created_at DESC, cj.id DESC
LIMIT $2 OFFSET $3`,
		searchPattern(search), pageSize+1, offset(page, pageSize),
	)
	if err != nil {
		return feed.CuratedPage{}, err
	}
	defer rows.Close()

	items := make([]feed.RawCuratedJob, 0, pageSize)
	for rows.Next() {
		var (
			c       feed.RawCuratedJob
			custLoc string
		)
		if err := rows.Scan(
			&c.ID, &c.JobPostingID, &c.Status, &c.ClickCount, &c.IsPriority, &c.PriorityReason,
			&c.FormattedTitle, &c.CustomCompanyName, &custLoc, &c.CustomEmploymentType,
			&c.CustomIsRemote, &c.CachedJobTitle, &c.CachedCompany, &c.CachedLocation,
			&c.CachedEmploymentType, &c.CachedIsRemote, &c.CachedFeedSource, &c.CachedPaymentType,
			&c.CachedPostedAt, &c.CachedCPC, &c.CachedCPA, &c.CreatedAt, &c.CommunityIDs,
		); err != nil {
			return feed.CuratedPage{}, err
		}
		c.CustomLocation = feed.FlexLocation{Text: custLoc}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return feed.CuratedPage{}, err
	}
	rows.Close()

	more := len(items) > pageSize
	if more {
		items = items[:pageSize]
	}

	ids := make([]int64, len(items))
	for i := range items {
		ids[i] = items[i].JobPostingID
	}
	postings, err := r.postingsByID(ctx, r.db, ids)
	if err != nil {
		return feed.CuratedPage{}, err
	}
	for i := range items {
		if p, ok := postings[items[i].JobPostingID]; ok {
			items[i].JobPosting = &p
			continue
		}
		items[i].IsSourceDeleted = true
	}
	return feed.CuratedPage{Items: items, HasMore: more}, nil
}

// getJob loads one posting with its curation block, the shape write calls
// hand back to the grid.
func (r *FeedRepository) getJob(ctx context.Context, q database.Querier, id int64) (feed.RawJob, error) {
	postings, err := r.postingsByID(ctx, q, []int64{id})
	if err != nil {
		return feed.RawJob{}, err
	}
	j, ok := postings[id]
	if !ok {
		return feed.RawJob{}, feed.ErrNotFound
	}
	curations, err := r.curationsByPosting(ctx, q, []int64{id})
	if err != nil {
		return feed.RawJob{}, err
	}
	j.Curation = curations[id]
	return j, nil
}

// UpdateJobField only accepts formatted_title, which lives on the curation
// record.
func (r *FeedRepository) UpdateJobField(ctx context.Context, jobID int64, field, value string) (feed.RawJob, error) {
	if field != feed.WireFormattedTitle {
		return feed.RawJob{}, fmt.Errorf("%w: field %q", feed.ErrInvalidInput, field)
	}
	n, err := r.db.Exec(ctx, `UPDATE curated_jobs SET formatted_title = $2 WHERE job_posting_id = $1`, jobID, value)
	if err != nil {
		return feed.RawJob{}, err
	}
	if n == 0 {
		return feed.RawJob{}, fmt.Errorf("%w: job %d is not curated", feed.ErrNotFound, jobID)
	}
	return r.getJob(ctx, r.db, jobID)
}

// overrideSet renders "col = $n" assignments for patch in a stable order.
// Arguments start at $2; $1 is the job id.
func overrideSet(patch feed.OverridesPatch) (string, []any, error) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		if !overrideColumns[k] {
			return "", nil, fmt.Errorf("%w: field %q", feed.ErrInvalidInput, k)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return "", nil, fmt.Errorf("%w: empty patch", feed.ErrInvalidInput)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s = $%d", k, i+2)
		args[i] = patch[k]
	}
	return strings.Join(parts, ", "), args, nil
}

// UpdateJobOverrides writes to the curation record when the job is curated
// and to the posting otherwise, matching the display precedence.
func (r *FeedRepository) UpdateJobOverrides(ctx context.Context, jobID int64, patch feed.OverridesPatch) (feed.RawJob, error) {
	set, args, err := overrideSet(patch)
	if err != nil {
		return feed.RawJob{}, err
	}
	args = append([]any{jobID}, args...)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return feed.RawJob{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.Exec(ctx, `UPDATE curated_jobs SET `+set+` WHERE job_posting_id = $1`, args...)
	if err != nil {
		return feed.RawJob{}, err
	}
	if n == 0 {
		n, err = tx.Exec(ctx, `UPDATE job_postings SET `+set+` WHERE id = $1 AND deleted_at IS NULL`, args...)
		if err != nil {
			return feed.RawJob{}, err
		}
		if n == 0 {
			return feed.RawJob{}, feed.ErrNotFound
		}
	}

	j, err := r.getJob(ctx, tx, jobID)
	if err != nil {
		return feed.RawJob{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return feed.RawJob{}, err
	}
	return j, nil
}

// SetJobPriority upserts the curation record, freezing the posting's
// current values into the cached columns on first insert, and adds the
// requested communities.
func (r *FeedRepository) SetJobPriority(ctx context.Context, req feed.PriorityRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	postings, err := r.postingsByID(ctx, tx, []int64{req.JobID})
	if err != nil {
		return err
	}
	p, ok := postings[req.JobID]
	if !ok {
		return feed.ErrNotFound
	}
	var partner feed.Partner
	if p.SinglePartner != nil {
		partner = *p.SinglePartner
	}

	var curationID int64
	err = tx.QueryRow(ctx, `
INSERT INTO curated_jobs (
	job_posting_id, status, is_priority, priority_reason, notes,
	cached_job_title, cached_company, cached_location, cached_employment_type, cached_is_remote,
	cached_feed_source, cached_payment_type, cached_posted_at, cached_cpc, cached_cpa
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (job_posting_id) DO UPDATE SET
	is_priority = EXCLUDED.is_priority,
	priority_reason = EXCLUDED.priority_reason,
	notes = CASE WHEN EXCLUDED.notes = '' THEN curated_jobs.notes ELSE EXCLUDED.notes END
RETURNING id`,
		p.ID, statusUserAdded, req.IsPriority, req.PriorityReason, req.Notes,
		p.Title, p.Company, cachedLocation(p.Location), p.EmploymentType, p.IsRemote,
		partner.PartnerName, partner.PaymentType, p.PostedAt, p.CPC, p.CPA,
	).Scan(&curationID)
	if err != nil {
		return err
	}

	if len(req.CommunityIDs) > 0 {
		_, err = tx.Exec(ctx, `
INSERT INTO curated_job_communities (curated_job_id, community_id)
SELECT $1, unnest($2::BIGINT[])
ON CONFLICT DO NOTHING`, curationID, req.CommunityIDs)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Debug("job curated",
		zap.Int64("job_id", req.JobID),
		zap.Int64s("community_ids", req.CommunityIDs),
		zap.Bool("priority", req.IsPriority),
	)
	return nil
}

func cachedLocation(locs []feed.Location) string {
	parts := make([]string, 0, len(locs))
	for _, l := range locs {
		if s := l.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

func (r *FeedRepository) RemoveJobFromCuration(ctx context.Context, jobID int64) error {
	n, err := r.db.Exec(ctx, `DELETE FROM curated_jobs WHERE job_posting_id = $1`, jobID)
	if err != nil {
		return err
	}
	if n == 0 {
		return feed.ErrNotFound
	}
	return nil
}

func (r *FeedRepository) RemoveJobFromCommunity(ctx context.Context, jobID, communityID int64) error {
	n, err := r.db.Exec(ctx, `
DELETE FROM curated_job_communities cjc
USING curated_jobs cj
WHERE cjc.curated_job_id = cj.id AND cj.job_posting_id = $1 AND cjc.community_id = $2`,
		jobID, communityID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return feed.ErrNotFound
	}
	return nil
}

func (r *FeedRepository) ListCommunities(ctx context.Context) ([]feed.Community, error) {
	rows, err := r.db.Query(ctx, `SELECT id, community_name FROM communities ORDER BY community_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]feed.Community, 0)
	for rows.Next() {
		var c feed.Community
		if err := rows.Scan(&c.ID, &c.CommunityName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ feed.API = (*FeedRepository)(nil)
