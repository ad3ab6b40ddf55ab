// Package feedapi implements feed.API against the remote job feed HTTP API.
package feedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"curation-grid/internal/feed"
)

const (
	pathListJobs               = "/api:microapp/ashley/list-jobs"
	pathListCurated            = "/api:microapp/morningbrew/list-all-brands"
	pathUpdateJob              = "/api:microapp/ashley/update-job"
	pathUpdateDetails          = "/api:microapp/brew/update-details"
	pathAddJobPriority         = "/api:microapp/ashley/add-job-priority"
	pathRemoveJob              = "/api:microapp/ashley/remove-job"
	pathRemoveJobFromCommunity = "/api:microapp/ashley/remove-job-from-community"
	pathCommunities            = "/api:microapp/communities"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("feed base url is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("feedapi"),
	}, nil
}

type listJobsRequest struct {
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Search  string       `json:"search"`
	Filters feed.Filters `json:"filters"`
}

type listCuratedRequest struct {
	Page    int    `json:"page"`
	Status  string `json:"status"`
	PerPage int    `json:"per_page"`
	Search  string `json:"search,omitempty"`
}

// pageEnvelope is the paging wrapper the backend puts around list results.
type pageEnvelope[T any] struct {
	Items     []T  `json:"items"`
	CurPage   int  `json:"curPage"`
	NextPage  *int `json:"nextPage"`
	PageTotal int  `json:"pageTotal"`
}

func (p pageEnvelope[T]) hasMore() bool {
	if p.NextPage != nil {
		return true
	}
	return p.PageTotal > 0 && p.CurPage > 0 && p.CurPage < p.PageTotal
}

// decodePage accepts either the paging envelope or a bare array.
func decodePage[T any](b []byte) ([]T, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return nil, false, err
		}
		return items, false, nil
	}
	var env pageEnvelope[T]
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, false, err
	}
	return env.Items, env.hasMore(), nil
}

func (c *Client) ListJobs(ctx context.Context, page, pageSize int, search string, filters feed.Filters) (feed.JobPage, error) {
	b, err := c.do(ctx, http.MethodPost, pathListJobs, listJobsRequest{
		Page:    page,
		PerPage: pageSize,
		Search:  strings.TrimSpace(search),
		Filters: filters,
	})
	if err != nil {
		return feed.JobPage{}, err
	}
	items, more, err := decodePage[feed.RawJob](b)
	if err != nil {
		return feed.JobPage{}, fmt.Errorf("decode jobs page: %w", err)
	}
	return feed.JobPage{Items: items, HasMore: more}, nil
}

func (c *Client) ListCuratedJobs(ctx context.Context, page int, search string, pageSize int) (feed.CuratedPage, error) {
	b, err := c.do(ctx, http.MethodPost, pathListCurated, listCuratedRequest{
		Page:    page,
		PerPage: pageSize,
		Search:  strings.TrimSpace(search),
	})
	if err != nil {
		return feed.CuratedPage{}, err
	}
	items, more, err := decodePage[feed.RawCuratedJob](b)
	if err != nil {
		return feed.CuratedPage{}, fmt.Errorf("decode curated page: %w", err)
	}
	return feed.CuratedPage{Items: items, HasMore: more}, nil
}

func (c *Client) UpdateJobField(ctx context.Context, jobID int64, field, value string) (feed.RawJob, error) {
	body := map[string]any{"job_id": jobID, field: value}
	b, err := c.do(ctx, http.MethodPost, pathUpdateDetails, body)
	if err != nil {
		return feed.RawJob{}, err
	}
	return decodeJob(b)
}

func (c *Client) UpdateJobOverrides(ctx context.Context, jobID int64, patch feed.OverridesPatch) (feed.RawJob, error) {
	body := map[string]any{"job_posting_id": jobID}
	for k, v := range patch {
		if k == feed.WireCustomLocation {
			body[k] = locationPayload(v)
			continue
		}
		body[k] = v
	}
	b, err := c.do(ctx, http.MethodPost, pathUpdateJob, body)
	if err != nil {
		return feed.RawJob{}, err
	}
	return decodeJob(b)
}

// locationPayload turns "City, State, Country" into the structured list the
// backend stores. An empty string clears the override.
func locationPayload(s string) []feed.Location {
	s = strings.TrimSpace(s)
	if s == "" {
		return []feed.Location{}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var l feed.Location
	switch len(parts) {
	case 1:
		l.City = parts[0]
	case 2:
		l.City, l.State = parts[0], parts[1]
	default:
		l.City, l.State, l.Country = parts[0], parts[1], strings.Join(parts[2:], ", ")
	}
	return []feed.Location{l}
}

func decodeJob(b []byte) (feed.RawJob, error) {
	var out feed.RawJob
	if len(bytes.TrimSpace(b)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		// Some endpoints answer with a status object instead of the job.
		return feed.RawJob{}, nil
	}
	return out, nil
}

type priorityRequest struct {
	JobPostingID   int64   `json:"job_posting_id"`
	CommunityIDs   []int64 `json:"community_ids"`
	Notes          string  `json:"notes,omitempty"`
	IsPriority     bool    `json:"is_priority"`
	PriorityReason string  `json:"priority_reason,omitempty"`
}

func (c *Client) SetJobPriority(ctx context.Context, req feed.PriorityRequest) error {
	ids := req.CommunityIDs
	if ids == nil {
		ids = []int64{}
	}
	_, err := c.do(ctx, http.MethodPost, pathAddJobPriority, priorityRequest{
		JobPostingID:   req.JobID,
		CommunityIDs:   ids,
		Notes:          req.Notes,
		IsPriority:     req.IsPriority,
		PriorityReason: req.PriorityReason,
	})
	return err
}

func (c *Client) RemoveJobFromCuration(ctx context.Context, jobID int64) error {
	_, err := c.do(ctx, http.MethodPost, pathRemoveJob, map[string]int64{"job_posting_id": jobID})
	return err
}

func (c *Client) RemoveJobFromCommunity(ctx context.Context, jobID, communityID int64) error {
	_, err := c.do(ctx, http.MethodPost, pathRemoveJobFromCommunity, map[string]int64{
		"job_posting_id": jobID,
		"community_id":   communityID,
	})
	return err
}

func (c *Client) ListCommunities(ctx context.Context) ([]feed.Community, error) {
	b, err := c.do(ctx, http.MethodGet, pathCommunities, nil)
	if err != nil {
		return nil, err
	}
	var out []feed.Community
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode communities: %w", err)
	}
	return out, nil
}

// do sends one request and returns the body of a 2xx response. Other
// statuses come back as *feed.StatusError.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	endpoint := c.baseURL + path

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("feed request failed", zap.String("endpoint", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("feed request rejected",
			zap.String("endpoint", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", strings.TrimSpace(string(rb))),
		)
		return nil, &feed.StatusError{Op: strings.TrimPrefix(path, "/api:microapp/"), Status: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("feed request",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return b, nil
}

var _ feed.API = (*Client)(nil)
