// Package feed describes the remote job/curation backend the grid consumes.
// Implementations live under internal/infrastructure.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidInput = errors.New("invalid input")
)

// StatusError carries the HTTP status of a failed backend call.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
}

// IsServerError reports whether err is a 5xx-class backend failure.
func IsServerError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError && se.Status <= 599
	}
	return false
}

type Filters struct {
	FeedSource string `json:"feed_source,omitempty"`
}

type JobPage struct {
	Items   []RawJob `json:"items"`
	HasMore bool     `json:"has_more"`
}

type CuratedPage struct {
	Items   []RawCuratedJob `json:"items"`
	HasMore bool            `json:"has_more"`
}

type PriorityRequest struct {
	JobID          int64
	CommunityIDs   []int64
	IsPriority     bool
	PriorityReason string
	Notes          string
}

// OverridesPatch is keyed by wire field name (custom_company_name, ...).
type OverridesPatch map[string]string

type API interface {
	ListJobs(ctx context.Context, page, pageSize int, search string, filters Filters) (JobPage, error)
	ListCuratedJobs(ctx context.Context, page int, search string, pageSize int) (CuratedPage, error)
	UpdateJobField(ctx context.Context, jobID int64, field, value string) (RawJob, error)
	UpdateJobOverrides(ctx context.Context, jobID int64, patch OverridesPatch) (RawJob, error)
	SetJobPriority(ctx context.Context, req PriorityRequest) error
	RemoveJobFromCuration(ctx context.Context, jobID int64) error
	RemoveJobFromCommunity(ctx context.Context, jobID, communityID int64) error
	ListCommunities(ctx context.Context) ([]Community, error)
}
