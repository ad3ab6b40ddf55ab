package feed

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	// WireFormattedTitle is the only field routed through the dedicated
	// title endpoint.
	WireFormattedTitle = "formatted_title"

	WireCustomCompany        = "custom_company_name"
	WireCustomLocation       = "custom_location"
	WireCustomEmploymentType = "custom_employment_type"
	WireCustomIsRemote       = "custom_is_remote"
)

type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

func (l Location) String() string {
	parts := make([]string, 0, 3)
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.State != "" {
		parts = append(parts, l.State)
	}
	if l.Country != "" && l.Country != "United States" {
		parts = append(parts, l.Country)
	}
	return strings.Join(parts, ", ")
}

// FlexLocation accepts the three shapes the backend uses for custom
// locations: a plain string, a single object or a list of objects.
type FlexLocation struct {
	Text string
}

func (f *FlexLocation) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		f.Text = ""
		return nil
	}
	switch b[0] {
	case '"':
		return json.Unmarshal(b, &f.Text)
	case '{':
		var l Location
		if err := json.Unmarshal(b, &l); err != nil {
			return err
		}
		f.Text = l.String()
		return nil
	case '[':
		var ls []Location
		if err := json.Unmarshal(b, &ls); err != nil {
			return err
		}
		f.Text = ""
		if len(ls) > 0 {
			f.Text = ls[0].String()
		}
		return nil
	}
	return &json.UnmarshalTypeError{Value: string(b[:1]), Type: nil}
}

func (f FlexLocation) MarshalJSON() ([]byte, error) {
	if f.Text == "" {
		return []byte("null"), nil
	}
	return json.Marshal(f.Text)
}

type Partner struct {
	PartnerName string `json:"partner_name,omitempty"`
	PaymentType string `json:"payment_type,omitempty"`
}

type CommunityRef struct {
	ID            int64  `json:"id"`
	CommunityName string `json:"community_name"`
}

// RawCuration is the curation block embedded in a feed job.
type RawCuration struct {
	ID                   int64          `json:"id"`
	CommunityIDs         []CommunityRef `json:"community_ids"`
	IsPriority           bool           `json:"is_priority"`
	PriorityReason       string         `json:"priority_reason,omitempty"`
	Status               string         `json:"status"`
	ClickCount           int            `json:"click_count"`
	FormattedTitle       string         `json:"formatted_title,omitempty"`
	IsSourceDeleted      bool           `json:"is_source_deleted"`
	CustomCompanyName    string         `json:"custom_company_name,omitempty"`
	CustomLocation       FlexLocation   `json:"custom_location"`
	CustomEmploymentType string         `json:"custom_employment_type,omitempty"`
	CustomIsRemote       string         `json:"custom_is_remote,omitempty"`
	CachedLocation       string         `json:"cached_location,omitempty"`
}

type RawJob struct {
	ID                   int64        `json:"id"`
	Company              string       `json:"company"`
	Title                string       `json:"title"`
	AITitle              string       `json:"ai_title,omitempty"`
	Location             []Location   `json:"location"`
	EmploymentType       string       `json:"employment_type,omitempty"`
	IsRemote             *bool        `json:"is_remote,omitempty"`
	SalaryMin            *float64     `json:"salary_min,omitempty"`
	SalaryMax            *float64     `json:"salary_max,omitempty"`
	SalaryPeriod         string       `json:"salary_period,omitempty"`
	CPC                  *float64     `json:"cpc,omitempty"`
	CPA                  *float64     `json:"cpa,omitempty"`
	PostedAt             int64        `json:"posted_at,omitempty"`
	SinglePartner        *Partner     `json:"single_partner,omitempty"`
	CustomCompanyName    string       `json:"custom_company_name,omitempty"`
	CustomLocation       FlexLocation `json:"custom_location"`
	CustomEmploymentType string       `json:"custom_employment_type,omitempty"`
	CustomIsRemote       string       `json:"custom_is_remote,omitempty"`
	Curation             *RawCuration `json:"morningbrew,omitempty"`
}

// RawCuratedJob is a curation record. It references a source posting that
// may have been deleted upstream, so it carries cached copies of the fields
// frozen at curation time.
type RawCuratedJob struct {
	ID                   int64        `json:"id"`
	JobPostingID         int64        `json:"job_posting_id"`
	Company              string       `json:"company,omitempty"`
	Title                string       `json:"title,omitempty"`
	Location             []Location   `json:"location,omitempty"`
	Status               string       `json:"status"`
	ClickCount           int          `json:"click_count"`
	CommunityIDs         []int64      `json:"community_ids"`
	IsPriority           bool         `json:"is_priority"`
	PriorityReason       string       `json:"priority_reason,omitempty"`
	FormattedTitle       string       `json:"formatted_title,omitempty"`
	IsSourceDeleted      bool         `json:"is_source_deleted"`
	JobPosting           *RawJob      `json:"job_posting,omitempty"`
	CustomCompanyName    string       `json:"custom_company_name,omitempty"`
	CustomLocation       FlexLocation `json:"custom_location"`
	CustomEmploymentType string       `json:"custom_employment_type,omitempty"`
	CustomIsRemote       string       `json:"custom_is_remote,omitempty"`
	CachedJobTitle       string       `json:"cached_job_title,omitempty"`
	CachedCompany        string       `json:"cached_company,omitempty"`
	CachedLocation       string       `json:"cached_location,omitempty"`
	CachedEmploymentType string       `json:"cached_employment_type,omitempty"`
	CachedIsRemote       *bool        `json:"cached_is_remote,omitempty"`
	CachedFeedSource     string       `json:"cached_feed_source,omitempty"`
	CachedPaymentType    string       `json:"cached_payment_type,omitempty"`
	CachedPostedAt       int64        `json:"cached_posted_at,omitempty"`
	CachedCPC            *float64     `json:"cached_cpc,omitempty"`
	CachedCPA            *float64     `json:"cached_cpa,omitempty"`
	CreatedAt            int64        `json:"created_at,omitempty"`
}

type Community struct {
	ID            int64  `json:"id"`
	CommunityName string `json:"community_name"`
}
