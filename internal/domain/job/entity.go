package job

import (
	"fmt"
	"slices"
)

type ID int64

// Field names a display column of the grid.
type Field string

const (
	FieldTitle          Field = "title"
	FieldCompany        Field = "company"
	FieldLocation       Field = "location"
	FieldEmploymentType Field = "employment_type"
	FieldRemote         Field = "is_remote"
	FieldSalary         Field = "salary"
	FieldPostedAt       Field = "posted_at"
	FieldCPC            Field = "cpc"
	FieldCPA            Field = "cpa"
	FieldFeedSource     Field = "feed_source"
)

var editableFields = map[Field]bool{
	FieldTitle:          true,
	FieldCompany:        true,
	FieldLocation:       true,
	FieldEmploymentType: true,
	FieldRemote:         true,
}

// IsEditable reports whether curators may override the field inline.
func IsEditable(f Field) bool { return editableFields[f] }

// RequiresCuration reports whether the override lives on the curation record,
// so the job must be curated before the field can be edited.
func RequiresCuration(f Field) bool {
	return f == FieldEmploymentType || f == FieldRemote
}

func ParseField(s string) (Field, error) {
	f := Field(s)
	switch f {
	case FieldTitle, FieldCompany, FieldLocation, FieldEmploymentType, FieldRemote,
		FieldSalary, FieldPostedAt, FieldCPC, FieldCPA, FieldFeedSource:
		return f, nil
	}
	return "", fmt.Errorf("unknown field %q", s)
}

// Status values mirror the curation status enum of the backend.
type Status string

const (
	StatusSuggested Status = "suggested"
	StatusUserAdded Status = "user_added"
	StatusApproved  Status = "approved"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
	StatusArchived  Status = "archived"
)

// ParseStatus converts a raw string to a Status. Empty input means a freshly
// suggested job.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusSuggested, StatusUserAdded, StatusApproved, StatusPublished, StatusRejected, StatusArchived:
		return st, nil
	case "":
		return StatusSuggested, nil
	}
	return "", fmt.Errorf("unknown curation status %q", s)
}

// Membership is present only on curated jobs.
type Membership struct {
	CurationID     int64   `json:"curation_id"`
	CommunityIDs   []int64 `json:"community_ids"`
	Status         Status  `json:"status"`
	Priority       bool    `json:"is_priority"`
	PriorityReason string  `json:"priority_reason,omitempty"`
	Clicks         int     `json:"click_count"`
}

func (m *Membership) HasCommunity(id int64) bool {
	if m == nil {
		return false
	}
	return slices.Contains(m.CommunityIDs, id)
}

// AddCommunities merges ids into the set, keeping it sorted and unique.
func (m *Membership) AddCommunities(ids ...int64) {
	for _, id := range ids {
		if !m.HasCommunity(id) {
			m.CommunityIDs = append(m.CommunityIDs, id)
		}
	}
	slices.Sort(m.CommunityIDs)
}

func (m *Membership) RemoveCommunity(id int64) {
	m.CommunityIDs = slices.DeleteFunc(m.CommunityIDs, func(v int64) bool { return v == id })
}

func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	out := *m
	out.CommunityIDs = slices.Clone(m.CommunityIDs)
	return &out
}

// Record is a job posting as the grid displays it.
type Record struct {
	ID            ID               `json:"id"`
	Fields        map[Field]string `json:"fields"`
	Overrides     map[Field]string `json:"overrides"`
	Membership    *Membership      `json:"membership,omitempty"`
	SourceDeleted bool             `json:"source_deleted"`
}

func New(id ID) Record {
	return Record{ID: id, Fields: map[Field]string{}, Overrides: map[Field]string{}}
}

func (r Record) Curated() bool { return r.Membership != nil }

// Display returns the value shown for f: a curator override wins over the
// source value.
func (r Record) Display(f Field) string {
	if v, ok := r.Overrides[f]; ok && v != "" {
		return v
	}
	return r.Fields[f]
}

func (r Record) Clone() Record {
	out := r
	out.Fields = cloneMap(r.Fields)
	out.Overrides = cloneMap(r.Overrides)
	out.Membership = r.Membership.Clone()
	return out
}

func cloneMap(in map[Field]string) map[Field]string {
	out := make(map[Field]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CopyText renders the one-line summary curators paste into newsletters.
func (r Record) CopyText() string {
	loc := r.Display(FieldLocation)
	if loc == "" {
		loc = "Remote"
	}
	remote := " (On-site)"
	if r.Display(FieldRemote) == RemoteYes {
		remote = " (Remote)"
	}
	return fmt.Sprintf("%s at %s - %s%s", r.Display(FieldTitle), r.Display(FieldCompany), loc, remote)
}

const (
	RemoteYes    = "Remote"
	RemoteNo     = "On-site"
	RemoteHybrid = "Hybrid"
)

// Community is a newsletter brand curated jobs are attached to.
type Community struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
