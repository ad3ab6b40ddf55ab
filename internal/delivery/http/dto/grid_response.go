package dto

import (
	"curation-grid/internal/domain/job"
	"curation-grid/internal/grid"
)

var displayFields = []job.Field{
	job.FieldTitle,
	job.FieldCompany,
	job.FieldLocation,
	job.FieldEmploymentType,
	job.FieldRemote,
	job.FieldSalary,
	job.FieldPostedAt,
	job.FieldCPC,
	job.FieldCPA,
	job.FieldFeedSource,
}

// JobRow is a record flattened for display: Values holds what the cell
// shows, Overrides only the curator-set values.
type JobRow struct {
	ID            int64             `json:"id"`
	Values        map[string]string `json:"values"`
	Overrides     map[string]string `json:"overrides,omitempty"`
	Curated       bool              `json:"curated"`
	CommunityIDs  []int64           `json:"community_ids,omitempty"`
	Status        string            `json:"status,omitempty"`
	IsPriority    bool              `json:"is_priority"`
	ClickCount    int               `json:"click_count"`
	SourceDeleted bool              `json:"source_deleted"`
}

func NewJobRow(r job.Record) JobRow {
	out := JobRow{
		ID:            int64(r.ID),
		Values:        make(map[string]string, len(displayFields)),
		SourceDeleted: r.SourceDeleted,
	}
	for _, f := range displayFields {
		if v := r.Display(f); v != "" {
			out.Values[string(f)] = v
		}
	}
	for f, v := range r.Overrides {
		if v == "" {
			continue
		}
		if out.Overrides == nil {
			out.Overrides = map[string]string{}
		}
		out.Overrides[string(f)] = v
	}
	if m := r.Membership; m != nil {
		out.Curated = true
		out.CommunityIDs = append([]int64(nil), m.CommunityIDs...)
		out.Status = string(m.Status)
		out.IsPriority = m.Priority
		out.ClickCount = m.Clicks
	}
	return out
}

type RowResponse struct {
	Index    int    `json:"index"`
	Job      JobRow `json:"job"`
	Selected bool   `json:"selected"`
	Editing  bool   `json:"editing"`
	Busy     bool   `json:"busy"`
}

type RenderResponse struct {
	Start    int           `json:"start"`
	End      int           `json:"end"`
	Leading  float64       `json:"leading_px"`
	Trailing float64       `json:"trailing_px"`
	Total    int           `json:"total"`
	Rows     []RowResponse `json:"rows"`
}

func NewRenderResponse(l grid.RenderList) RenderResponse {
	out := RenderResponse{
		Start:    l.Start,
		End:      l.End,
		Leading:  l.Leading,
		Trailing: l.Trailing,
		Total:    l.Total,
		Rows:     make([]RowResponse, 0, len(l.Rows)),
	}
	for _, rv := range l.Rows {
		out.Rows = append(out.Rows, RowResponse{
			Index:    rv.Index,
			Job:      NewJobRow(rv.Record),
			Selected: rv.Selected,
			Editing:  rv.Editing,
			Busy:     rv.Busy,
		})
	}
	return out
}
