package dto

type SearchRequest struct {
	Text string `json:"text"`
}

type PageRequest struct {
	Page int `json:"page"`
}

type PageSizeRequest struct {
	PageSize int `json:"page_size"`
}

type ViewModeRequest struct {
	Mode string `json:"mode"`
}

type FeedSourceRequest struct {
	FeedSource string `json:"feed_source"`
}

type StartEditRequest struct {
	JobID   int64  `json:"job_id"`
	Field   string `json:"field"`
	Current string `json:"current"`
}

type DraftRequest struct {
	Value string `json:"value"`
}

type CurateRequest struct {
	CommunityIDs []int64 `json:"community_ids"`
	Notes        string  `json:"notes"`
}

type MeasureRowRequest struct {
	Index  int     `json:"index"`
	Height float64 `json:"height"`
}
