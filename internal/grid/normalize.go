package grid

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
)

// NormalizeJob converts an all-jobs feed item into a Record. Curator
// overrides on the embedded curation block win over those on the posting.
func NormalizeJob(raw feed.RawJob) job.Record {
	r := job.New(job.ID(raw.ID))
	sourceFields(&r, raw)

	cur := raw.Curation
	var curCustom custom
	if cur != nil {
		curCustom = custom{
			company:    cur.CustomCompanyName,
			location:   cur.CustomLocation.Text,
			employment: cur.CustomEmploymentType,
			remote:     cur.CustomIsRemote,
		}
		setOverride(&r, job.FieldTitle, cur.FormattedTitle)
		r.SourceDeleted = cur.IsSourceDeleted

		ids := make([]int64, 0, len(cur.CommunityIDs))
		for _, ref := range cur.CommunityIDs {
			ids = append(ids, ref.ID)
		}
		r.Membership = membership(cur.ID, ids, cur.Status, cur.IsPriority, cur.PriorityReason, cur.ClickCount)
	}
	applyCustom(&r, curCustom, rootCustom(raw))
	return r
}

// NormalizeCurated converts a curation record into a Record keyed by the
// source posting id. When the source posting is gone the values cached at
// curation time are shown instead.
func NormalizeCurated(raw feed.RawCuratedJob) job.Record {
	id := raw.JobPostingID
	if id == 0 {
		id = raw.ID
	}
	r := job.New(job.ID(id))

	src := raw.JobPosting
	r.SourceDeleted = raw.IsSourceDeleted || src == nil

	if !r.SourceDeleted {
		sourceFields(&r, *src)
	} else {
		setField(&r, job.FieldTitle, firstNonEmpty(raw.CachedJobTitle, raw.Title))
		setField(&r, job.FieldCompany, firstNonEmpty(raw.CachedCompany, raw.Company))
		setField(&r, job.FieldLocation, firstNonEmpty(raw.CachedLocation, formatLocations(raw.Location)))
		setField(&r, job.FieldEmploymentType, raw.CachedEmploymentType)
		setField(&r, job.FieldRemote, formatRemoteBool(raw.CachedIsRemote))
		setField(&r, job.FieldPostedAt, formatEpochMillis(raw.CachedPostedAt))
		setField(&r, job.FieldFeedSource, formatFeedSource(raw.CachedFeedSource, raw.CachedPaymentType))
	}
	// cost metrics are frozen at curation time
	if raw.CachedCPC != nil {
		setField(&r, job.FieldCPC, formatMoney(raw.CachedCPC))
	}
	if raw.CachedCPA != nil {
		setField(&r, job.FieldCPA, formatMoney(raw.CachedCPA))
	}

	setOverride(&r, job.FieldTitle, raw.FormattedTitle)
	var srcCustom custom
	if src != nil {
		srcCustom = rootCustom(*src)
	}
	applyCustom(&r, custom{
		company:    raw.CustomCompanyName,
		location:   raw.CustomLocation.Text,
		employment: raw.CustomEmploymentType,
		remote:     raw.CustomIsRemote,
	}, srcCustom)

	r.Membership = membership(raw.ID, raw.CommunityIDs, raw.Status, raw.IsPriority, raw.PriorityReason, raw.ClickCount)
	return r
}

type custom struct {
	company    string
	location   string
	employment string
	remote     string
}

func rootCustom(raw feed.RawJob) custom {
	return custom{
		company:    raw.CustomCompanyName,
		location:   raw.CustomLocation.Text,
		employment: raw.CustomEmploymentType,
		remote:     raw.CustomIsRemote,
	}
}

// applyCustom sets overrides from the curation-level values, falling back to
// the posting-level ones.
func applyCustom(r *job.Record, primary, fallback custom) {
	setOverride(r, job.FieldCompany, firstNonEmpty(primary.company, fallback.company))
	setOverride(r, job.FieldLocation, firstNonEmpty(primary.location, fallback.location))
	setOverride(r, job.FieldEmploymentType, firstNonEmpty(primary.employment, fallback.employment))
	setOverride(r, job.FieldRemote, NormalizeRemote(firstNonEmpty(primary.remote, fallback.remote)))
}

func sourceFields(r *job.Record, raw feed.RawJob) {
	setField(r, job.FieldTitle, firstNonEmpty(raw.Title, raw.AITitle))
	setField(r, job.FieldCompany, raw.Company)
	loc := formatLocations(raw.Location)
	if loc == "" && raw.IsRemote != nil && *raw.IsRemote {
		loc = job.RemoteYes
	}
	setField(r, job.FieldLocation, loc)
	setField(r, job.FieldEmploymentType, raw.EmploymentType)
	setField(r, job.FieldRemote, formatRemoteBool(raw.IsRemote))
	setField(r, job.FieldSalary, formatSalary(raw.SalaryMin, raw.SalaryMax, raw.SalaryPeriod))
	setField(r, job.FieldPostedAt, formatEpochMillis(raw.PostedAt))
	setField(r, job.FieldCPC, formatMoney(raw.CPC))
	setField(r, job.FieldCPA, formatMoney(raw.CPA))
	if raw.SinglePartner != nil {
		setField(r, job.FieldFeedSource, formatFeedSource(raw.SinglePartner.PartnerName, raw.SinglePartner.PaymentType))
	}
}

func membership(curationID int64, communityIDs []int64, status string, priority bool, reason string, clicks int) *job.Membership {
	st, err := job.ParseStatus(status)
	if err != nil {
		st = job.StatusSuggested
	}
	m := &job.Membership{
		CurationID:     curationID,
		Status:         st,
		Priority:       priority,
		PriorityReason: reason,
		Clicks:         clicks,
	}
	m.AddCommunities(communityIDs...)
	return m
}

func setField(r *job.Record, f job.Field, v string) {
	if v != "" {
		r.Fields[f] = v
	}
}

func setOverride(r *job.Record, f job.Field, v string) {
	if v != "" {
		r.Overrides[f] = v
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func formatLocations(locs []feed.Location) string {
	parts := make([]string, 0, len(locs))
	for _, l := range locs {
		s := l.String()
		if s != "" && !slices.Contains(parts, s) {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

func formatRemoteBool(v *bool) string {
	if v == nil {
		return ""
	}
	if *v {
		return job.RemoteYes
	}
	return job.RemoteNo
}

// NormalizeRemote maps the loose values curators and the backend use for the
// remote override onto the three display values. Unknown values pass through.
func NormalizeRemote(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return ""
	case "true", "yes", "remote":
		return job.RemoteYes
	case "false", "no", "on-site", "onsite", "on site":
		return job.RemoteNo
	case "hybrid":
		return job.RemoteHybrid
	}
	return strings.TrimSpace(v)
}

func formatSalary(minV, maxV *float64, period string) string {
	var s string
	switch {
	case minV != nil && maxV != nil && *minV != *maxV:
		s = formatNumber(*minV) + "-" + formatNumber(*maxV)
	case minV != nil:
		s = formatNumber(*minV)
	case maxV != nil:
		s = formatNumber(*maxV)
	default:
		return ""
	}
	if period = strings.TrimSpace(period); period != "" {
		s += " " + period
	}
	return s
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatMoney(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatEpochMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatFeedSource(partner, payment string) string {
	partner = strings.TrimSpace(partner)
	payment = strings.ToUpper(strings.TrimSpace(payment))
	switch {
	case partner == "":
		return ""
	case payment == "":
		return partner
	}
	return partner + " (" + payment + ")"
}
