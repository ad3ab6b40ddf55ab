package grid

import (
	"testing"

	"curation-grid/internal/domain/job"
	"curation-grid/internal/feed"
)

func ptr[T any](v T) *T { return &v }

func TestNormalizeJob_SourceFieldsAndPrecedence(t *testing.T) {
	raw := feed.RawJob{
		ID:                42,
		Company:           "Acme",
		Title:             "Backend Engineer",
		Location:          []feed.Location{{City: "Austin", State: "TX", Country: "United States"}, {City: "Berlin", Country: "Germany"}},
		EmploymentType:    "full_time",
		IsRemote:          ptr(false),
		SalaryMin:         ptr(90000.0),
		SalaryMax:         ptr(120000.0),
		SalaryPeriod:      "year",
		CPC:               ptr(0.5),
		PostedAt:          1700000000000,
		SinglePartner:     &feed.Partner{PartnerName: "Appcast", PaymentType: "cpc"},
		CustomCompanyName: "Acme Root",
		CustomIsRemote:    "true",
		Curation: &feed.RawCuration{
			ID:                7,
			CommunityIDs:      []feed.CommunityRef{{ID: 9}, {ID: 3}},
			Status:            "published",
			IsPriority:        true,
			ClickCount:        12,
			FormattedTitle:    "Senior Backend Engineer",
			CustomCompanyName: "Acme Inc",
			CustomIsRemote:    "hybrid",
		},
	}

	r := NormalizeJob(raw)

	checks := map[job.Field]string{
		job.FieldTitle:          "Senior Backend Engineer",
		job.FieldCompany:        "Acme Inc",
		job.FieldLocation:       "Austin, TX; Berlin, Germany",
		job.FieldEmploymentType: "full_time",
		job.FieldRemote:         job.RemoteHybrid,
		job.FieldSalary:         "90000-120000 year",
		job.FieldPostedAt:       "2023-11-14T22:13:20Z",
		job.FieldCPC:            "0.50",
		job.FieldFeedSource:     "Appcast (CPC)",
	}
	for f, want := range checks {
		if got := r.Display(f); got != want {
			t.Fatalf("%s: expected %q, got %q", f, want, got)
		}
	}
	if r.Fields[job.FieldRemote] != job.RemoteNo {
		t.Fatalf("expected source remote On-site, got %q", r.Fields[job.FieldRemote])
	}
	if r.Membership == nil || r.Membership.Status != job.StatusPublished || !r.Membership.Priority || r.Membership.Clicks != 12 {
		t.Fatalf("unexpected membership %+v", r.Membership)
	}
	if len(r.Membership.CommunityIDs) != 2 || r.Membership.CommunityIDs[0] != 3 {
		t.Fatalf("expected sorted community ids, got %v", r.Membership.CommunityIDs)
	}
}

func TestNormalizeJob_RootOverrideWithoutCuration(t *testing.T) {
	raw := feed.RawJob{ID: 1, Company: "Acme", CustomCompanyName: "Acme Root", IsRemote: ptr(true)}
	r := NormalizeJob(raw)
	if r.Curated() {
		t.Fatalf("expected no membership")
	}
	if r.Display(job.FieldCompany) != "Acme Root" {
		t.Fatalf("expected root override, got %q", r.Display(job.FieldCompany))
	}
	if r.Display(job.FieldLocation) != job.RemoteYes {
		t.Fatalf("expected Remote location for remote job without a location, got %q", r.Display(job.FieldLocation))
	}
}

func TestNormalizeCurated_DeletedSourceUsesCachedFields(t *testing.T) {
	raw := feed.RawCuratedJob{
		ID:                   55,
		JobPostingID:         501,
		Status:               "",
		CommunityIDs:         []int64{4, 4, 2},
		IsSourceDeleted:      true,
		JobPosting:           &feed.RawJob{ID: 501, Company: "Live Co", Title: "Live Title"},
		CachedJobTitle:       "Frozen Title",
		CachedCompany:        "Frozen Co",
		CachedLocation:       "Denver, CO",
		CachedIsRemote:       ptr(true),
		CachedFeedSource:     "Joveo",
		CachedPaymentType:    "cpa",
		CachedCPA:            ptr(12.0),
		CustomEmploymentType: "contract",
	}

	r := NormalizeCurated(raw)

	if r.ID != 501 {
		t.Fatalf("expected posting id as record id, got %d", r.ID)
	}
	if !r.SourceDeleted {
		t.Fatalf("expected source deleted")
	}
	checks := map[job.Field]string{
		job.FieldTitle:          "Frozen Title",
		job.FieldCompany:        "Frozen Co",
		job.FieldLocation:       "Denver, CO",
		job.FieldRemote:         job.RemoteYes,
		job.FieldFeedSource:     "Joveo (CPA)",
		job.FieldCPA:            "12.00",
		job.FieldEmploymentType: "contract",
	}
	for f, want := range checks {
		if got := r.Display(f); got != want {
			t.Fatalf("%s: expected %q, got %q", f, want, got)
		}
	}
	if r.Membership.Status != job.StatusSuggested {
		t.Fatalf("expected default status suggested, got %q", r.Membership.Status)
	}
	if r.Membership.CurationID != 55 || len(r.Membership.CommunityIDs) != 2 {
		t.Fatalf("unexpected membership %+v", r.Membership)
	}
}

func TestNormalizeCurated_LiveSourcePrefersCachedCost(t *testing.T) {
	raw := feed.RawCuratedJob{
		ID:           1,
		JobPostingID: 2,
		JobPosting:   &feed.RawJob{ID: 2, Company: "Live Co", CPC: ptr(1.0), CustomLocation: feed.FlexLocation{Text: "Root Loc"}},
		CachedCPC:    ptr(0.25),
	}
	r := NormalizeCurated(raw)
	if r.SourceDeleted {
		t.Fatalf("expected live source")
	}
	if r.Display(job.FieldCompany) != "Live Co" {
		t.Fatalf("expected live company, got %q", r.Display(job.FieldCompany))
	}
	if r.Display(job.FieldCPC) != "0.25" {
		t.Fatalf("expected cached cpc, got %q", r.Display(job.FieldCPC))
	}
	if r.Display(job.FieldLocation) != "Root Loc" {
		t.Fatalf("expected posting-level override as fallback, got %q", r.Display(job.FieldLocation))
	}
}

func TestNormalizeRemote(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"TRUE":    job.RemoteYes,
		"on-site": job.RemoteNo,
		"false":   job.RemoteNo,
		"Hybrid":  job.RemoteHybrid,
		"flex":    "flex",
	}
	for in, want := range cases {
		if got := NormalizeRemote(in); got != want {
			t.Fatalf("NormalizeRemote(%q): expected %q, got %q", in, want, got)
		}
	}
}
