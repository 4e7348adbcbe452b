package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/internal/testutil"
	"github.com/prsignal-dev/prsignal/pkg/types"
)

var now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestMedian(t *testing.T) {
	cases := []struct {
		values []float64
		want   float64
	}{
		{[]float64{5}, 5},
		{[]float64{1, 3, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5}, // even: average of the two middle values
		{nil, 0},
	}
	for _, tc := range cases {
		if got := median(tc.values); got != tc.want {
			t.Errorf("median(%v) = %v, want %v", tc.values, got, tc.want)
		}
	}
}

func TestCollectAttributionOrderAndDedup(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("o", "r", "a.go", []types.Commit{
		{Author: "alice", AuthoredAt: now.Add(-1 * time.Hour)},
		{Author: "bob", AuthoredAt: now.Add(-2 * time.Hour)},
		{Author: "alice", AuthoredAt: now.Add(-3 * time.Hour)},
		{Author: "ci[bot]", AuthoredAt: now.Add(-4 * time.Hour)},
	})

	attr := CollectAttribution(context.Background(), src, "o", "r", []string{"a.go"}, now.Add(-90*24*time.Hour))

	if len(attr.PathAuthors) != 1 {
		t.Fatalf("expected 1 path, got %d", len(attr.PathAuthors))
	}
	authors := attr.PathAuthors[0]
	if len(authors) != 2 || authors[0] != "alice" || authors[1] != "bob" {
		t.Errorf("expected [alice bob], got %v", authors)
	}
	if attr.FilesWithAuthors() != 1 {
		t.Errorf("expected 1 attributed file, got %d", attr.FilesWithAuthors())
	}
	if len(attr.CommitHours["alice"]) != 2 {
		t.Errorf("expected 2 commit hours for alice, got %v", attr.CommitHours["alice"])
	}
}

func TestCollectAttributionFailureIsIsolated(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("o", "r", "ok.go", []types.Commit{
		{Author: "carol", AuthoredAt: now.Add(-1 * time.Hour)},
	})
	src.FailWith("commits:o/r/broken.go", errors.New("boom"))

	attr := CollectAttribution(context.Background(), src, "o", "r",
		[]string{"broken.go", "ok.go"}, now.Add(-90*24*time.Hour))

	if len(attr.PathAuthors[0]) != 0 {
		t.Errorf("failed path should be unattributed, got %v", attr.PathAuthors[0])
	}
	if len(attr.PathAuthors[1]) != 1 || attr.PathAuthors[1][0] != "carol" {
		t.Errorf("surviving path lost attribution: %v", attr.PathAuthors[1])
	}
}

func TestCollectLatencyMedianAndSubmitted(t *testing.T) {
	src := testutil.NewMockSource()
	c1 := now.Add(-30 * 24 * time.Hour)
	c2 := now.Add(-20 * 24 * time.Hour)
	src.SetPullRequests("o", "r", "closed", []types.PullRequest{
		{Number: 1, State: "closed", CreatedAt: c1},
		{Number: 2, State: "closed", CreatedAt: c2},
	})
	src.SetReviews("o", "r", 1, []types.Review{
		{Author: "Dana", SubmittedAt: c1.Add(2 * time.Hour)},
		{Author: "dana", SubmittedAt: c1.Add(40 * time.Hour)}, // later submission ignored
	})
	src.SetReviews("o", "r", 2, []types.Review{
		{Author: "dana", SubmittedAt: c2.Add(6 * time.Hour)},
	})

	stats := CollectLatency(context.Background(), src, "o", "r", now.Add(-90*24*time.Hour), 20)

	if got := stats.MedianHours["dana"]; got != 4 { // median of {2, 6}
		t.Errorf("expected median 4h, got %v", got)
	}
	if stats.Submitted["dana"] != 2 {
		t.Errorf("expected 2 submitted PRs, got %d", stats.Submitted["dana"])
	}
	if stats.Display["dana"] != "Dana" {
		t.Errorf("expected first-seen casing Dana, got %q", stats.Display["dana"])
	}
}

func TestCollectLatencySkipsOldPRs(t *testing.T) {
	src := testutil.NewMockSource()
	old := now.Add(-200 * 24 * time.Hour)
	src.SetPullRequests("o", "r", "closed", []types.PullRequest{
		{Number: 1, State: "closed", CreatedAt: old},
	})
	src.SetReviews("o", "r", 1, []types.Review{{Author: "dana", SubmittedAt: old.Add(time.Hour)}})

	stats := CollectLatency(context.Background(), src, "o", "r", now.Add(-90*24*time.Hour), 20)

	if len(stats.MedianHours) != 0 {
		t.Errorf("PRs outside the lookback window must be skipped, got %v", stats.MedianHours)
	}
}

func TestCollectLatencyReviewFailureSkipsPR(t *testing.T) {
	src := testutil.NewMockSource()
	c1 := now.Add(-10 * 24 * time.Hour)
	src.SetPullRequests("o", "r", "closed", []types.PullRequest{
		{Number: 1, State: "closed", CreatedAt: c1},
		{Number: 2, State: "closed", CreatedAt: c1},
	})
	src.FailWith("reviews:o/r#1", errors.New("boom"))
	src.SetReviews("o", "r", 2, []types.Review{{Author: "dana", SubmittedAt: c1.Add(3 * time.Hour)}})

	stats := CollectLatency(context.Background(), src, "o", "r", now.Add(-90*24*time.Hour), 20)

	if got := stats.MedianHours["dana"]; got != 3 {
		t.Errorf("expected 3h from the surviving PR, got %v", got)
	}
}

func TestCollectLoad(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetPullRequests("o", "r", "open", []types.PullRequest{
		{Number: 1, State: "open", RequestedReviewers: []string{"Alice", "bob"}},
		{Number: 2, State: "open", RequestedReviewers: []string{"alice", "ci[bot]"}},
	})

	load := CollectLoad(context.Background(), src, "o", "r")

	if load["alice"] != 2 {
		t.Errorf("expected alice load 2, got %d", load["alice"])
	}
	if load["bob"] != 1 {
		t.Errorf("expected bob load 1, got %d", load["bob"])
	}
	if _, ok := load["ci[bot]"]; ok {
		t.Error("bots must not accrue load")
	}
}

func TestFlakySet(t *testing.T) {
	requested := map[string]int{"alice": 4, "bob": 2, "carol": 3}
	submitted := map[string]int{"alice": 0, "carol": 3}

	flaky := FlakySet(requested, submitted)

	if !flaky["alice"] {
		t.Error("alice (4 requests, 0 submitted) should be flaky")
	}
	if flaky["bob"] {
		t.Error("bob has fewer than 3 requests and must not be flagged")
	}
	if flaky["carol"] {
		t.Error("carol follows through and must not be flagged")
	}
}

func TestCollectLatencyClampsSample(t *testing.T) {
	src := testutil.NewMockSource()
	prs := make([]types.PullRequest, 60)
	for i := range prs {
		prs[i] = types.PullRequest{Number: i + 1, State: "closed", CreatedAt: now.Add(-time.Duration(i+1) * time.Hour)}
	}
	src.SetPullRequests("o", "r", "closed", prs)

	CollectLatency(context.Background(), src, "o", "r", now.Add(-90*24*time.Hour), 500)

	// 1 listing call + at most 50 review calls.
	calls := src.Calls()
	if len(calls) > 51 {
		t.Errorf("sample not clamped to 50 PRs: %d calls", len(calls))
	}
}
