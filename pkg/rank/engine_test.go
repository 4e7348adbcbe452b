package rank

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/internal/testutil"
	"github.com/prsignal-dev/prsignal/pkg/types"
)

var frozenNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func commitAt(login string, hoursAgo int) types.Commit {
	return types.Commit{Author: login, AuthoredAt: frozenNow.Add(-time.Duration(hoursAgo) * time.Hour)}
}

func baseInput(files ...string) Input {
	changed := make([]types.ChangedFile, 0, len(files))
	for _, f := range files {
		changed = append(changed, types.ChangedFile{Path: f, Additions: 10, Deletions: 2})
	}
	return Input{
		Owner:        "acme",
		Repo:         "widgets",
		Number:       42,
		Author:       "zoe",
		ChangedFiles: changed,
		Now:          frozenNow,
	}
}

// quietOptions disables the sampling signals so tests can exercise one
// signal at a time.
func quietOptions() Options {
	opts := DefaultOptions()
	opts.UseLatency = false
	opts.PenalizeLoad = false
	return opts
}

func TestRankRequiresRunContext(t *testing.T) {
	e := New(testutil.NewMockSource(), DefaultOptions())

	if _, err := e.Rank(context.Background(), Input{Owner: "acme", Repo: "widgets"}); err == nil {
		t.Error("expected error for missing PR number")
	}
	if _, err := e.Rank(context.Background(), Input{Number: 1}); err == nil {
		t.Error("expected error for missing owner/repo")
	}
}

func TestRankCodeownersAndCommits(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetFileContent("acme", "widgets", "CODEOWNERS", "src/api/* @alice\n")
	src.SetCommits("acme", "widgets", "src/api/users.ts", []types.Commit{
		commitAt("alice", 1),
		commitAt("alice", 2),
		commitAt("bob", 3),
		commitAt("alice", 4),
	})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("src/api/users.ts", "src/api/billing.ts"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(res.Candidates), res.Candidates)
	}
	alice, bob := res.Candidates[0], res.Candidates[1]
	if alice.Login != "alice" || bob.Login != "bob" {
		t.Fatalf("expected alice then bob, got %s then %s", alice.Login, bob.Login)
	}
	// alice: first author (3) + CODEOWNERS on both files (4+4) = 11.
	if alice.Score != 11 {
		t.Errorf("expected alice score 11, got %d", alice.Score)
	}
	// bob: second author (2), no ownership.
	if bob.Score != 2 {
		t.Errorf("expected bob score 2, got %d", bob.Score)
	}
	if res.Confidence == types.ConfidenceLow {
		t.Errorf("expected at least Medium confidence, got %s", res.Confidence)
	}
	if res.NoStrongCandidates {
		t.Error("expected NoStrongCandidates=false")
	}
}

func TestRankAuthorNeverRanked(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("Zoe", 1), // PR author, different casing
		commitAt("bob", 2),
	})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range res.Candidates {
		if c.Login == "Zoe" || c.Login == "zoe" {
			t.Errorf("PR author must never be ranked, got %+v", res.Candidates)
		}
	}
}

func TestRankBotsNeverRanked(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetBot("renovate")
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("renovate", 1),
		commitAt("deploy[bot]", 2),
		commitAt("carol", 3),
	})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 1 || res.Candidates[0].Login != "carol" {
		t.Errorf("expected only carol, got %+v", res.Candidates)
	}
	// carol is the first human author and gets first-author credit.
	if res.Candidates[0].Score != 3 {
		t.Errorf("expected carol score 3, got %d", res.Candidates[0].Score)
	}
}

func TestRankRequiredReviewerFloor(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{commitAt("bob", 1)})

	opts := quietOptions()
	opts.RequiredReviewers = []string{"dana", "bob"}

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	byLogin := make(map[string]types.RankedCandidate)
	for _, c := range res.Candidates {
		byLogin[c.Login] = c
	}

	dana, ok := byLogin["dana"]
	if !ok {
		t.Fatalf("required reviewer dana missing from ranking: %+v", res.Candidates)
	}
	if dana.Score != 10 {
		t.Errorf("expected floor score 10 for dana, got %d", dana.Score)
	}
	// bob had organic signal (3) and gets +5 instead of the floor.
	if bob := byLogin["bob"]; bob.Score != 8 {
		t.Errorf("expected bob score 8, got %d", bob.Score)
	}
}

func TestRankExclusionRemovesTopCandidate(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetFileContent("acme", "widgets", "CODEOWNERS", "* @alice\n")
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("alice", 1),
		commitAt("bob", 2),
	})

	opts := quietOptions()
	opts.ExcludeReviewers = []string{"Alice"} // case-insensitive

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range res.Candidates {
		if c.Login == "alice" {
			t.Errorf("excluded login must never appear, got %+v", res.Candidates)
		}
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Login != "bob" {
		t.Errorf("expected only bob, got %+v", res.Candidates)
	}
}

func TestRankRepoConfigExclusionsMerge(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetFileContent("acme", "widgets", RepoConfigPath, "exclude_reviewers:\n  - bob\n")
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("alice", 1),
		commitAt("bob", 2),
	})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 1 || res.Candidates[0].Login != "alice" {
		t.Errorf("repo-level exclusion not applied, got %+v", res.Candidates)
	}
}

func TestRankUnparsableRepoConfigDegradesToDefaults(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetFileContent("acme", "widgets", RepoConfigPath, "::: not yaml {{{")
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{commitAt("alice", 1)})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("expected ranking to proceed with defaults, got %+v", res.Candidates)
	}
}

func TestRankLatencyBonus(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{commitAt("alice", 1)})

	created := frozenNow.Add(-30 * 24 * time.Hour)
	src.SetPullRequests("acme", "widgets", "closed", []types.PullRequest{
		{Number: 7, State: "closed", CreatedAt: created, Author: "someone"},
	})
	src.SetReviews("acme", "widgets", 7, []types.Review{
		{Author: "alice", State: "APPROVED", SubmittedAt: created.Add(2 * time.Hour)},
		{Author: "alice", State: "COMMENTED", SubmittedAt: created.Add(50 * time.Hour)}, // later review ignored
	})

	opts := quietOptions()
	opts.UseLatency = true

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", res.Candidates)
	}
	alice := res.Candidates[0]
	// 3 (first author) + 6 (median 2h, ≤4h bucket) = 9.
	if alice.Score != 9 {
		t.Errorf("expected score 9, got %d", alice.Score)
	}
	wantReason := "fast reviewer (~2h median)"
	if !containsString(alice.Reasons, wantReason) {
		t.Errorf("expected reason %q, got %v", wantReason, alice.Reasons)
	}
}

func TestRankLoadPenalty(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("alice", 1),
		commitAt("bob", 2),
	})
	// alice is a requested reviewer on 3 open PRs; bob on none.
	open := make([]types.PullRequest, 3)
	for i := range open {
		open[i] = types.PullRequest{Number: 100 + i, State: "open", RequestedReviewers: []string{"alice"}}
	}
	src.SetPullRequests("acme", "widgets", "open", open)

	opts := quietOptions()
	opts.PenalizeLoad = true

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	byLogin := make(map[string]types.RankedCandidate)
	for _, c := range res.Candidates {
		byLogin[c.Login] = c
	}
	// alice: round(3 / (1 + 3/3)) = 2.
	if byLogin["alice"].Score != 2 {
		t.Errorf("expected alice score 2 after load penalty, got %d", byLogin["alice"].Score)
	}
	if byLogin["alice"].OpenReviews == nil || *byLogin["alice"].OpenReviews != 3 {
		t.Errorf("expected alice open reviews 3, got %v", byLogin["alice"].OpenReviews)
	}
	if byLogin["bob"].Score != 2 {
		t.Errorf("expected bob score unchanged at 2, got %d", byLogin["bob"].Score)
	}
}

func TestRankFlakyPenalty(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{commitAt("alice", 1)})

	// alice requested on 4 open PRs.
	open := make([]types.PullRequest, 4)
	for i := range open {
		open[i] = types.PullRequest{Number: 200 + i, State: "open", RequestedReviewers: []string{"alice"}}
	}
	src.SetPullRequests("acme", "widgets", "open", open)

	// Five sampled closed PRs, none reviewed by alice.
	created := frozenNow.Add(-20 * 24 * time.Hour)
	closed := make([]types.PullRequest, 5)
	for i := range closed {
		closed[i] = types.PullRequest{Number: 300 + i, State: "closed", CreatedAt: created}
	}
	src.SetPullRequests("acme", "widgets", "closed", closed)

	opts := quietOptions()
	opts.DetectFlaky = true

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %+v", res.Candidates)
	}
	alice := res.Candidates[0]
	// 3 (commits) halved and rounded = 2, with the reason appended once.
	if alice.Score != 2 {
		t.Errorf("expected halved score 2, got %d", alice.Score)
	}
	count := 0
	for _, r := range alice.Reasons {
		if r == "flaky reviewer" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one flaky reason, got %v", alice.Reasons)
	}
}

func TestRankCrossRepoExpertiseCapped(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{commitAt("bob", 1)})

	var commits []types.Commit
	for range 8 {
		commits = append(commits, commitAt("erin", 2))
	}
	src.SetCommits("acme", "gadgets", "main.go", commits)

	opts := quietOptions()
	opts.CrossRepos = []string{"acme/gadgets", "malformed"}

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	byLogin := make(map[string]types.RankedCandidate)
	for _, c := range res.Candidates {
		byLogin[c.Login] = c
	}
	erin, ok := byLogin["erin"]
	if !ok {
		t.Fatalf("expected erin in ranking, got %+v", res.Candidates)
	}
	if erin.Score != 5 {
		t.Errorf("expected cross-repo points capped at 5, got %d", erin.Score)
	}
	if !containsString(erin.Reasons, "cross-repo expertise") {
		t.Errorf("missing cross-repo reason: %v", erin.Reasons)
	}
}

func TestRankTimezoneMatch(t *testing.T) {
	src := testutil.NewMockSource()
	// Commits at 13:00 UTC; preferred offset 0 puts the center at 14:00.
	at := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		{Author: "alice", AuthoredAt: at},
		{Author: "alice", AuthoredAt: at.Add(-24 * time.Hour)},
	})

	offset := 0
	opts := quietOptions()
	opts.PreferTimezone = &offset

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	alice := res.Candidates[0]
	// 3 (first author) + 3 (≤4h circular distance) = 6.
	if alice.Score != 6 {
		t.Errorf("expected score 6, got %d", alice.Score)
	}
	if !containsString(alice.Reasons, "timezone match") {
		t.Errorf("missing timezone reason: %v", alice.Reasons)
	}
}

func TestRankTieBreakInsertionOrder(t *testing.T) {
	src := testutil.NewMockSource()
	// Two paths, one first-author each: equal scores, path order decides.
	src.SetCommits("acme", "widgets", "a.go", []types.Commit{commitAt("first", 1)})
	src.SetCommits("acme", "widgets", "b.go", []types.Commit{commitAt("second", 1)})

	e := New(src, quietOptions())
	res, err := e.Rank(context.Background(), baseInput("a.go", "b.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", res.Candidates)
	}
	if res.Candidates[0].Login != "first" || res.Candidates[1].Login != "second" {
		t.Errorf("tie must preserve insertion order, got %+v", res.Candidates)
	}
}

func TestRankTruncatesToMaxReviewers(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "main.go", []types.Commit{
		commitAt("a", 1), commitAt("b", 2), commitAt("c", 3), commitAt("d", 4), commitAt("e", 5),
	})

	opts := quietOptions()
	opts.MaxReviewers = 2

	e := New(src, opts)
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("expected truncation to 2, got %d", len(res.Candidates))
	}
}

func TestRankEmptyIsLowConfidenceNotError(t *testing.T) {
	src := testutil.NewMockSource()

	e := New(src, DefaultOptions())
	res, err := e.Rank(context.Background(), baseInput("main.go"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Candidates) != 0 {
		t.Errorf("expected empty ranking, got %+v", res.Candidates)
	}
	if res.Confidence != types.ConfidenceLow {
		t.Errorf("expected Low confidence, got %s", res.Confidence)
	}
	if !res.NoStrongCandidates {
		t.Error("expected NoStrongCandidates=true")
	}
}

func TestRankToleratesFetchFailures(t *testing.T) {
	src := testutil.NewMockSource()
	src.SetCommits("acme", "widgets", "ok.go", []types.Commit{commitAt("alice", 1)})
	src.FailWith("commits:acme/widgets/broken.go", errors.New("boom"))
	src.FailWith("pulls:acme/widgets:closed", errors.New("boom"))
	src.FailWith("pulls:acme/widgets:open", errors.New("boom"))

	e := New(src, DefaultOptions())
	res, err := e.Rank(context.Background(), baseInput("broken.go", "ok.go"))
	if err != nil {
		t.Fatalf("partial fetch failures must not abort the run: %v", err)
	}
	if len(res.Candidates) != 1 || res.Candidates[0].Login != "alice" {
		t.Errorf("expected alice from the surviving path, got %+v", res.Candidates)
	}
}

func TestRankDeterminism(t *testing.T) {
	build := func() *Engine {
		src := testutil.NewMockSource()
		src.SetFileContent("acme", "widgets", "CODEOWNERS", "src/** @alice @bob\ndocs/* @carol\n")
		src.SetCommits("acme", "widgets", "src/a.go", []types.Commit{
			commitAt("bob", 1), commitAt("alice", 2), commitAt("carol", 3),
		})
		src.SetCommits("acme", "widgets", "docs/guide.md", []types.Commit{
			commitAt("carol", 4), commitAt("alice", 5),
		})
		created := frozenNow.Add(-10 * 24 * time.Hour)
		src.SetPullRequests("acme", "widgets", "closed", []types.PullRequest{
			{Number: 9, State: "closed", CreatedAt: created},
		})
		src.SetReviews("acme", "widgets", 9, []types.Review{
			{Author: "carol", State: "APPROVED", SubmittedAt: created.Add(3 * time.Hour)},
			{Author: "bob", State: "COMMENTED", SubmittedAt: created.Add(30 * time.Hour)},
		})
		return New(src, DefaultOptions())
	}

	in := baseInput("src/a.go", "docs/guide.md")
	first, err := build().Rank(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	for range 5 {
		again, err := build().Rank(context.Background(), in)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first.Candidates, again.Candidates) {
			t.Fatalf("ranking not deterministic:\n%+v\nvs\n%+v", first.Candidates, again.Candidates)
		}
		if first.Confidence != again.Confidence {
			t.Fatalf("confidence not deterministic: %s vs %s", first.Confidence, again.Confidence)
		}
	}
}

func TestPenalizeLoad(t *testing.T) {
	// round(40 / (1 + 10/3)) = round(9.23) = 9.
	if got := penalizeLoad(40, 10); got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
	// Monotonically non-increasing, never zero.
	prev := penalizeLoad(40, 0)
	for open := 1; open <= 200; open++ {
		cur := penalizeLoad(40, open)
		if cur > prev {
			t.Fatalf("penalty increased at open=%d: %d > %d", open, cur, prev)
		}
		if cur < 1 {
			t.Fatalf("penalty zeroed a positive score at open=%d", open)
		}
		prev = cur
	}
	// No penalty at zero load.
	if got := penalizeLoad(7, 0); got != 7 {
		t.Errorf("expected unchanged score, got %d", got)
	}
}

func TestLatencyBonusSteps(t *testing.T) {
	cases := []struct {
		hours float64
		want  int
	}{
		{1, 6}, {4, 6}, {4.5, 4}, {12, 4}, {13, 2}, {24, 2}, {36, 1}, {48, 1}, {49, 0}, {500, 0},
	}
	for _, tc := range cases {
		if got := latencyBonus(tc.hours); got != tc.want {
			t.Errorf("latencyBonus(%v) = %d, want %d", tc.hours, got, tc.want)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
