// Package rank implements the reviewer-suggestion ranking engine: it merges
// the independent per-candidate signals (commit attribution, ownership,
// review latency, cross-repo expertise, timezone overlap) under fixed
// weights, applies required/excluded overrides and the load and flaky
// penalties, and produces a deterministic total order with a confidence
// label.
package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/ownership"
	"github.com/prsignal-dev/prsignal/pkg/signals"
	"github.com/prsignal-dev/prsignal/pkg/types"
)

// ownershipFilePaths are probed in order for the ownership rule file.
var ownershipFilePaths = []string{"CODEOWNERS", ".github/CODEOWNERS", "docs/CODEOWNERS"}

// Engine ranks reviewer candidates for a pull request. It is stateless
// between runs: every Rank call recomputes from live data through the
// Source.
type Engine struct {
	src  signals.Source
	opts Options
}

// New creates an engine over the given data source.
func New(src signals.Source, opts Options) *Engine {
	return &Engine{src: src, opts: opts}
}

// Input is the per-run context for a ranking. Reviews are the prior review
// events on the PR itself; they are surfaced to collaborators (stall
// classification) and do not affect scoring.
type Input struct {
	Now          time.Time // zero means time.Now()
	Owner        string
	Repo         string
	Author       string
	ChangedFiles []types.ChangedFile
	Reviews      []types.Review
	Number       int
}

// Result is the engine's output: the truncated ranking, its confidence, and
// a per-team count of suggestions covered by that team's ownership roster.
type Result struct {
	TeamCoverage       map[string]int
	Confidence         types.Confidence
	Candidates         []types.RankedCandidate
	FilesConsidered    int
	NoStrongCandidates bool
}

// Rank computes the ranked candidate list for a pull request.
//
// Aggregation order is fixed and must not be rearranged: the load and flaky
// penalties are multiplicative on the accumulated sum, so reordering changes
// results. The PR author and bot logins are rejected at credit time and
// never scored.
func (e *Engine) Rank(ctx context.Context, in Input) (*Result, error) {
	if in.Owner == "" || in.Repo == "" || in.Number <= 0 {
		return nil, errors.New("rank: owner, repo and PR number are required")
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	opts := loadRepoConfig(ctx, e.src, in.Owner, in.Repo).overlay(e.opts)

	paths := make([]string, 0, len(in.ChangedFiles))
	for _, f := range in.ChangedFiles {
		paths = append(paths, f.Path)
	}
	if opts.MaxFilesConsidered > 0 && len(paths) > opts.MaxFilesConsidered {
		slog.Info("Truncating changed files for attribution",
			"total", len(paths), "considered", opts.MaxFilesConsidered)
		paths = paths[:opts.MaxFilesConsidered]
	}

	since := now.Add(-time.Duration(opts.LookbackDays) * 24 * time.Hour)
	acc := newAccumulator(in.Author, e.src.IsBot)

	// 1. Commit-history credit: 3/2/1 per path, newest authors first.
	attr := signals.CollectAttribution(ctx, e.src, in.Owner, in.Repo, paths, since)
	for _, authors := range attr.PathAuthors {
		for i, login := range authors {
			credit := otherAuthorCredit
			switch i {
			case 0:
				credit = firstAuthorCredit
			case 1:
				credit = secondAuthorCredit
			}
			acc.add(login, credit*commitSignalWeight, "recent commits")
		}
	}

	// 2. Ownership credit: each (owner, file) pair at most once.
	var rules ownership.Ruleset
	if opts.UseCodeowners {
		rules = e.loadOwnershipRules(ctx, in.Owner, in.Repo)
		for _, path := range paths {
			credited := make(map[string]bool)
			for _, owner := range rules.OwnersFor(path) {
				key := strings.ToLower(owner)
				if credited[key] {
					continue
				}
				credited[key] = true
				acc.add(owner, ownershipBonus, "CODEOWNERS")
			}
		}
	}

	// 3. Latency bonus. The sample is also needed for flaky detection.
	var lat *signals.LatencyStats
	if opts.UseLatency || opts.DetectFlaky {
		lat = signals.CollectLatency(ctx, e.src, in.Owner, in.Repo, since, opts.LatencyPRs)
	}
	if opts.UseLatency && lat != nil {
		for _, key := range lat.Order {
			med, ok := lat.MedianHours[key]
			if !ok {
				continue
			}
			bonus := latencyBonus(med) * latencySignalWeight
			if bonus > 0 {
				reason := fmt.Sprintf("fast reviewer (~%dh median)", int(math.Round(med)))
				acc.add(lat.Display[key], bonus, reason)
			}
		}
	}

	// 4. Cross-repo expertise: 1pt per authored commit, capped per login.
	e.creditCrossRepos(ctx, acc, opts.CrossRepos, paths, since)

	// 5. Timezone overlap, only when a preferred offset is configured.
	if opts.PreferTimezone != nil {
		e.creditTimezone(acc, attr, *opts.PreferTimezone)
	}

	// 6. Required-reviewer floor.
	for _, login := range opts.RequiredReviewers {
		if acc.score(login) == 0 {
			acc.add(login, requiredFloorScore, "required reviewer")
		} else {
			acc.add(login, requiredBonusScore, "required reviewer")
		}
	}

	// Exclusions drop out after scoring and before penalties, so they never
	// influence confidence.
	for _, login := range opts.ExcludeReviewers {
		acc.remove(login)
	}

	cands := acc.snapshot()
	sortByScore(cands)

	var load map[string]int
	if opts.PenalizeLoad || opts.DetectFlaky {
		load = signals.CollectLoad(ctx, e.src, in.Owner, in.Repo)
	}

	if opts.PenalizeLoad {
		for _, c := range cands {
			open := load[strings.ToLower(c.login)]
			c.openReviews = &open
			c.score = penalizeLoad(c.score, open)
		}
		sortByScore(cands)
	}

	if opts.DetectFlaky && lat != nil {
		flaky := signals.FlakySet(load, lat.Submitted)
		for _, c := range cands {
			if !flaky[strings.ToLower(c.login)] {
				continue
			}
			c.score = int(math.Round(float64(c.score) * flakyPenaltyFactor))
			if !c.reasonSet["flaky reviewer"] {
				c.reasonSet["flaky reviewer"] = true
				c.reasons = append(c.reasons, "flaky reviewer")
			}
		}
		sortByScore(cands)
	}

	// Confidence is computed on the pre-truncation ranking.
	top, second := 0, 0
	if len(cands) > 0 {
		top = cands[0].score
	}
	if len(cands) > 1 {
		second = cands[1].score
	}
	covered := attr.FilesWithAuthors()
	if owned := rules.MatchedCount(paths); owned > covered {
		covered = owned
	}
	confidence := estimateConfidence(top, second, covered, len(paths))

	if opts.MaxReviewers > 0 && len(cands) > opts.MaxReviewers {
		cands = cands[:opts.MaxReviewers]
	}

	ranked := make([]types.RankedCandidate, 0, len(cands))
	for _, c := range cands {
		ranked = append(ranked, types.RankedCandidate{
			Login:       c.login,
			Score:       c.score,
			Reasons:     c.reasons,
			OpenReviews: c.openReviews,
		})
	}

	result := &Result{
		Candidates:         ranked,
		Confidence:         confidence,
		TeamCoverage:       teamCoverage(rules, ranked),
		FilesConsidered:    len(paths),
		NoStrongCandidates: len(ranked) == 0,
	}
	slog.Info("Ranking complete", "candidates", len(ranked), "confidence", confidence,
		"files_considered", len(paths))
	return result, nil
}

// creditCrossRepos samples recent commits on up to crossRepoPathCap changed
// paths in each configured repository. Each authored commit is worth one
// point, capped at crossRepoPointCap per login across all repos.
func (e *Engine) creditCrossRepos(ctx context.Context, acc *accumulator, repos, paths []string, since time.Time) {
	if len(repos) == 0 {
		return
	}
	samplePaths := paths
	if len(samplePaths) > crossRepoPathCap {
		samplePaths = samplePaths[:crossRepoPathCap]
	}

	points := make(map[string]int)
	for _, ident := range repos {
		owner, repo, ok := strings.Cut(ident, "/")
		if !ok || owner == "" || repo == "" {
			slog.Warn("Skipping malformed cross-repo identifier", "repo", ident)
			continue
		}
		for _, path := range samplePaths {
			commits, err := e.src.CommitsForPath(ctx, owner, repo, path, since, crossRepoCommitCap)
			if err != nil {
				slog.Warn("Cross-repo commit lookup failed (skipping)",
					"repo", ident, "path", path, "error", err)
				continue
			}
			for _, commit := range commits {
				if commit.Author == "" || e.src.IsBot(commit.Author) {
					continue
				}
				key := strings.ToLower(commit.Author)
				if points[key] >= crossRepoPointCap {
					continue
				}
				points[key]++
				acc.add(commit.Author, 1, "cross-repo expertise")
			}
		}
	}
}

// creditTimezone awards overlap points from each attributed author's average
// commit hour against the preferred "2pm local" center hour.
func (e *Engine) creditTimezone(acc *accumulator, attr *signals.Attribution, offsetHours int) {
	center := ((tzProductiveLocalHour-offsetHours)%24 + 24) % 24

	seen := make(map[string]bool)
	for _, authors := range attr.PathAuthors {
		for _, login := range authors {
			key := strings.ToLower(login)
			if seen[key] {
				continue
			}
			seen[key] = true

			hours := attr.CommitHours[key]
			if len(hours) == 0 {
				continue
			}
			sum := 0
			for _, h := range hours {
				sum += h
			}
			avg := float64(sum) / float64(len(hours))

			dist := math.Abs(avg - float64(center))
			if dist > 12 {
				dist = 24 - dist
			}
			switch {
			case dist <= tzCloseHours:
				acc.add(login, tzCloseBonus, "timezone match")
			case dist <= tzNearHours:
				acc.add(login, tzNearBonus, "timezone match")
			}
		}
	}
}

// loadOwnershipRules probes the known ownership-file locations and parses
// the first non-empty one. Absence is not an error.
func (e *Engine) loadOwnershipRules(ctx context.Context, owner, repo string) ownership.Ruleset {
	for _, path := range ownershipFilePaths {
		content, err := e.src.FileContent(ctx, owner, repo, path)
		if err != nil || content == "" {
			continue
		}
		if rules := ownership.Parse(content, e.src.IsBot); len(rules) > 0 {
			slog.Debug("Loaded ownership rules", "path", path, "rules", len(rules))
			return rules
		}
	}
	slog.Debug("No ownership rules found", "owner", owner, "repo", repo)
	return nil
}

// penalizeLoad applies the diminishing-return load penalty. The result is
// never zero for a positive input score.
func penalizeLoad(score, openReviews int) int {
	if score <= 0 {
		return score
	}
	penalized := int(math.Round(float64(score) / (1 + float64(openReviews)/loadPenaltyDivisor)))
	if penalized < 1 {
		penalized = 1
	}
	return penalized
}

// sortByScore re-sorts descending by score, stable on ties so the prior
// relative order of equal scores survives each penalty pass.
func sortByScore(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})
}
