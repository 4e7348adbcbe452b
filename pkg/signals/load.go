package signals

import (
	"context"
	"log/slog"
	"strings"
)

// openPRScanLimit bounds how many open PRs are scanned for requested
// reviewers when computing load.
const openPRScanLimit = 100

// flakyMinRequests is the minimum number of current review requests before
// a login can be flagged flaky.
const flakyMinRequests = 3

// CollectLoad counts, per lowercased login, the currently open pull
// requests that still list that login as a requested (not yet submitted)
// reviewer. Returns an empty map when the listing fails.
func CollectLoad(ctx context.Context, src Source, owner, repo string) map[string]int {
	load := make(map[string]int)

	prs, err := src.PullRequests(ctx, owner, repo, "open", openPRScanLimit)
	if err != nil {
		slog.Warn("Open PR listing failed (no load signal)", "error", err)
		return load
	}

	for _, pr := range prs {
		for _, login := range pr.RequestedReviewers {
			if login == "" || src.IsBot(login) {
				continue
			}
			load[strings.ToLower(login)]++
		}
	}

	return load
}

// FlakySet flags logins who are repeatedly requested but rarely follow
// through: at least 3 current requests and fewer sampled submitted reviews
// than requests. Both maps are keyed by lowercased login.
func FlakySet(requested, submitted map[string]int) map[string]bool {
	flaky := make(map[string]bool)
	for login, requests := range requested {
		if requests >= flakyMinRequests && submitted[login] < requests {
			flaky[login] = true
		}
	}
	return flaky
}
