// Package signals collects the per-candidate evidence the ranking engine
// consumes: commit attribution for changed paths, first-review latency
// statistics, current review load, and flaky-reviewer detection. Collectors
// never fail a run: any single fetch error is logged and degrades to "no
// signal from this source".
package signals

import (
	"context"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/types"
)

// Source is the abstract fetch capability collectors call through. It is
// implemented by the GitHub client and by test mocks; collectors never
// perform HTTP themselves.
type Source interface {
	// CommitsForPath returns recent commits touching path, newest first,
	// restricted to commits authored since the given time.
	CommitsForPath(ctx context.Context, owner, repo, path string, since time.Time, limit int) ([]types.Commit, error)

	// PullRequests lists pull requests in the given state ("open" or
	// "closed"), most recently updated first.
	PullRequests(ctx context.Context, owner, repo, state string, limit int) ([]types.PullRequest, error)

	// Reviews returns the submitted reviews for a pull request in
	// submission order.
	Reviews(ctx context.Context, owner, repo string, number int) ([]types.Review, error)

	// FileContent returns the raw content of a file on the default branch.
	FileContent(ctx context.Context, owner, repo, path string) (string, error)

	// IsBot reports whether a login looks like an automation account.
	IsBot(login string) bool
}
