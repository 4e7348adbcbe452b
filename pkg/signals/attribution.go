package signals

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	perPathCommitCap  = 30 // commits fetched per changed path
	maxAuthorsPerPath = 10 // distinct authors kept per path
	fetchConcurrency  = 4  // parallel per-path fetches
)

// Attribution holds recent human commit authorship for a set of changed
// paths.
type Attribution struct {
	// CommitHours maps a lowercased login to the UTC hour-of-day of each
	// of their attributed commits, for timezone profiling.
	CommitHours map[string][]int

	// Display maps a lowercased login to the casing first seen on a commit.
	Display map[string]string

	// Paths is the effective set of considered paths, in input order.
	Paths []string

	// PathAuthors is parallel to Paths: distinct non-bot author logins per
	// path, first-seen order from newest commit to oldest. Empty when the
	// fetch failed or found nothing.
	PathAuthors [][]string
}

// FilesWithAuthors returns how many considered paths have at least one
// attributed author.
func (a *Attribution) FilesWithAuthors() int {
	count := 0
	for _, authors := range a.PathAuthors {
		if len(authors) > 0 {
			count++
		}
	}
	return count
}

// CollectAttribution fetches recent commit authors for each path since the
// given time. Fetches run in parallel with bounded concurrency; a failure
// for one path is logged and leaves that path unattributed.
func CollectAttribution(ctx context.Context, src Source, owner, repo string, paths []string, since time.Time) *Attribution {
	attr := &Attribution{
		CommitHours: make(map[string][]int),
		Display:     make(map[string]string),
		Paths:       paths,
		PathAuthors: make([][]string, len(paths)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for i, path := range paths {
		g.Go(func() error {
			commits, err := src.CommitsForPath(gctx, owner, repo, path, since, perPathCommitCap)
			if err != nil {
				slog.Warn("Commit lookup failed for path (skipping)", "path", path, "error", err)
				return nil
			}

			var authors []string
			seen := make(map[string]bool)
			mu.Lock()
			defer mu.Unlock()
			for _, commit := range commits {
				login := commit.Author
				if login == "" || src.IsBot(login) {
					continue
				}
				key := strings.ToLower(login)
				attr.CommitHours[key] = append(attr.CommitHours[key], commit.AuthoredAt.UTC().Hour())
				if _, ok := attr.Display[key]; !ok {
					attr.Display[key] = login
				}
				if seen[key] || len(authors) >= maxAuthorsPerPath {
					continue
				}
				seen[key] = true
				authors = append(authors, login)
			}
			attr.PathAuthors[i] = authors
			return nil
		})
	}

	// Tasks swallow their own errors, so Wait only reflects ctx cancellation.
	if err := g.Wait(); err != nil {
		slog.Warn("Attribution collection interrupted", "error", err)
	}

	return attr
}
