// Package testutil provides programmable test doubles for the advisory
// system.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/types"
)

// MockSource implements signals.Source for testing. Responses are canned
// per request key; unset keys return empty results, and keys registered via
// FailWith return errors. All calls are recorded.
type MockSource struct {
	commits map[string][]types.Commit
	pulls   map[string][]types.PullRequest
	reviews map[string][]types.Review
	files   map[string]string
	errors  map[string]error
	bots    map[string]bool
	calls   []string
	mu      sync.Mutex
}

// NewMockSource creates an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{
		commits: make(map[string][]types.Commit),
		pulls:   make(map[string][]types.PullRequest),
		reviews: make(map[string][]types.Review),
		files:   make(map[string]string),
		errors:  make(map[string]error),
		bots:    make(map[string]bool),
	}
}

func commitKey(owner, repo, path string) string { return fmt.Sprintf("commits:%s/%s/%s", owner, repo, path) }
func pullKey(owner, repo, state string) string  { return fmt.Sprintf("pulls:%s/%s:%s", owner, repo, state) }
func reviewKey(owner, repo string, n int) string {
	return fmt.Sprintf("reviews:%s/%s#%d", owner, repo, n)
}
func fileKey(owner, repo, path string) string { return fmt.Sprintf("file:%s/%s/%s", owner, repo, path) }

// SetCommits cans the commit history for a path.
func (m *MockSource) SetCommits(owner, repo, path string, commits []types.Commit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[commitKey(owner, repo, path)] = commits
}

// SetPullRequests cans a PR listing for a state.
func (m *MockSource) SetPullRequests(owner, repo, state string, prs []types.PullRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulls[pullKey(owner, repo, state)] = prs
}

// SetReviews cans the review list for a PR.
func (m *MockSource) SetReviews(owner, repo string, number int, reviews []types.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[reviewKey(owner, repo, number)] = reviews
}

// SetFileContent cans a raw file fetch.
func (m *MockSource) SetFileContent(owner, repo, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[fileKey(owner, repo, path)] = content
}

// SetBot marks a login as a bot.
func (m *MockSource) SetBot(login string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots[strings.ToLower(login)] = true
}

// FailWith makes the request with the given key return err. Keys follow the
// internal formats, e.g. "commits:o/r/path", "pulls:o/r:open",
// "reviews:o/r#1", "file:o/r/CODEOWNERS".
func (m *MockSource) FailWith(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[key] = err
}

// Calls returns the recorded request keys in call order.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockSource) record(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, key)
	return m.errors[key]
}

// CommitsForPath implements signals.Source.
func (m *MockSource) CommitsForPath(_ context.Context, owner, repo, path string, since time.Time, limit int) ([]types.Commit, error) {
	key := commitKey(owner, repo, path)
	if err := m.record(key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Commit
	for _, c := range m.commits[key] {
		if len(out) >= limit {
			break
		}
		if c.AuthoredAt.IsZero() || !c.AuthoredAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

// PullRequests implements signals.Source.
func (m *MockSource) PullRequests(_ context.Context, owner, repo, state string, limit int) ([]types.PullRequest, error) {
	key := pullKey(owner, repo, state)
	if err := m.record(key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prs := m.pulls[key]
	if len(prs) > limit {
		prs = prs[:limit]
	}
	return append([]types.PullRequest(nil), prs...), nil
}

// Reviews implements signals.Source.
func (m *MockSource) Reviews(_ context.Context, owner, repo string, number int) ([]types.Review, error) {
	key := reviewKey(owner, repo, number)
	if err := m.record(key); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Review(nil), m.reviews[key]...), nil
}

// FileContent implements signals.Source.
func (m *MockSource) FileContent(_ context.Context, owner, repo, path string) (string, error) {
	key := fileKey(owner, repo, path)
	if err := m.record(key); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[key]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

// IsBot implements signals.Source with the same heuristic shape as the real
// client: explicit registrations plus the "[bot]" suffix.
func (m *MockSource) IsBot(login string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bots[strings.ToLower(login)] || strings.HasSuffix(strings.ToLower(login), "[bot]")
}
