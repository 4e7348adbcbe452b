package github

import (
	"strings"
	"sync"
)

// userCache memoizes per-login bot verdicts for the life of the client.
type userCache struct {
	mu    sync.RWMutex
	isBot map[string]bool
}

func newUserCache() *userCache {
	return &userCache{isBot: make(map[string]bool)}
}

func (uc *userCache) get(login string) (verdict, ok bool) {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	verdict, ok = uc.isBot[login]
	return verdict, ok
}

func (uc *userCache) set(login string, verdict bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.isBot[login] = verdict
}

// botPatterns are substrings that mark a login as an automation account.
var botPatterns = []string{
	"[bot]",
	"-bot",
	"_bot",
	"bot-",
	"bot_",
	".bot",
	"github-actions",
	"dependabot",
	"renovate",
	"greenkeeper",
	"snyk",
	"codecov",
	"coveralls",
	"travis",
	"circleci",
	"jenkins",
	"buildkite",
	"semaphore",
	"appveyor",
	"azure-pipelines",
	"imgbot",
	"allcontributors",
	"whitesource",
	"mergify",
	"sonarcloud",
	"deepsource",
	"codefactor",
	"codacy",
	"hound",
	"stale",
}

// IsBot reports whether a login looks like an automation account.
func (c *Client) IsBot(login string) bool {
	if login == "" {
		return false
	}
	lower := strings.ToLower(login)
	if verdict, ok := c.userCache.get(lower); ok {
		return verdict
	}

	verdict := false
	for _, pattern := range botPatterns {
		if strings.Contains(lower, pattern) {
			verdict = true
			break
		}
	}

	c.userCache.set(lower, verdict)
	return verdict
}
