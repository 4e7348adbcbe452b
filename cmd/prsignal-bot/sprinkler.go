package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sprinkler/pkg/client"
)

const (
	eventChannelSize     = 100
	eventDedupWindow     = 5 * time.Second
	eventMapMaxSize      = 1000
	eventMapCleanupAge   = 1 * time.Hour
	processMaxRetries    = 3
	processMaxDelay      = 10 * time.Second
	maxReconnectAttempts = 100
	reconnectBackoff     = 30 * time.Second
)

// eventMonitor manages the WebSocket event subscription for one org.
type eventMonitor struct {
	mu           sync.RWMutex
	lastEventAt  time.Time
	bot          *Bot
	client       *client.Client
	eventChan    chan string
	lastEventMap map[string]time.Time
	stopChan     chan struct{}
	org          string
	reconnects   int
	isRunning    bool
	isStopped    bool
}

func newEventMonitor(bot *Bot, org string) *eventMonitor {
	return &eventMonitor{
		bot:          bot,
		org:          org,
		eventChan:    make(chan string, eventChannelSize),
		lastEventMap: make(map[string]time.Time),
		stopChan:     make(chan struct{}),
	}
}

// start begins monitoring PR events for this org.
func (m *eventMonitor) start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = true
	m.isStopped = false
	m.mu.Unlock()

	slog.Info("Starting event monitor", "org", m.org)
	go m.processEvents(ctx)
	go m.manageConnection(ctx)
	return nil
}

// manageConnection restarts the WebSocket client whenever it gives up. The
// sprinkler client reconnects internally; this loop only handles fatal exits.
func (m *eventMonitor) manageConnection(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		default:
			m.mu.RLock()
			stopped := m.isStopped
			m.mu.RUnlock()
			if stopped {
				return
			}

			err := m.connect(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}

			m.mu.Lock()
			m.reconnects++
			attempts := m.reconnects
			m.mu.Unlock()

			if attempts >= maxReconnectAttempts {
				slog.Error("Max reconnection attempts reached, giving up", "org", m.org, "attempts", attempts)
				return
			}

			backoff := reconnectBackoff * time.Duration(attempts)
			if backoff > 5*time.Minute {
				backoff = 5 * time.Minute
			}
			slog.Warn("Event stream client gave up, restarting after backoff",
				"org", m.org, "attempt", attempts, "backoff", backoff, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-time.After(backoff):
			}
		}
	}
}

// connect establishes the WebSocket connection and blocks until it stops.
func (m *eventMonitor) connect(ctx context.Context) error {
	config := client.Config{
		ServerURL:    "wss://" + client.DefaultServerAddress + "/ws",
		Organization: m.org,
		TokenProvider: func() (string, error) {
			tok, err := m.bot.client.Token(ctx)
			if err != nil {
				return "", fmt.Errorf("failed to get token: %w", err)
			}
			return tok, nil
		},
		EventTypes:     []string{"pull_request"},
		UserEventsOnly: false,
		Verbose:        false,
		NoReconnect:    false,
		OnConnect: func() {
			slog.Info("Event stream connected", "org", m.org)
		},
		OnDisconnect: func(err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("Event stream disconnected", "org", m.org, "error", err)
			}
		},
		OnEvent: func(event client.Event) {
			m.handleEvent(event)
		},
	}

	wsClient, err := client.New(config)
	if err != nil {
		return fmt.Errorf("failed to create event stream client: %w", err)
	}

	m.mu.Lock()
	m.client = wsClient
	m.mu.Unlock()

	if err := wsClient.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// handleEvent filters, dedupes, and queues an incoming PR event.
func (m *eventMonitor) handleEvent(event client.Event) {
	if event.Type != "pull_request" || event.URL == "" {
		return
	}

	// URL format: https://github.com/org/repo/pull/123
	parts := strings.Split(event.URL, "/")
	const minParts = 5
	if len(parts) < minParts || parts[2] != "github.com" {
		slog.Warn("Failed to extract org from event URL", "url", event.URL)
		return
	}
	if parts[3] != m.org {
		return
	}

	m.mu.Lock()
	now := time.Now()
	if lastSeen, seen := m.lastEventMap[event.URL]; seen && now.Sub(lastSeen) < eventDedupWindow {
		m.mu.Unlock()
		return
	}
	m.lastEventMap[event.URL] = now
	m.lastEventAt = now

	if len(m.lastEventMap) > eventMapMaxSize {
		cutoff := now.Add(-eventMapCleanupAge)
		for url, timestamp := range m.lastEventMap {
			if timestamp.Before(cutoff) {
				delete(m.lastEventMap, url)
			}
		}
	}
	m.mu.Unlock()

	slog.Info("PR event received", "url", event.URL, "org", m.org)

	select {
	case m.eventChan <- event.URL:
	default:
		slog.Warn("Event channel full, dropping event", "url", event.URL)
	}
}

// processEvents drains the event channel.
func (m *eventMonitor) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case prURL := <-m.eventChan:
			m.processEvent(ctx, prURL)
		}
	}
}

// processEvent analyzes a single PR with retries.
func (m *eventMonitor) processEvent(ctx context.Context, prURL string) {
	startTime := time.Now()

	ref, err := parseEventURL(prURL)
	if err != nil {
		slog.Warn("Failed to parse PR URL", "url", prURL, "error", err)
		return
	}

	slog.Info("Processing PR event", "owner", ref.owner, "repo", ref.repo, "pr", ref.number)

	err = retry.Do(func() error {
		return m.bot.processPR(ctx, ref.owner, ref.repo, ref.number)
	},
		retry.Attempts(processMaxRetries),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxDelay(processMaxDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("Retrying PR processing", "attempt", n+1, "owner", ref.owner, "repo", ref.repo, "pr", ref.number, "error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		slog.Error("Failed to process PR after retries",
			"owner", ref.owner, "repo", ref.repo, "pr", ref.number,
			"elapsed", time.Since(startTime).Round(time.Millisecond), "error", err)
		return
	}

	slog.Info("Processed PR",
		"owner", ref.owner, "repo", ref.repo, "pr", ref.number,
		"elapsed", time.Since(startTime).Round(time.Millisecond))
}

// stop shuts down the monitor and its WebSocket client.
func (m *eventMonitor) stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.isStopped = true
	m.mu.Unlock()

	close(m.stopChan)

	m.mu.RLock()
	wsClient := m.client
	m.mu.RUnlock()
	if wsClient != nil {
		wsClient.Stop()
	}
	slog.Info("Event monitor stopped", "org", m.org)
}

// prRef holds a parsed PR reference.
type prRef struct {
	owner  string
	repo   string
	number int
}

// parseEventURL extracts owner, repo, and PR number from an event URL.
// URL format: https://github.com/owner/repo/pull/123
func parseEventURL(url string) (*prRef, error) {
	const minParts = 7
	parts := strings.Split(url, "/")
	if len(parts) < minParts || parts[2] != "github.com" {
		return nil, fmt.Errorf("invalid GitHub PR URL format: %s", url)
	}

	var number int
	if _, err := fmt.Sscanf(parts[6], "%d", &number); err != nil {
		return nil, fmt.Errorf("invalid PR number in URL: %s", url)
	}

	return &prRef{owner: parts[3], repo: parts[4], number: number}, nil
}
