package signals

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Bounds for the closed-PR latency sample size.
const (
	MinLatencySample = 5
	MaxLatencySample = 50
)

// LatencyStats summarizes first-review behavior over sampled closed pull
// requests. Maps are keyed by lowercased login. A login absent from
// MedianHours submitted no sampled review: absence is not zero.
type LatencyStats struct {
	// MedianHours is the median hours from PR creation to the login's
	// first review, across sampled PRs.
	MedianHours map[string]float64

	// Submitted counts sampled PRs the login submitted at least one
	// review for. Reused by flaky detection.
	Submitted map[string]int

	// Display maps a lowercased login to the casing first seen on a review.
	Display map[string]string

	// Order lists lowercased logins in first-seen order across the sample,
	// so callers crediting from these maps stay deterministic.
	Order []string
}

// CollectLatency samples up to sampleSize (clamped to [5,50]) most recently
// updated closed pull requests created after `since` and computes per-login
// first-review latency medians. A review fetch failing for one PR skips
// that PR only.
func CollectLatency(ctx context.Context, src Source, owner, repo string, since time.Time, sampleSize int) *LatencyStats {
	if sampleSize < MinLatencySample {
		sampleSize = MinLatencySample
	}
	if sampleSize > MaxLatencySample {
		sampleSize = MaxLatencySample
	}

	stats := &LatencyStats{
		MedianHours: make(map[string]float64),
		Submitted:   make(map[string]int),
		Display:     make(map[string]string),
	}

	prs, err := src.PullRequests(ctx, owner, repo, "closed", sampleSize)
	if err != nil {
		slog.Warn("Closed PR listing failed (no latency signal)", "error", err)
		return stats
	}

	hours := make(map[string][]float64)
	sampled := 0
	for _, pr := range prs {
		if sampled >= sampleSize {
			break
		}
		if pr.CreatedAt.Before(since) {
			continue
		}
		sampled++

		reviews, err := src.Reviews(ctx, owner, repo, pr.Number)
		if err != nil {
			slog.Warn("Review lookup failed for PR (skipping)", "pr", pr.Number, "error", err)
			continue
		}

		// Keep only each reviewer's earliest submission on this PR.
		earliest := make(map[string]time.Time)
		for _, review := range reviews {
			login := strings.ToLower(review.Author)
			if login == "" || src.IsBot(review.Author) {
				continue
			}
			if _, ok := stats.Display[login]; !ok {
				stats.Display[login] = review.Author
				stats.Order = append(stats.Order, login)
			}
			if cur, ok := earliest[login]; !ok || review.SubmittedAt.Before(cur) {
				earliest[login] = review.SubmittedAt
			}
		}

		for login, submittedAt := range earliest {
			stats.Submitted[login]++
			delta := submittedAt.Sub(pr.CreatedAt).Hours()
			if delta >= 0 {
				hours[login] = append(hours[login], delta)
			}
		}
	}

	for login, samples := range hours {
		stats.MedianHours[login] = median(samples)
	}

	return stats
}

// median returns the standard median: the middle value, or the average of
// the two middle values for an even-sized list.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
