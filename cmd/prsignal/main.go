// Package main implements a CLI tool that suggests reviewers for a GitHub
// pull request and optionally posts the triage advisory comment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/advise"
	"github.com/prsignal-dev/prsignal/pkg/github"
	"github.com/prsignal-dev/prsignal/pkg/i18n"
	"github.com/prsignal-dev/prsignal/pkg/rank"
)

// tzUnset marks the -tz flag as not provided.
const tzUnset = 99

var (
	prURL        = flag.String("pr", "", "Pull request URL (e.g., https://github.com/owner/repo/pull/123 or owner/repo#123)")
	verbose      = flag.Bool("v", false, "Verbose output with detailed diagnostics")
	maxReviewers = flag.Int("max-reviewers", 3, "Maximum number of reviewers to suggest")
	lookbackDays = flag.Int("lookback-days", 90, "How far back to scan commit history")
	maxFiles     = flag.Int("max-files", 50, "Maximum changed files to consider")
	latencyPRs   = flag.Int("latency-prs", 20, "Closed PRs to sample for latency statistics")
	preferTZ     = flag.Int("tz", tzUnset, "Prefer reviewers near this UTC offset (e.g., -5)")
	exclude      = flag.String("exclude", "", "Comma-separated logins to exclude")
	require      = flag.String("require", "", "Comma-separated logins to always include")
	crossRepos   = flag.String("cross-repos", "", "Comma-separated owner/repo pairs for cross-repo signals")
	noCodeowners = flag.Bool("no-codeowners", false, "Skip CODEOWNERS matching")
	noLatency    = flag.Bool("no-latency", false, "Skip review latency statistics")
	noLoad       = flag.Bool("no-load", false, "Skip the open-review load penalty")
	flaky        = flag.Bool("flaky", false, "Detect and penalize flaky reviewers")
	breakdown    = flag.Bool("breakdown", false, "Show per-candidate score breakdown")
	lang         = flag.String("lang", "en", "Advisory language (en, es, de)")
	post         = flag.Bool("post", false, "Post or update the advisory comment on the PR")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -pr <PR_URL> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Analyzes a GitHub pull request and suggests the best-fit reviewers.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -pr https://github.com/owner/repo/pull/123\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pr owner/repo#123 -breakdown\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pr owner/repo#123 -post -lang es\n", os.Args[0])
	}
	flag.Parse()

	if *prURL == "" {
		flag.Usage()
		os.Exit(1)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	owner, repo, prNumber, err := parsePRURL(*prURL)
	if err != nil {
		slog.Error("Invalid PR URL", "error", err)
		os.Exit(1)
	}

	client, err := github.New(ctx, github.Config{
		HTTPTimeout: 30 * time.Second,
		CacheTTL:    10 * time.Minute,
	})
	if err != nil {
		slog.Error("Failed to create GitHub client", "error", err)
		slog.Info("Make sure you have the gh CLI installed and authenticated (run: gh auth login)")
		os.Exit(1)
	}

	opts := buildOptions()
	engine := rank.New(client, opts)

	slog.Info("Fetching PR details", "owner", owner, "repo", repo, "number", prNumber)
	pr, err := client.PullRequest(ctx, owner, repo, prNumber)
	if err != nil {
		slog.Error("Failed to fetch PR", "error", err)
		os.Exit(1)
	}

	reviews, err := client.Reviews(ctx, owner, repo, prNumber)
	if err != nil {
		slog.Warn("Failed to fetch reviews, continuing without them", "error", err)
	}

	fmt.Printf("\nPull Request: %s/%s#%d\n", owner, repo, prNumber)
	fmt.Printf("  Title: %s\n", pr.Title)
	fmt.Printf("  Author: %s\n", pr.Author)
	size := advise.BucketSize(pr.ChangedFiles, advise.DefaultSizeThresholds())
	fmt.Printf("  Size: %s (%d files)\n", size.Format(), len(pr.ChangedFiles))
	if pr.Draft {
		fmt.Printf("  Draft: yes\n")
	}
	fmt.Println()

	result, err := engine.Rank(ctx, rank.Input{
		Now:          time.Now(),
		Owner:        owner,
		Repo:         repo,
		Author:       pr.Author,
		Number:       prNumber,
		ChangedFiles: pr.ChangedFiles,
		Reviews:      reviews,
	})
	if err != nil {
		slog.Error("Failed to rank reviewers", "error", err)
		os.Exit(1)
	}

	printResult(result)

	if *post {
		body := advise.RenderComment(advise.CommentInput{
			Ranking:       result,
			Lang:          i18n.ParseLang(*lang),
			Size:          size,
			Stall:         advise.ClassifyStall(reviews),
			ShowBreakdown: *breakdown,
		})
		if err := upsertComment(ctx, client, owner, repo, prNumber, body); err != nil {
			slog.Error("Failed to post advisory comment", "error", err)
			os.Exit(1)
		}
		fmt.Println("Advisory comment posted.")
	}
}

func buildOptions() rank.Options {
	opts := rank.DefaultOptions()
	opts.MaxReviewers = *maxReviewers
	opts.LookbackDays = *lookbackDays
	opts.MaxFilesConsidered = *maxFiles
	opts.LatencyPRs = *latencyPRs
	opts.UseCodeowners = !*noCodeowners
	opts.UseLatency = !*noLatency
	opts.PenalizeLoad = !*noLoad
	opts.DetectFlaky = *flaky
	opts.ShowBreakdown = *breakdown
	opts.ExcludeReviewers = splitList(*exclude)
	opts.RequiredReviewers = splitList(*require)
	opts.CrossRepos = splitList(*crossRepos)
	if *preferTZ != tzUnset {
		tz := *preferTZ
		opts.PreferTimezone = &tz
	}
	return opts
}

func printResult(result *rank.Result) {
	if result.NoStrongCandidates {
		fmt.Println("No strong reviewer candidates found.")
		fmt.Printf("Confidence: %s\n", result.Confidence)
		return
	}

	fmt.Printf("Suggested reviewers (confidence: %s):\n\n", result.Confidence)
	for i, c := range result.Candidates {
		fmt.Printf("%d. @%s\n", i+1, c.Login)
		if *breakdown {
			fmt.Printf("   Score: %d\n", c.Score)
			fmt.Printf("   Reasons: %s\n", strings.Join(c.Reasons, ", "))
		}
		if c.OpenReviews != nil {
			fmt.Printf("   Open reviews: %d\n", *c.OpenReviews)
		}
		fmt.Println()
	}

	if len(result.TeamCoverage) > 0 && *breakdown {
		fmt.Println("Team coverage:")
		for team, count := range result.TeamCoverage {
			fmt.Printf("  %s: %d\n", team, count)
		}
	}
}

// upsertComment updates the existing advisory comment or creates a new one.
func upsertComment(ctx context.Context, client *github.Client, owner, repo string, prNumber int, body string) error {
	comments, err := client.IssueComments(ctx, owner, repo, prNumber)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}

	bodies := make([]string, 0, len(comments))
	for _, c := range comments {
		bodies = append(bodies, c.Body)
	}
	if idx := advise.FindMarked(bodies); idx >= 0 {
		return client.UpdateComment(ctx, owner, repo, comments[idx].ID, body)
	}
	return client.CreateComment(ctx, owner, repo, prNumber, body)
}

// parsePRURL parses a PR URL or shorthand into owner, repo, and PR number.
func parsePRURL(url string) (owner, repo string, prNumber int, err error) {
	// Shorthand: owner/repo#123
	if strings.Contains(url, "#") && !strings.Contains(url, "://") {
		parts := strings.Split(url, "#")
		if len(parts) != 2 {
			return "", "", 0, fmt.Errorf("invalid PR shorthand format (expected owner/repo#number)")
		}
		repoPath := strings.Split(parts[0], "/")
		if len(repoPath) != 2 {
			return "", "", 0, fmt.Errorf("invalid repository path (expected owner/repo)")
		}
		if _, err := fmt.Sscanf(parts[1], "%d", &prNumber); err != nil {
			return "", "", 0, fmt.Errorf("invalid PR number: %w", err)
		}
		return repoPath[0], repoPath[1], prNumber, nil
	}

	// Full URL: https://github.com/owner/repo/pull/123
	if strings.HasPrefix(url, "https://github.com/") || strings.HasPrefix(url, "http://github.com/") {
		url = strings.TrimPrefix(url, "https://github.com/")
		url = strings.TrimPrefix(url, "http://github.com/")
		parts := strings.Split(url, "/")
		if len(parts) < 4 || parts[2] != "pull" {
			return "", "", 0, fmt.Errorf("invalid GitHub PR URL format")
		}
		if _, err := fmt.Sscanf(parts[3], "%d", &prNumber); err != nil {
			return "", "", 0, fmt.Errorf("invalid PR number: %w", err)
		}
		return parts[0], parts[1], prNumber, nil
	}

	return "", "", 0, fmt.Errorf("invalid PR URL format (use: https://github.com/owner/repo/pull/123 or owner/repo#123)")
}

// splitList splits a comma-separated flag value into trimmed entries.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
