// Package main implements a GitHub App bot that posts reviewer-suggestion
// advisories on pull requests as events arrive for a single organization.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prsignal-dev/prsignal/pkg/advise"
	"github.com/prsignal-dev/prsignal/pkg/github"
	"github.com/prsignal-dev/prsignal/pkg/i18n"
	"github.com/prsignal-dev/prsignal/pkg/rank"
)

var (
	// GitHub App authentication flags.
	appID      = flag.String("app-id", "", "GitHub App ID for authentication")
	appKeyPath = flag.String("app-key-path", "", "Path to GitHub App private key file")
	token      = flag.String("token", "", "Personal access token (instead of App auth)")

	// Behavior flags.
	org       = flag.String("org", "", "Organization to monitor (required)")
	lang      = flag.String("lang", "en", "Advisory language (en, es, de)")
	breakdown = flag.Bool("breakdown", false, "Include score breakdown in advisories")
	dryRun    = flag.Bool("dry-run", false, "Analyze PRs but do not post comments")
	verbose   = flag.Bool("v", false, "Verbose output with detailed diagnostics")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -org <organization> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "GitHub App bot that posts reviewer-suggestion advisories on incoming PRs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_ID       - GitHub App ID\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_KEY      - GitHub App private key content\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_APP_KEY_PATH - Path to GitHub App private key file\n")
		fmt.Fprintf(os.Stderr, "  GITHUB_TOKEN        - Personal access token\n")
	}
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *org == "" {
		slog.Error("Organization is required")
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	useAppAuth := *token == "" && os.Getenv("GITHUB_TOKEN") == ""
	client, err := github.New(ctx, github.Config{
		UseAppAuth:  useAppAuth,
		AppID:       *appID,
		AppKeyPath:  *appKeyPath,
		Token:       *token,
		Org:         *org,
		HTTPTimeout: 30 * time.Second,
		CacheTTL:    10 * time.Minute,
	})
	if err != nil {
		slog.Error("Failed to create GitHub client", "error", err)
		os.Exit(1)
	}

	bot := &Bot{
		client: client,
		opts:   rank.DefaultOptions(),
		lang:   i18n.ParseLang(*lang),
		dryRun: *dryRun,
	}
	bot.opts.ShowBreakdown = *breakdown

	monitor := newEventMonitor(bot, *org)
	if err := monitor.start(ctx); err != nil {
		slog.Error("Failed to start event monitor", "error", err)
		os.Exit(1)
	}

	slog.Info("Bot running", "org", *org, "dry_run", *dryRun)
	<-ctx.Done()
	monitor.stop()
	slog.Info("Bot stopped")
}

// Bot analyzes pull requests and maintains their advisory comments.
type Bot struct {
	client *github.Client
	lang   i18n.Lang
	opts   rank.Options
	dryRun bool
}

// processPR analyzes one pull request and upserts its advisory comment.
func (b *Bot) processPR(ctx context.Context, owner, repo string, number int) error {
	pr, err := b.client.PullRequest(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("failed to fetch PR: %w", err)
	}

	if pr.State != "open" {
		slog.Debug("Skipping closed PR", "owner", owner, "repo", repo, "pr", number)
		return nil
	}
	if pr.Draft {
		slog.Debug("Skipping draft PR", "owner", owner, "repo", repo, "pr", number)
		return nil
	}

	reviews, err := b.client.Reviews(ctx, owner, repo, number)
	if err != nil {
		slog.Warn("Failed to fetch reviews, continuing without them",
			"owner", owner, "repo", repo, "pr", number, "error", err)
	}

	engine := rank.New(b.client, b.opts)
	result, err := engine.Rank(ctx, rank.Input{
		Now:          time.Now(),
		Owner:        owner,
		Repo:         repo,
		Author:       pr.Author,
		Number:       number,
		ChangedFiles: pr.ChangedFiles,
		Reviews:      reviews,
	})
	if err != nil {
		return fmt.Errorf("failed to rank reviewers: %w", err)
	}

	body := advise.RenderComment(advise.CommentInput{
		Ranking:       result,
		Lang:          b.lang,
		Size:          advise.BucketSize(pr.ChangedFiles, advise.DefaultSizeThresholds()),
		Stall:         advise.ClassifyStall(reviews),
		ShowBreakdown: b.opts.ShowBreakdown,
	})

	if b.dryRun {
		slog.Info("Dry run, skipping comment",
			"owner", owner, "repo", repo, "pr", number,
			"candidates", len(result.Candidates), "confidence", result.Confidence)
		return nil
	}

	return b.upsertComment(ctx, owner, repo, number, body)
}

// upsertComment updates the existing advisory comment or creates a new one.
func (b *Bot) upsertComment(ctx context.Context, owner, repo string, number int, body string) error {
	comments, err := b.client.IssueComments(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}

	bodies := make([]string, 0, len(comments))
	for _, c := range comments {
		bodies = append(bodies, c.Body)
	}
	if idx := advise.FindMarked(bodies); idx >= 0 {
		slog.Info("Updating advisory comment", "owner", owner, "repo", repo, "pr", number, "comment_id", comments[idx].ID)
		return b.client.UpdateComment(ctx, owner, repo, comments[idx].ID, body)
	}

	slog.Info("Creating advisory comment", "owner", owner, "repo", repo, "pr", number)
	return b.client.CreateComment(ctx, owner, repo, number, body)
}
