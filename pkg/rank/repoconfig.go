package rank

import (
	"context"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/prsignal-dev/prsignal/pkg/signals"
)

// RepoConfigPath is where a repository can override engine options.
const RepoConfigPath = ".github/prsignal.yml"

// repoConfig holds repository-level overrides. Pointer fields distinguish
// "unset" from an explicit zero.
type repoConfig struct {
	MaxReviewers      *int     `yaml:"max_reviewers,omitempty"`
	LookbackDays      *int     `yaml:"lookback_days,omitempty"`
	DetectFlaky       *bool    `yaml:"detect_flaky,omitempty"`
	ExcludeReviewers  []string `yaml:"exclude_reviewers,omitempty"`
	RequiredReviewers []string `yaml:"required_reviewers,omitempty"`
	CrossRepos        []string `yaml:"cross_repos,omitempty"`
}

// loadRepoConfig fetches and parses the repository-level config file.
// A missing or unparsable file degrades to an empty config, never an error.
func loadRepoConfig(ctx context.Context, src signals.Source, owner, repo string) repoConfig {
	var cfg repoConfig

	content, err := src.FileContent(ctx, owner, repo, RepoConfigPath)
	if err != nil {
		slog.Debug("No repository config", "path", RepoConfigPath, "error", err)
		return cfg
	}

	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		slog.Warn("Unparsable repository config (using defaults)", "path", RepoConfigPath, "error", err)
		return repoConfig{}
	}

	return cfg
}

// overlay applies repository-level overrides onto opts. Exclusion,
// required-reviewer and cross-repo lists merge; scalar fields override only
// when set.
func (c repoConfig) overlay(opts Options) Options {
	if c.MaxReviewers != nil && *c.MaxReviewers > 0 {
		opts.MaxReviewers = *c.MaxReviewers
	}
	if c.LookbackDays != nil && *c.LookbackDays > 0 {
		opts.LookbackDays = *c.LookbackDays
	}
	if c.DetectFlaky != nil {
		opts.DetectFlaky = *c.DetectFlaky
	}
	opts.ExcludeReviewers = append(append([]string(nil), opts.ExcludeReviewers...), c.ExcludeReviewers...)
	opts.RequiredReviewers = append(append([]string(nil), opts.RequiredReviewers...), c.RequiredReviewers...)
	opts.CrossRepos = append(append([]string(nil), opts.CrossRepos...), c.CrossRepos...)
	return opts
}
