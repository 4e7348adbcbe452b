// Package types contains shared data structures used across the advisory system.
//
//nolint:revive // "types" is a standard Go package name for shared data structures
package types

import "time"

// PullRequest represents a pull request as fetched from the hosting API.
type PullRequest struct {
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           time.Time
	Title              string
	State              string // "open" or "closed"
	Author             string
	Owner              string
	Repository         string
	ChangedFiles       []ChangedFile
	RequestedReviewers []string // reviewers still pending, not yet submitted
	Number             int
	Draft              bool
}

// ChangedFile represents a file changed in a pull request.
type ChangedFile struct {
	Path      string
	Additions int
	Deletions int
}

// Review represents a single submitted review event on a pull request.
type Review struct {
	SubmittedAt time.Time
	Author      string
	State       string // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", "DISMISSED"
}

// Commit is a single commit attribution record for a path.
type Commit struct {
	AuthoredAt time.Time
	Author     string // login; empty when the commit has no linked account
}

// RankedCandidate is one scored reviewer suggestion.
// Reasons preserve the order in which signals were credited.
type RankedCandidate struct {
	Login       string
	Reasons     []string
	OpenReviews *int // nil when load was not computed
	Score       int
}

// Confidence is a coarse label for how trustworthy a ranking is.
type Confidence string

// Confidence levels, derived from score separation and signal coverage.
const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// StallCause classifies why a pull request is not moving.
type StallCause string

// Stall causes, in rough order of actionability.
const (
	StallNone             StallCause = ""
	StallChangesRequested StallCause = "changes-requested"
	StallApprovedUnmerged StallCause = "approved-unmerged"
	StallAwaitingReview   StallCause = "awaiting-review"
)
