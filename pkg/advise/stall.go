package advise

import (
	"strings"

	"github.com/prsignal-dev/prsignal/pkg/types"
)

// ClassifyStall derives the current blocker for an open pull request from
// its prior review events. The latest non-dismissed review per reviewer
// decides; a pending change request outweighs approvals.
func ClassifyStall(reviews []types.Review) types.StallCause {
	latest := make(map[string]string)
	for _, review := range reviews {
		login := strings.ToLower(review.Author)
		if login == "" {
			continue
		}
		switch review.State {
		case "APPROVED", "CHANGES_REQUESTED":
			latest[login] = review.State
		case "DISMISSED":
			delete(latest, login)
		}
	}

	approved := false
	for _, state := range latest {
		if state == "CHANGES_REQUESTED" {
			return types.StallChangesRequested
		}
		if state == "APPROVED" {
			approved = true
		}
	}
	if approved {
		return types.StallApprovedUnmerged
	}
	if len(reviews) == 0 {
		return types.StallAwaitingReview
	}
	return types.StallNone
}
