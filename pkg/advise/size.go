// Package advise turns engine output and pull-request metadata into the
// user-facing advisory: change-size bucketing, stall classification, and
// the idempotent triage comment. It formats and classifies only; it never
// fetches data or scores candidates.
package advise

import (
	"fmt"

	"github.com/prsignal-dev/prsignal/pkg/types"
)

// Size is a T-shirt size bucket for a change.
type Size string

// Size buckets from smallest to largest.
const (
	SizeXS Size = "XS"
	SizeS  Size = "S"
	SizeM  Size = "M"
	SizeL  Size = "L"
	SizeXL Size = "XL"
)

// SizeThresholds holds the inclusive upper bounds for each bucket; anything
// above L is XL.
type SizeThresholds struct {
	XS int
	S  int
	M  int
	L  int
}

// DefaultSizeThresholds returns the standard bucket bounds.
func DefaultSizeThresholds() SizeThresholds {
	return SizeThresholds{XS: 10, S: 50, M: 200, L: 600}
}

// SizeResult is a bucketed change size with its totals.
type SizeResult struct {
	Size      Size
	Additions int
	Deletions int
}

// Format renders the result as e.g. "M+120/-40".
func (r SizeResult) Format() string {
	return fmt.Sprintf("%s+%d/-%d", r.Size, r.Additions, r.Deletions)
}

// BucketSize classifies the total change volume of the given files.
func BucketSize(files []types.ChangedFile, thresholds SizeThresholds) SizeResult {
	additions, deletions := 0, 0
	for _, f := range files {
		additions += f.Additions
		deletions += f.Deletions
	}

	total := additions + deletions
	var size Size
	switch {
	case total <= thresholds.XS:
		size = SizeXS
	case total <= thresholds.S:
		size = SizeS
	case total <= thresholds.M:
		size = SizeM
	case total <= thresholds.L:
		size = SizeL
	default:
		size = SizeXL
	}

	return SizeResult{Size: size, Additions: additions, Deletions: deletions}
}
