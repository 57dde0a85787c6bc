package findings

import (
	"context"
	"fmt"
	"sort"
)

// Deduplicator is an interface for deduplication strategies
type Deduplicator interface {
	Deduplicate(ctx context.Context, findings []Finding) ([]Finding, error)
}

// TieBreak decides which record wins when merged findings share the top severity
type TieBreak string

// Tie-break policies
const (
	TieBreakFirst TieBreak = "first"
	TieBreakLast  TieBreak = "last"
)

// ParseTieBreak parses a tie-break policy, defaulting to first when empty
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case "", TieBreakFirst:
		return TieBreakFirst, nil
	case TieBreakLast:
		return TieBreakLast, nil
	default:
		return "", fmt.Errorf("invalid tie-break policy: %s", s)
	}
}

// KeyDeduplicator collapses findings that share an identity key.
// The most severe record wins; its tags are unioned with every merged record.
type KeyDeduplicator struct {
	Policy TieBreak
}

// Deduplicate merges findings by identity key, preserving first-appearance order
func (d KeyDeduplicator) Deduplicate(ctx context.Context, findings []Finding) ([]Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	index := make(map[IdentityKey]int, len(findings))
	result := make([]Finding, 0, len(findings))

	for _, f := range findings {
		occurrences := f.Occurrences
		if occurrences < 1 {
			occurrences = 1
		}

		i, seen := index[f.IdentityKey]
		if !seen {
			f.Tags = MergeTags(f.Tags)
			f.Occurrences = occurrences
			index[f.IdentityKey] = len(result)
			result = append(result, f)
			continue
		}

		current := result[i]
		winner := current
		if d.replaces(current, f) {
			winner = f
		}
		winner.Tags = MergeTags(current.Tags, f.Tags)
		winner.Occurrences = current.Occurrences + occurrences
		winner.FirstSeenRunID = earliest(current.FirstSeenRunID, f.FirstSeenRunID)
		result[i] = winner
	}

	return result, nil
}

// replaces reports whether candidate should replace the current representative
func (d KeyDeduplicator) replaces(current, candidate Finding) bool {
	cr, nr := current.Severity.Rank(), candidate.Severity.Rank()
	if nr != cr {
		return nr > cr
	}
	return d.Policy == TieBreakLast
}

func earliest(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// Merge combines multiple finding arrays, deduplicates them by identity, and
// sorts the result most severe first
func Merge(findingArrays ...[]Finding) []Finding {
	merged, _ := MergeWithContext(context.Background(), nil, findingArrays...)
	return merged
}

// MergeWithContext combines multiple finding arrays and deduplicates them.
// A nil deduplicator uses KeyDeduplicator with the default policy.
func MergeWithContext(ctx context.Context, deduplicator Deduplicator, findingArrays ...[]Finding) ([]Finding, error) {
	var all []Finding
	for _, findings := range findingArrays {
		all = append(all, findings...)
	}

	if deduplicator == nil {
		deduplicator = KeyDeduplicator{Policy: TieBreakFirst}
	}

	merged, err := deduplicator.Deduplicate(ctx, all)
	if err != nil {
		return nil, err
	}

	sort.Stable(BySeverity(merged))
	return merged, nil
}
