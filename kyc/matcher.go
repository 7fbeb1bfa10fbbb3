package kyc

import (
	"fmt"
	"math"
	"strings"

	"github.com/rentbase/idverify/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// unitCost weighs insertions, deletions and substitutions equally.
var unitCost = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// Normalize trims, lowercases and collapses runs of whitespace to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity scores two strings from 0 (unrelated) to 100 (identical after normalization).
func Similarity(a, b string) int {
	ra := []rune(Normalize(a))
	rb := []rune(Normalize(b))

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 100
	}

	distance := levenshtein.DistanceForStrings(ra, rb, unitCost)
	score := int(math.Round(100 * float64(maxLen-distance) / float64(maxLen)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Thresholds are the confidence cut-offs used to turn a score into a verdict.
type Thresholds struct {
	Accept int `json:"accept"`
	Review int `json:"review"`
}

// DefaultThresholds accepts at 90 and sends anything from 70 to manual review.
func DefaultThresholds() Thresholds {
	return Thresholds{Accept: 90, Review: 70}
}

func (t Thresholds) Validate() error {
	if t.Review < 0 || t.Accept > 100 || t.Review > t.Accept {
		return fmt.Errorf("thresholds must satisfy 0 <= review (%d) <= accept (%d) <= 100", t.Review, t.Accept)
	}
	return nil
}

// NameMatcher compares a claimed full name against the name a provider returned.
type NameMatcher struct {
	Thresholds Thresholds
}

func NewNameMatcher(t Thresholds) (*NameMatcher, error) {
	if err := t.Validate(); err != nil {
		return nil, NewConfigurationError("", "invalid match thresholds", err)
	}
	return &NameMatcher{Thresholds: t}, nil
}

// Confidence joins first and last names on each side and scores them.
func (m *NameMatcher) Confidence(claimedFirst, claimedLast, returnedFirst, returnedLast string) int {
	claimed := Normalize(claimedFirst + " " + claimedLast)
	returned := Normalize(returnedFirst + " " + returnedLast)
	return Similarity(claimed, returned)
}

// Decide maps a confidence onto a verdict and a human readable reason.
func (m *NameMatcher) Decide(confidence int) (model.VerificationStatus, string) {
	switch {
	case confidence == 100:
		return model.StatusVerified, "exact name match"
	case confidence >= m.Thresholds.Accept:
		return model.StatusVerified, fmt.Sprintf("name match with confidence %d", confidence)
	case confidence >= m.Thresholds.Review:
		return model.StatusNeedsReview, fmt.Sprintf("partial name match with confidence %d, manual review required", confidence)
	default:
		return model.StatusRejected, fmt.Sprintf("name mismatch with confidence %d", confidence)
	}
}
