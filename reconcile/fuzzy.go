package reconcile

import (
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
)

// SimilarityFloor is the minimum 0-100 score a vocabulary label must reach
// before it is considered a candidate at all. Below the floor the value is
// dropped rather than guessed.
const SimilarityFloor = 40

// MaxCandidates caps how many scored labels are offered to the
// disambiguation model.
const MaxCandidates = 5

// containmentMinLength keeps the substring bonus from firing on scraps of
// OCR noise: a one or two character raw string is contained in almost any
// label.
const containmentMinLength = 3

// Option is one entry of a SELECT field's vocabulary.
type Option struct {
	Value string
	Label string
}

// Candidate is a vocabulary option that scored at or above the floor.
type Candidate struct {
	Value string
	Label string
	Score int
}

func OptionsFromField(fieldOptions []*models.FieldOption) []Option {
	options := make([]Option, 0, len(fieldOptions))
	for _, o := range fieldOptions {
		options = append(options, Option{Value: o.OptionValue, Label: o.OptionLabel})
	}
	return options
}

func OptionsFromSubField(subFieldOptions []*models.SubTemplateFieldOption) []Option {
	options := make([]Option, 0, len(subFieldOptions))
	for _, o := range subFieldOptions {
		options = append(options, Option{Value: o.OptionValue, Label: o.OptionLabel})
	}
	return options
}

var (
	jaroWinkler  = metrics.NewJaroWinkler()
	sorensenDice = metrics.NewSorensenDice()
)

// ScoreLabel rates how well a vocabulary label matches the raw extracted
// string on a 0-100 scale. Edit-distance style similarity is blended with
// a bigram overlap so both typos and word reordering score reasonably.
func ScoreLabel(raw, label string) int {
	a := strings.ToLower(strings.TrimSpace(raw))
	b := strings.ToLower(strings.TrimSpace(label))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	score := 0.6*strutil.Similarity(a, b, jaroWinkler) + 0.4*strutil.Similarity(a, b, sorensenDice)
	if len(a) >= containmentMinLength && (strings.Contains(b, a) || strings.Contains(a, b)) {
		score = math.Max(score, 0.9)
	}
	return int(math.Round(score * 100))
}

// TopCandidates scores every vocabulary label against the raw string and
// returns at most MaxCandidates entries at or above SimilarityFloor, best
// first. Ties break on label so the result is stable.
func TopCandidates(raw string, options []Option) []Candidate {
	var candidates []Candidate
	for _, option := range options {
		score := ScoreLabel(raw, option.Label)
		if score >= SimilarityFloor {
			candidates = append(candidates, Candidate{
				Value: option.Value,
				Label: option.Label,
				Score: score,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Label < candidates[j].Label
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}
