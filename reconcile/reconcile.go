package reconcile

import (
	"context"
	"strings"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
)

// NoMatchToken is what the disambiguation model replies when none of the
// offered candidates fit.
const NoMatchToken = "NONE"

// Disambiguator picks one candidate value for an ambiguous raw string, or
// returns NoMatchToken. Implementations talk to an external model; the
// resolver treats any failure as a soft miss.
type Disambiguator interface {
	Disambiguate(ctx context.Context, raw, fieldName string, candidates []Candidate) (string, error)
}

// Result is the outcome of resolving one SELECT value. Raw always carries
// the original extracted string so callers can audit when a vocabulary
// substitution occurred versus a verbatim pass-through.
type Result struct {
	Value  *string
	Mapped bool
	Raw    string
}

// ResolveSelectValue maps a raw extracted string onto a SELECT field's
// vocabulary in two stages. Stage one generates fuzzy candidates; with no
// vocabulary at all the raw value passes through as-is, and with no
// candidate clearing the floor the value resolves to nothing. Stage two
// asks the disambiguator to pick among the candidates; an answer that is
// not one of the offered values, or any failure to reach the model, falls
// back silently to the top-scoring fuzzy candidate.
func ResolveSelectValue(ctx context.Context, raw, fieldName string, options []Option, disambiguator Disambiguator) Result {
	result := Result{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return result
	}

	if len(options) == 0 {
		result.Value = &trimmed
		return result
	}

	candidates := TopCandidates(trimmed, options)
	if len(candidates) == 0 {
		return result
	}

	chosen := candidates[0].Value
	if disambiguator != nil {
		answer, err := disambiguator.Disambiguate(ctx, trimmed, fieldName, candidates)
		if err != nil {
			logger := config.GetLogger()
			logger.WithField("field", fieldName).WithError(err).Warn("disambiguation unavailable, using fuzzy fallback")
		} else if value, ok := matchCandidateValue(answer, candidates); ok {
			chosen = value
		}
	}

	result.Value = &chosen
	result.Mapped = true
	return result
}

// matchCandidateValue accepts only an answer equal to one of the offered
// candidate values. Everything else, including NoMatchToken, is rejected.
func matchCandidateValue(answer string, candidates []Candidate) (string, bool) {
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(answer), "\"'`"))
	for _, candidate := range candidates {
		if strings.EqualFold(cleaned, candidate.Value) {
			return candidate.Value, true
		}
	}
	return "", false
}
