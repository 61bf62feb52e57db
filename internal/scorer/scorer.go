// Package scorer maps a geocoder response onto a 0-100 confidence score and
// the status label derived from it. The arithmetic is fixed: downstream
// consumers compare scores across providers, so every bonus and penalty must
// stay exactly as calibrated.
package scorer

import (
	"strings"

	"address-verifier/internal/country"
	"address-verifier/internal/models"
)

// Options carries the optional scoring inputs.
type Options struct {
	// InputPostal is the postal code supplied with the input row, used for
	// cross-validation against the code the provider found.
	InputPostal string
	// Confidence is the secondary provider's own 0-10 confidence signal.
	// Nil for the primary provider.
	Confidence *int
}

// Compute returns the confidence score for one provider response.
//
// Base by match level, then bonuses for usable coordinates, a valid found
// postal code, and an exact match against the input's postal code. The
// validity bonus and the exact-match bonus stack deliberately. A flat +10
// rewards any successful response; 4+ candidates cost 15 for ambiguity.
// Single clamp to [0,100] at the end.
func Compute(level models.MatchLevel, reverseOK bool, candidates int, postal, countryCode string, opts Options) int {
	score := 0

	switch level {
	case models.MatchHouse:
		score += 50
	case models.MatchStreet:
		score += 35
	case models.MatchLocality:
		score += 20
	}

	if reverseOK {
		score += 20
	}

	postalValid := postal != "" && country.ValidPostal(countryCode, postal)
	if postalValid {
		score += 10
	}
	if opts.InputPostal != "" && postal != "" &&
		country.ValidPostal(countryCode, opts.InputPostal) &&
		strings.EqualFold(postal, opts.InputPostal) {
		score += 15
	}

	score += 10
	if candidates >= 4 {
		score -= 15
	}

	if opts.Confidence != nil {
		c := *opts.Confidence
		if c < 0 {
			c = 0
		}
		if c > 10 {
			c = 10
		}
		score += c
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// StatusForScore applies the threshold rule: 80 and above is valid, 60-79 is
// ambiguous, everything below is not_found. Lookup failures override this to
// error at the orchestrator level.
func StatusForScore(score int) models.Status {
	switch {
	case score >= 80:
		return models.StatusValid
	case score >= 60:
		return models.StatusAmbiguous
	default:
		return models.StatusNotFound
	}
}
