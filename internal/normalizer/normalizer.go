// Package normalizer produces the exact query string sent to geocoders: the
// cleaned address with the detected country appended when it is not already
// present textually.
package normalizer

import (
	"regexp"
	"strings"
)

// Any supported country's name or abbreviation. If one of these already
// appears as a token, appending the detected code would just duplicate it.
var anyCountryRe = regexp.MustCompile(`(?i)\b(usa|us|united states|canada|ca|gb|uk|united kingdom|au|australia|de|germany|fr|france|it|italy|es|spain)\b`)

// Normalize appends ", <code>" to the cleaned address unless a country token
// is already present. Normalizing an already-normalized string is a no-op.
func Normalize(cleaned, countryCode string) string {
	if cleaned == "" || countryCode == "" {
		return cleaned
	}
	if anyCountryRe.MatchString(cleaned) {
		return cleaned
	}
	codeRe, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(countryCode) + `\b`)
	if err == nil && codeRe.MatchString(cleaned) {
		return cleaned
	}
	return cleaned + ", " + strings.ToUpper(countryCode)
}

// StripUnitTokens removes unit/apartment designators from a normalized
// address. Some search backends return nothing for queries carrying an
// "Apt 4B" style suffix, so the orchestrator retries without them.
var unitRe = regexp.MustCompile(`(?i)\b(apt|apartment|suite|ste|unit|floor|fl)\b\.?\s*#?\s*[A-Za-z0-9\-]+,?\s*`)

func StripUnitTokens(normalized string) string {
	s := unitRe.ReplaceAllString(normalized, "")
	s = regexp.MustCompile(`\s*,(\s*,)+`).ReplaceAllString(s, ",")
	s = regexp.MustCompile(`\s{2,}`).ReplaceAllString(s, " ")
	s = strings.Trim(s, " ,")
	return s
}
