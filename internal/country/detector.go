// Package country infers an ISO-2 country code from cleaned address text.
// Detection is an ordered cascade of string heuristics: name keywords first,
// then the ambiguous "CA" token, then postal-code shapes. First match wins,
// so rule order is part of the contract.
package country

import (
	"regexp"
	"strings"
)

type keywordRule struct {
	re   *regexp.Regexp
	code string
}

// Built-in keyword cascade. "California" maps to US before the literal "CA"
// token is even considered; "Canada" outranks everything because a Canadian
// address with a US-looking street line is the common confusion.
var builtinKeywords = []keywordRule{
	{regexp.MustCompile(`(?i)\bcanada\b`), "CA"},
	{regexp.MustCompile(`(?i)\bcalifornia\b`), "US"},
	{regexp.MustCompile(`(?i)\bfrance\b`), "FR"},
	{regexp.MustCompile(`(?i)\b(usa|u\.s\.a\.|united states|us)\b`), "US"},
	{regexp.MustCompile(`(?i)\baustralia\b`), "AU"},
	{regexp.MustCompile(`(?i)\b(uk|united kingdom|gb|great britain)\b`), "GB"},
	{regexp.MustCompile(`(?i)\bgermany\b`), "DE"},
	{regexp.MustCompile(`(?i)\bitaly\b`), "IT"},
	{regexp.MustCompile(`(?i)\bspain\b`), "ES"},
}

var (
	caToken       = regexp.MustCompile(`\bCA\b`)
	caTokenZip    = regexp.MustCompile(`\bCA\b[,\s]+\d{5}\b`)
	usStateZip    = regexp.MustCompile(`\b[A-Z]{2}[,\s]+\d{5}(-\d{4})?\b\s*$`)
	auStateAbbrev = regexp.MustCompile(`(?i)\b(NSW|QLD|VIC|TAS|ACT|NT|WA|SA)\b`)
	auFourDigit   = regexp.MustCompile(`\b\d{4}\b`)
)

// Detector resolves the country for one cleaned address line. Custom keyword
// rules from a rules file are appended after the built-in cascade so they can
// extend coverage without reordering it.
type Detector struct {
	keywords []keywordRule
}

// NewDetector builds a detector with the built-in cascade plus any extra
// keyword rules (typically loaded from a YAML rules file).
func NewDetector(extra []KeywordRule) *Detector {
	d := &Detector{keywords: append([]keywordRule{}, builtinKeywords...)}
	for _, r := range extra {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(r.Match)) + `\b`)
		if err != nil {
			continue
		}
		d.keywords = append(d.keywords, keywordRule{re: re, code: strings.ToUpper(r.Country)})
	}
	return d
}

// Detect returns the ISO-2 country code for the address, or "". An explicit
// country wins unconditionally; otherwise the cascade runs top to bottom and
// falls back to defaultCountry.
func (d *Detector) Detect(address, explicit, defaultCountry string) string {
	if c := strings.ToUpper(strings.TrimSpace(explicit)); c != "" {
		return c
	}

	for _, kw := range d.keywords {
		if kw.re.MatchString(address) {
			return kw.code
		}
	}

	// The bare "CA" token is ambiguous between California and Canada. A
	// following 5-digit ZIP settles it as US; a Canadian postal shape
	// anywhere in the line settles it as CA.
	if caToken.MatchString(address) {
		if caTokenZip.MatchString(address) {
			return "US"
		}
		if caPostalLoose.MatchString(address) {
			return "CA"
		}
	}

	if usStateZip.MatchString(address) {
		return "US"
	}
	if caPostalLoose.MatchString(address) {
		return "CA"
	}
	if gbPostalLoose.MatchString(address) {
		return "GB"
	}
	if auFourDigit.MatchString(address) && auStateAbbrev.MatchString(address) {
		return "AU"
	}

	return strings.ToUpper(strings.TrimSpace(defaultCountry))
}
