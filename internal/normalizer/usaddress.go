package normalizer

import "regexp"

// USAddress holds the components extracted from a US-pattern address line.
type USAddress struct {
	Street string
	City   string
	State  string
	Zip    string
}

// "<street>, <city>, <ST> <zip>" with an optional trailing country token.
// Street may itself contain commas (unit designators); city may not.
var usPatternRe = regexp.MustCompile(`^(.+?),\s*([^,]+?),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)(?:,\s*(?:US|USA|United States))?$`)

// ParseUS extracts street/city/state/zip from a normalized US-pattern string.
// It returns nil when the pattern does not match; callers must treat nil as
// "cannot use a structured query".
func ParseUS(normalized string) *USAddress {
	m := usPatternRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}
	return &USAddress{Street: m[1], City: m[2], State: m[3], Zip: m[4]}
}
