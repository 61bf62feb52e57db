// Package cleaner turns raw, possibly multi-line address text into a single
// comma-delimited line suitable for geocoder queries. It strips embedded
// personal data and repairs the punctuation damage typical of spreadsheet
// exports. Everything here is pure string work: no I/O, deterministic output.
package cleaner

import (
	"regexp"
	"sort"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	// Phone candidates: a digit run with optional separators and leading plus.
	// Candidates with fewer than 7 digits are kept (street numbers, postcodes).
	phoneRe  = regexp.MustCompile(`\+?\(?\d[\d()\s.\-]{5,}\d`)
	zipPlus4 = regexp.MustCompile(`^\d{5}-\d{4}$`)

	lineBreakRe  = regexp.MustCompile(`\r\n|\r|\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitRe      = regexp.MustCompile(`\d`)

	// Street suffix immediately followed by a capitalized word with no
	// separating punctuation ("Main St Springfield"): exported cells often
	// lose the comma between street and city.
	streetSuffixRe = regexp.MustCompile(`\b(Rd|Road|St|Street|Ave|Avenue|Blvd|Boulevard|Dr|Drive|Ln|Lane|Ct|Court|Pl|Place|Hwy|Highway|Ter|Terrace|Way)\.?\s+([A-Z][a-z])`)

	unitTokenRe = regexp.MustCompile(`(?i)\b(apartment|apt|suite|ste|unit|floor|fl)\b\.?\s*#?\s*([A-Za-z0-9][A-Za-z0-9\-]*)`)

	auStateRe = regexp.MustCompile(`(?i)\b(nsw|qld|vic|tas|act|nt|wa|sa)\b`)

	trailingCountryRe = regexp.MustCompile(`(?i)([^,\s])\s+(usa|us|u\.s\.a\.|united states|canada|australia|uk|united kingdom|gb|germany|france|italy|spain)\.?\s*$`)

	// "75008 Paris France" — postal code + locality running into a European
	// country name with the comma missing.
	euPostalCountryRe = regexp.MustCompile(`(\d{4,5}\s+\p{L}[\p{L}'\-]*)\s+((?i:france|germany|italy|spain|netherlands|belgium|austria|switzerland|portugal))\b`)

	doubleCommaRe   = regexp.MustCompile(`\s*,(\s*,)+`)
	trailingPunctRe = regexp.MustCompile(`[\s,.;:]+$`)
	commaSpaceFixRe = regexp.MustCompile(`\s*,\s*`)
	leadingCommaRe  = regexp.MustCompile(`^[\s,]+`)
)

// canonical unit tokens, lowercased match → output form
var unitCanonical = map[string]string{
	"apartment": "Apt",
	"apt":       "Apt",
	"suite":     "Suite",
	"ste":       "Suite",
	"unit":      "Unit",
	"floor":     "Floor",
	"fl":        "Floor",
}

// Long region names abbreviated to their standard codes. Lowercased keys.
var builtinRegions = map[string]string{
	"south carolina":               "SC",
	"north carolina":               "NC",
	"new hampshire":                "NH",
	"new jersey":                   "NJ",
	"new mexico":                   "NM",
	"new york":                     "NY",
	"north dakota":                 "ND",
	"south dakota":                 "SD",
	"rhode island":                 "RI",
	"west virginia":                "WV",
	"british columbia":             "BC",
	"nova scotia":                  "NS",
	"new south wales":              "NSW",
	"queensland":                   "QLD",
	"tasmania":                     "TAS",
	"northern territory":           "NT",
	"australian capital territory": "ACT",
	"western australia":            "WA",
	"south australia":              "SA",
}

type regionRule struct {
	re   *regexp.Regexp
	code string
}

// Cleaner applies the address cleaning passes. Extra region abbreviations can
// be supplied from the rules file; they are merged over the built-in table.
type Cleaner struct {
	regions []regionRule
}

// New builds a Cleaner. extraRegions may be nil.
func New(extraRegions map[string]string) *Cleaner {
	merged := make(map[string]string, len(builtinRegions)+len(extraRegions))
	for k, v := range builtinRegions {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range extraRegions {
		merged[strings.ToLower(k)] = strings.ToUpper(v)
	}

	// Longest names first so "western australia" is rewritten before a
	// shorter rule could touch part of it.
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	c := &Cleaner{regions: make([]regionRule, 0, len(names))}
	for _, name := range names {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			continue
		}
		c.regions = append(c.regions, regionRule{re: re, code: merged[name]})
	}
	return c
}

// Clean runs all passes over raw input and returns a single-line address.
// Empty input yields empty output.
func (c *Cleaner) Clean(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := stripPersonalData(raw)
	s = joinLines(s)
	s = streetSuffixRe.ReplaceAllString(s, "$1, $2")
	s = normalizeUnitTokens(s)
	s = c.abbreviateRegions(s)
	s = auStateRe.ReplaceAllStringFunc(s, strings.ToUpper)
	s = trailingCountryRe.ReplaceAllString(s, "$1, $2")
	s = euPostalCountryRe.ReplaceAllString(s, "$1, $2")

	s = doubleCommaRe.ReplaceAllString(s, ",")
	s = commaSpaceFixRe.ReplaceAllString(s, ", ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = leadingCommaRe.ReplaceAllString(s, "")
	s = trailingPunctRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripPersonalData removes email addresses and phone numbers. A phone is any
// separator-laced run of 7+ digits, except a US ZIP+4 which looks the same.
func stripPersonalData(s string) string {
	s = emailRe.ReplaceAllString(s, "")
	return phoneRe.ReplaceAllStringFunc(s, func(m string) string {
		if zipPlus4.MatchString(strings.TrimSpace(m)) {
			return m
		}
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 7 {
			return ""
		}
		return m
	})
}

// joinLines reflows multi-line input to one comma-separated line. When the
// first line has no digit but the second does, the first line is almost
// always a recipient name, not part of the address, and is dropped.
func joinLines(s string) string {
	rawLines := lineBreakRe.Split(s, -1)
	lines := make([]string, 0, len(rawLines))
	for _, ln := range rawLines {
		if t := strings.TrimSpace(ln); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) >= 2 && !digitRe.MatchString(lines[0]) && digitRe.MatchString(lines[1]) {
		lines = lines[1:]
	}
	return strings.Join(lines, ", ")
}

func normalizeUnitTokens(s string) string {
	return unitTokenRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := unitTokenRe.FindStringSubmatch(m)
		canon, ok := unitCanonical[strings.ToLower(sub[1])]
		if !ok {
			return m
		}
		return canon + " " + sub[2] + ","
	})
}

func (c *Cleaner) abbreviateRegions(s string) string {
	for _, r := range c.regions {
		s = r.re.ReplaceAllString(s, r.code)
	}
	return s
}
