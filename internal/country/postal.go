package country

import "regexp"

// Postal code shapes per supported country. The anchored forms validate a
// standalone code; the loose forms find the same shape embedded in a longer
// address line, which the detector uses as a country signal.
var (
	usPostal = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	caPostal = regexp.MustCompile(`^[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d$`)
	auPostal = regexp.MustCompile(`^\d{4}$`)
	gbPostal = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}$`)

	caPostalLoose = regexp.MustCompile(`\b[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d\b`)
	gbPostalLoose = regexp.MustCompile(`(?i)\b[A-Z]{1,2}\d[A-Z\d]?\s*\d[A-Z]{2}\b`)
)

var postalValidators = map[string]*regexp.Regexp{
	"US": usPostal,
	"CA": caPostal,
	"AU": auPostal,
	"GB": gbPostal,
}

// ValidPostal reports whether postal is a well-formed code for the given
// ISO-2 country. Unknown countries validate nothing.
func ValidPostal(countryCode, postal string) bool {
	if postal == "" {
		return false
	}
	re, ok := postalValidators[countryCode]
	if !ok {
		return false
	}
	return re.MatchString(postal)
}
