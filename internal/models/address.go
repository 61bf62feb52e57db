package models

import "strings"

// Status classifies one verification outcome.
type Status string

const (
	StatusValid     Status = "valid"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
	StatusError     Status = "error"
)

// Provider identifies which geocoder produced the final result.
type Provider string

const (
	ProviderPrimary   Provider = "primary"
	ProviderSecondary Provider = "secondary"
)

// MatchLevel is the coarse granularity of a geocoded match.
type MatchLevel string

const (
	MatchHouse    MatchLevel = "house"
	MatchStreet   MatchLevel = "street"
	MatchLocality MatchLevel = "locality"
	MatchUnknown  MatchLevel = "unknown"
)

// AddressRecord is one input row. Either Address carries the whole thing as
// free text, or the structured fields are set and get merged into one line
// before the pipeline runs. Records are never mutated after intake.
type AddressRecord struct {
	Address  string `json:"address"`
	Country  string `json:"country,omitempty"`
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Province string `json:"province,omitempty"`
}

// HasStructuredFields reports whether the record arrived with separately
// labeled street/city/province fields instead of a single free-text line.
func (r AddressRecord) HasStructuredFields() bool {
	return r.Street != "" && r.City != "" && r.Province != ""
}

// Input returns the raw text the pipeline starts from. Structured fields are
// merged with ", " in street, city, province, zip, country order, matching
// how the upload collaborator joins spreadsheet columns.
func (r AddressRecord) Input() string {
	if !r.HasStructuredFields() && r.Address != "" {
		return r.Address
	}
	parts := make([]string, 0, 6)
	for _, p := range []string{r.Address, r.Street, r.City, r.Province, r.Zip, r.Country} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// VerificationResult is one output row, index-aligned with its input record.
type VerificationResult struct {
	InputAddress      string     `json:"input_address"`
	CleanedAddress    string     `json:"cleaned_address"`
	NormalizedAddress string     `json:"normalized_address"`
	Country           string     `json:"country"`
	Status            Status     `json:"status"`
	Score             int        `json:"score"`
	Lat               *float64   `json:"lat,omitempty"`
	Lon               *float64   `json:"lon,omitempty"`
	Provider          Provider   `json:"provider"`
	MatchLevel        MatchLevel `json:"match_level,omitempty"`
	PostalCode        string     `json:"postal_code,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}
