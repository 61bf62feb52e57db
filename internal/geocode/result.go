// Package geocode implements the two provider clients: a Nominatim-style
// free/open search service (primary, paced) and an OpenCage-style commercial
// service (secondary, keyed). Both convert whatever the wire returns into a
// tagged Result so the orchestrator never branches on raw JSON.
package geocode

import "address-verifier/internal/models"

// ResultKind tags the three shapes a provider lookup can take.
type ResultKind int

const (
	KindFound ResultKind = iota
	KindNotFound
	KindError
)

// Result is one provider response, never mutated after creation.
type Result struct {
	Kind       ResultKind
	MatchLevel models.MatchLevel
	ReverseOK  bool // both coordinates present on the best candidate
	Lat        *float64
	Lon        *float64
	PostalCode string
	Candidates int
	Confidence *int   // provider's own 0-10 signal; secondary only
	ErrMsg     string // set when Kind == KindError
}

// Found reports whether the lookup produced a usable best candidate.
func (r Result) Found() bool { return r.Kind == KindFound }

func notFound() Result { return Result{Kind: KindNotFound} }

func errorResult(msg string) Result { return Result{Kind: KindError, ErrMsg: msg} }
