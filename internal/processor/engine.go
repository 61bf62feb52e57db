// Package processor sequences the verification pipeline for a batch of
// address records: clean, detect country, normalize, primary lookup with
// its retry ladder, score, conditional secondary lookup, best-of-two pick.
package processor

import (
	"context"
	"fmt"
	"strings"

	"address-verifier/internal/cleaner"
	"address-verifier/internal/country"
	"address-verifier/internal/geocode"
	"address-verifier/internal/models"
	"address-verifier/internal/normalizer"
	"address-verifier/internal/scorer"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

// Engine runs batches. Rows are processed strictly sequentially: the
// primary client's pacing state must be observed and updated serially,
// so there is nothing to gain from per-row concurrency.
type Engine struct {
	cleaner        *cleaner.Cleaner
	detector       *country.Detector
	primary        *geocode.NominatimClient
	secondary      *geocode.OpenCageClient
	defaultCountry string
	log            *logging.Logger

	rows       *metrics.Counter
	rowsByCode map[models.Status]*metrics.Counter
	scores     *metrics.Histogram
}

func NewEngine(
	cl *cleaner.Cleaner,
	det *country.Detector,
	primary *geocode.NominatimClient,
	secondary *geocode.OpenCageClient,
	defaultCountry string,
	log *logging.Logger,
	reg *metrics.Registry,
) *Engine {
	return &Engine{
		cleaner:        cl,
		detector:       det,
		primary:        primary,
		secondary:      secondary,
		defaultCountry: defaultCountry,
		log:            log.WithComponent("processor"),
		rows:           reg.Counter("verify_rows_total", "Address rows processed"),
		rowsByCode: map[models.Status]*metrics.Counter{
			models.StatusValid:     reg.Counter("verify_rows_valid_total", "Rows classified valid"),
			models.StatusAmbiguous: reg.Counter("verify_rows_ambiguous_total", "Rows classified ambiguous"),
			models.StatusNotFound:  reg.Counter("verify_rows_not_found_total", "Rows classified not_found"),
			models.StatusError:     reg.Counter("verify_rows_error_total", "Rows classified error"),
		},
		scores: reg.Histogram("verify_score", "Final confidence score distribution",
			[]float64{0, 20, 40, 60, 80, 100}),
	}
}

// VerifyBatch verifies every record in order and returns one result per
// record, index-aligned with the input. defaultCountry, when non-empty,
// overrides the engine's configured fallback for this batch only. A
// failure on one row never aborts the batch.
func (e *Engine) VerifyBatch(ctx context.Context, records []models.AddressRecord, defaultCountry string) []models.VerificationResult {
	if defaultCountry == "" {
		defaultCountry = e.defaultCountry
	}

	results := make([]models.VerificationResult, 0, len(records))
	for i, rec := range records {
		res := e.verifyOne(ctx, rec, defaultCountry)
		results = append(results, res)

		e.rows.Inc()
		if c := e.rowsByCode[res.Status]; c != nil {
			c.Inc()
		}
		e.scores.Observe(float64(res.Score))

		e.log.Debug("row verified",
			logging.Int("row", i),
			logging.String("country", res.Country),
			logging.String("status", string(res.Status)),
			logging.Int("score", res.Score),
			logging.String("provider", string(res.Provider)))
	}
	return results
}

func (e *Engine) verifyOne(ctx context.Context, rec models.AddressRecord, defaultCountry string) models.VerificationResult {
	input := rec.Input()
	cleaned := e.cleaner.Clean(input)
	cc := e.detector.Detect(cleaned, rec.Country, defaultCountry)
	normalized := normalizer.Normalize(cleaned, cc)

	var notes []string
	triedStructured := false

	// Rows that arrive with discrete US fields go straight to the
	// structured endpoint; the free-form path remains the fallback.
	var primaryRes geocode.Result
	if cc == "US" && rec.HasStructuredFields() {
		triedStructured = true
		primaryRes = e.primary.SearchStructured(ctx, geocode.StructuredQuery{
			Street:     rec.Street,
			City:       rec.City,
			State:      rec.Province,
			PostalCode: rec.Zip,
			Country:    "US",
		})
		if primaryRes.Found() {
			notes = append(notes, "us_structured=1")
		}
	}

	if !primaryRes.Found() {
		primaryRes = e.primary.SearchFree(ctx, normalized, cc)

		if !primaryRes.Found() {
			if stripped := normalizer.StripUnitTokens(normalized); stripped != normalized {
				notes = append(notes, "unit_retry=1")
				if retry := e.primary.SearchFree(ctx, stripped, cc); retry.Found() {
					primaryRes = retry
				}
			}
		}

		if cc == "US" && !triedStructured && (!primaryRes.Found() || primaryRes.MatchLevel == models.MatchUnknown) {
			if us := normalizer.ParseUS(normalized); us != nil {
				structured := e.primary.SearchStructured(ctx, geocode.StructuredQuery{
					Street:     us.Street,
					City:       us.City,
					State:      us.State,
					PostalCode: us.Zip,
					Country:    "US",
				})
				if structured.Found() {
					primaryRes = structured
					notes = append(notes, "us_structured=1")
				}
			}
		}
	}

	var primaryScore int
	switch primaryRes.Kind {
	case geocode.KindFound:
		notes = append(notes, fmt.Sprintf("nominatim_candidates=%d", primaryRes.Candidates))
		primaryScore = scorer.Compute(primaryRes.MatchLevel, primaryRes.ReverseOK, primaryRes.Candidates,
			primaryRes.PostalCode, cc, scorer.Options{InputPostal: rec.Zip})
	case geocode.KindError:
		notes = append(notes, primaryRes.ErrMsg)
	default:
		notes = append(notes, "nominatim_not_found")
	}

	best := primaryRes
	bestScore := primaryScore
	provider := models.ProviderPrimary

	if e.secondary.Available() && bestScore < 80 {
		sec := e.secondary.Geocode(ctx, normalized, cc)
		switch sec.Kind {
		case geocode.KindFound:
			notes = append(notes, fmt.Sprintf("opencage_candidates=%d", sec.Candidates))
			secScore := scorer.Compute(sec.MatchLevel, sec.ReverseOK, sec.Candidates,
				sec.PostalCode, cc, scorer.Options{InputPostal: rec.Zip, Confidence: sec.Confidence})
			// The held primary result wins ties; any usable secondary
			// result beats a primary that found nothing.
			if !best.Found() || secScore > bestScore {
				best = sec
				bestScore = secScore
				provider = models.ProviderSecondary
			}
		case geocode.KindError:
			notes = append(notes, "secondary_error="+sec.ErrMsg)
		}
	}

	result := models.VerificationResult{
		InputAddress:      input,
		CleanedAddress:    cleaned,
		NormalizedAddress: normalized,
		Country:           cc,
		Provider:          provider,
		Notes:             strings.Join(notes, "; "),
	}
	if best.Found() {
		result.Score = bestScore
		result.Status = scorer.StatusForScore(bestScore)
		result.MatchLevel = best.MatchLevel
		result.Lat = best.Lat
		result.Lon = best.Lon
		result.PostalCode = best.PostalCode
	} else {
		result.Status = models.StatusError
		result.Score = 0
	}
	return result
}
