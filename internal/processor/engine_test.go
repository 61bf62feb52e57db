package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"address-verifier/internal/cleaner"
	"address-verifier/internal/country"
	"address-verifier/internal/geocode"
	"address-verifier/internal/models"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

func newTestEngine(t *testing.T, nomi, oc http.HandlerFunc, ocKey string) *Engine {
	t.Helper()
	log := logging.New(logging.Config{Level: "error", Format: "text"})
	reg := metrics.NewRegistry()

	nomiSrv := httptest.NewServer(nomi)
	t.Cleanup(nomiSrv.Close)
	primary := geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL:   nomiSrv.URL,
		UserAgent: "address-verifier-test/1.0",
		Timeout:   5 * time.Second,
	}, log, reg)

	ocURL := ""
	if oc != nil {
		ocSrv := httptest.NewServer(oc)
		t.Cleanup(ocSrv.Close)
		ocURL = ocSrv.URL
	}
	secondary := geocode.NewOpenCageClient(geocode.OpenCageConfig{
		BaseURL: ocURL,
		APIKey:  ocKey,
		Timeout: 5 * time.Second,
	}, log, reg)

	return NewEngine(cleaner.New(nil), country.NewDetector(nil), primary, secondary, "", log, reg)
}

func emptyNominatim(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte(`[]`))
}

func TestVerifyBatchValidRow(t *testing.T) {
	var ocHits int
	eng := newTestEngine(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"lat":"39.7989","lon":"-89.6443","type":"house","address":{"postcode":"62704"}}]`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			ocHits++
			w.Write([]byte(`{"results":[]}`))
		},
		"configured-key")

	rows := []models.AddressRecord{{Address: "123 Main St\nSpringfield, IL 62704"}}
	results := eng.VerifyBatch(context.Background(), rows, "")

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]

	if res.Country != "US" {
		t.Errorf("Country = %q, want US", res.Country)
	}
	if res.CleanedAddress != "123 Main St, Springfield, IL 62704" {
		t.Errorf("CleanedAddress = %q", res.CleanedAddress)
	}
	if res.NormalizedAddress != "123 Main St, Springfield, IL 62704, US" {
		t.Errorf("NormalizedAddress = %q", res.NormalizedAddress)
	}
	if res.Status != models.StatusValid {
		t.Errorf("Status = %q, want valid (score %d)", res.Status, res.Score)
	}
	if res.Score != 90 { // house 50 + coords 20 + valid postal 10 + flat 10
		t.Errorf("Score = %d, want 90", res.Score)
	}
	if res.Provider != models.ProviderPrimary {
		t.Errorf("Provider = %q, want primary", res.Provider)
	}
	if res.MatchLevel != models.MatchHouse {
		t.Errorf("MatchLevel = %q, want house", res.MatchLevel)
	}
	if res.Lat == nil || res.Lon == nil {
		t.Error("coordinates missing from valid result")
	}
	if !strings.Contains(res.Notes, "nominatim_candidates=1") {
		t.Errorf("Notes = %q, want candidate count", res.Notes)
	}
	if ocHits != 0 {
		t.Errorf("secondary provider called %d times for a valid primary result, want 0", ocHits)
	}
}

func TestVerifyBatchNoResultIsError(t *testing.T) {
	eng := newTestEngine(t, emptyNominatim, nil, "")

	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "Somewhere Unrecognizable"}}, "")

	res := results[0]
	if res.Status != models.StatusError {
		t.Errorf("Status = %q, want error", res.Status)
	}
	if res.Score != 0 {
		t.Errorf("Score = %d, want 0", res.Score)
	}
	if res.Provider != models.ProviderPrimary {
		t.Errorf("Provider = %q, want primary", res.Provider)
	}
	if !strings.Contains(res.Notes, "nominatim_not_found") {
		t.Errorf("Notes = %q, want not-found marker", res.Notes)
	}
}

func TestVerifyBatchSecondaryFallback(t *testing.T) {
	eng := newTestEngine(t, emptyNominatim,
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"results":[
				{"geometry":{"lat":43.6475,"lng":-79.3817},
				 "components":{"house_number":"77","road":"King Street West","postcode":"M5K 1A1"},
				 "confidence":9}
			]}`))
		},
		"configured-key")

	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "77 King St W, Toronto, Canada"}}, "")

	res := results[0]
	if res.Provider != models.ProviderSecondary {
		t.Fatalf("Provider = %q, want secondary (notes: %s)", res.Provider, res.Notes)
	}
	if res.Status != models.StatusValid {
		t.Errorf("Status = %q, want valid (score %d)", res.Status, res.Score)
	}
	if !strings.Contains(res.Notes, "nominatim_not_found") || !strings.Contains(res.Notes, "opencage_candidates=1") {
		t.Errorf("Notes = %q, want both provider markers", res.Notes)
	}
}

func TestVerifyBatchSecondaryErrorIsNonFatal(t *testing.T) {
	eng := newTestEngine(t, emptyNominatim,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"configured-key")

	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "Somewhere Unrecognizable"}}, "")

	res := results[0]
	if res.Status != models.StatusError {
		t.Errorf("Status = %q, want error", res.Status)
	}
	if !strings.Contains(res.Notes, "secondary_error=") {
		t.Errorf("Notes = %q, want secondary_error marker", res.Notes)
	}
}

func TestVerifyBatchOrderAndIsolation(t *testing.T) {
	eng := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "BOOM") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"lat":"39.7","lon":"-89.6","type":"road","address":{}}]`))
	}, nil, "")

	rows := []models.AddressRecord{
		{Address: "456 Oak Ave, Portland, OR 97205"},
		{Address: "BOOM"},
		{Address: "789 Pine Rd, Boise, ID 83702"},
	}
	results := eng.VerifyBatch(context.Background(), rows, "")

	if len(results) != len(rows) {
		t.Fatalf("got %d results for %d rows", len(results), len(rows))
	}
	for i, res := range results {
		if res.InputAddress != rows[i].Address {
			t.Errorf("result %d input = %q, want %q", i, res.InputAddress, rows[i].Address)
		}
	}

	if results[0].Status != models.StatusAmbiguous { // street 35 + coords 20 + flat 10 = 65
		t.Errorf("row 0 Status = %q, want ambiguous", results[0].Status)
	}
	if results[1].Status != models.StatusError {
		t.Errorf("row 1 Status = %q, want error", results[1].Status)
	}
	if !strings.Contains(results[1].Notes, "nominatim_error:") {
		t.Errorf("row 1 Notes = %q, want error marker", results[1].Notes)
	}
	if results[2].Status != models.StatusAmbiguous {
		t.Errorf("row 2 Status = %q, want ambiguous (one bad row must not poison the rest)", results[2].Status)
	}
}

func TestVerifyBatchUSStructuredRetry(t *testing.T) {
	eng := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("street") == "" {
			w.Write([]byte(`[]`)) // free-form finds nothing
			return
		}
		w.Write([]byte(`[{"lat":"39.7989","lon":"-89.6443","type":"building","address":{"postcode":"62704"}}]`))
	}, nil, "")

	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "123 Main St, Springfield, IL 62704"}}, "")

	res := results[0]
	if res.Status != models.StatusValid {
		t.Fatalf("Status = %q, want valid (notes: %s)", res.Status, res.Notes)
	}
	if !strings.Contains(res.Notes, "us_structured=1") {
		t.Errorf("Notes = %q, want structured marker", res.Notes)
	}
}

func TestVerifyBatchUnitStrippedRetry(t *testing.T) {
	eng := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "Apt") {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"lat":"39.7","lon":"-89.6","type":"road","address":{}}]`))
	}, nil, "")

	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "123 Main St, Apt 4B, Springfield"}}, "")

	res := results[0]
	if res.Status != models.StatusAmbiguous {
		t.Fatalf("Status = %q, want ambiguous (notes: %s)", res.Status, res.Notes)
	}
	if !strings.Contains(res.Notes, "unit_retry=1") {
		t.Errorf("Notes = %q, want unit retry marker", res.Notes)
	}
}

func TestVerifyBatchStructuredInputRow(t *testing.T) {
	eng := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("street") != "123 Main St" || q.Get("city") != "Springfield" || q.Get("state") != "IL" {
			t.Errorf("unexpected structured query: %v", q)
		}
		w.Write([]byte(`[{"lat":"39.7989","lon":"-89.6443","type":"house","address":{"postcode":"62704"}}]`))
	}, nil, "")

	rows := []models.AddressRecord{{
		Street:   "123 Main St",
		City:     "Springfield",
		Province: "IL",
		Zip:      "62704",
		Country:  "US",
	}}
	results := eng.VerifyBatch(context.Background(), rows, "")

	res := results[0]
	if res.Status != models.StatusValid {
		t.Fatalf("Status = %q, want valid (notes: %s)", res.Status, res.Notes)
	}
	if res.Score != 100 { // 50 + 20 + 10 + 15 + 10 = 105, clamped
		t.Errorf("Score = %d, want 100", res.Score)
	}
	if !strings.Contains(res.Notes, "us_structured=1") {
		t.Errorf("Notes = %q, want structured marker", res.Notes)
	}
}

func TestVerifyBatchTieGoesToPrimary(t *testing.T) {
	localityNomi := func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"lat":"39.8","lon":"-89.6","type":"city","address":{}}]`))
	}
	ocWithConfidence := func(conf string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"results":[
				{"geometry":{"lat":39.8,"lng":-89.6},"components":{"city":"Springfield"},"confidence":` + conf + `}
			]}`))
		}
	}

	// Equal scores: the held primary result wins.
	eng := newTestEngine(t, localityNomi, ocWithConfidence("0"), "configured-key")
	results := eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "Springfield"}}, "")
	if results[0].Provider != models.ProviderPrimary {
		t.Errorf("tie Provider = %q, want primary", results[0].Provider)
	}

	// Secondary strictly ahead: it takes over.
	eng = newTestEngine(t, localityNomi, ocWithConfidence("5"), "configured-key")
	results = eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "Springfield"}}, "")
	if results[0].Provider != models.ProviderSecondary {
		t.Errorf("higher secondary Provider = %q, want secondary", results[0].Provider)
	}
}

func TestVerifyBatchDefaultCountryOverride(t *testing.T) {
	var gotCountry string
	eng := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		gotCountry = r.URL.Query().Get("countrycodes")
		w.Write([]byte(`[]`))
	}, nil, "")

	eng.VerifyBatch(context.Background(),
		[]models.AddressRecord{{Address: "Somewhere Unrecognizable"}}, "AU")

	if gotCountry != "au" {
		t.Errorf("countrycodes = %q, want au from the batch default", gotCountry)
	}
}
