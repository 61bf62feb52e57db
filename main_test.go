package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"address-verifier/internal/cleaner"
	"address-verifier/internal/country"
	"address-verifier/internal/geocode"
	"address-verifier/internal/processor"
	"address-verifier/pkg/config"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	log := logging.New(logging.Config{Level: "error", Format: "text"})
	reg := metrics.NewRegistry()

	nomiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"39.7989","lon":"-89.6443","type":"house","address":{"postcode":"62704"}}]`))
	}))
	t.Cleanup(nomiSrv.Close)

	primary := geocode.NewNominatimClient(geocode.NominatimConfig{
		BaseURL:   nomiSrv.URL,
		UserAgent: "address-verifier-test/1.0",
		Timeout:   5 * time.Second,
	}, log, reg)
	secondary := geocode.NewOpenCageClient(geocode.OpenCageConfig{Timeout: 5 * time.Second}, log, reg)

	engine := processor.NewEngine(cleaner.New(nil), country.NewDetector(nil), primary, secondary, "US", log, reg)
	return &App{config: &config.Config{}, engine: engine, log: log}
}

func TestVerifyHandler(t *testing.T) {
	app := newTestApp(t)

	body := `{"rows":[{"address":"123 Main St, Springfield, IL 62704"}]}`
	req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()

	app.verifyHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body)
	}

	var resp verifyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BatchID == "" {
		t.Error("batch_id missing from response")
	}
	if len(resp.Data) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Data))
	}
	if resp.Data[0].Status != "valid" {
		t.Errorf("row status = %q, want valid (notes: %s)", resp.Data[0].Status, resp.Data[0].Notes)
	}
}

func TestVerifyHandlerRejectsEmptyBatch(t *testing.T) {
	app := newTestApp(t)

	for _, body := range []string{`{"rows":[]}`, `{}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body))
		rec := httptest.NewRecorder()

		app.verifyHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestHealthHandler(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want ok status", rec.Body.String())
	}
}
