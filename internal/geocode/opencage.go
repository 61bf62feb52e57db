package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"address-verifier/internal/models"
	"address-verifier/pkg/circuit"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

// OpenCageConfig carries the secondary provider settings. An empty APIKey
// disables the client.
type OpenCageConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OpenCageClient talks to an OpenCage-compatible forward geocoder. It is
// only consulted when the primary result scores below the acceptance
// threshold, so it carries no pacer of its own.
type OpenCageClient struct {
	baseURL string
	key     string
	http    *http.Client
	breaker *circuit.Breaker
	log     *logging.Logger

	calls   *metrics.Counter
	errs    *metrics.Counter
	latency *metrics.Histogram
}

func NewOpenCageClient(cfg OpenCageConfig, log *logging.Logger, reg *metrics.Registry) *OpenCageClient {
	return &OpenCageClient{
		baseURL: cfg.BaseURL,
		key:     cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuit.New(circuit.Config{Name: "opencage"}, log, reg),
		log:     log.WithComponent("opencage"),
		calls:   reg.Counter("opencage_requests_total", "Requests sent to the secondary geocoder"),
		errs:    reg.Counter("opencage_errors_total", "Secondary geocoder transport and HTTP failures"),
		latency: reg.Histogram("opencage_request_seconds", "Secondary geocoder request latency", nil),
	}
}

// Available reports whether an API key was configured.
func (c *OpenCageClient) Available() bool { return c.key != "" }

type openCageComponents struct {
	Postcode    string `json:"postcode"`
	PostalCode  string `json:"postal_code"`
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	Street      string `json:"street"`
	Pedestrian  string `json:"pedestrian"`
	Building    string `json:"building"`
	Residential string `json:"residential"`
	Suburb      string `json:"suburb"`
	Village     string `json:"village"`
	Town        string `json:"town"`
	City        string `json:"city"`
	County      string `json:"county"`
}

type openCageGeometry struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type openCageResult struct {
	Geometry   *openCageGeometry  `json:"geometry"`
	Components openCageComponents `json:"components"`
	Confidence int                `json:"confidence"`
}

type openCageResponse struct {
	Results []openCageResult `json:"results"`
}

// Geocode runs a forward lookup for the normalized address string.
func (c *OpenCageClient) Geocode(ctx context.Context, query, countryCode string) Result {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.key)
	params.Set("limit", "3")
	params.Set("no_annotations", "1")
	if countryCode != "" {
		params.Set("countrycode", strings.ToLower(countryCode))
	}

	var body openCageResponse
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.fetch(ctx, params, &body)
	})
	if err != nil {
		c.errs.Inc()
		c.log.Warn("secondary lookup failed", logging.Error(err))
		return errorResult(err.Error())
	}
	return toOpenCageResult(body)
}

func (c *OpenCageClient) fetch(ctx context.Context, params url.Values, body *openCageResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	c.calls.Inc()
	start := time.Now()
	resp, err := c.http.Do(req)
	c.latency.ObserveSince(start)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("OpenCage HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(body); err != nil {
		return fmt.Errorf("OpenCage decode: %w", err)
	}
	return nil
}

func toOpenCageResult(body openCageResponse) Result {
	if len(body.Results) == 0 {
		return notFound()
	}
	best := body.Results[0]

	confidence := best.Confidence
	r := Result{
		Kind:       KindFound,
		MatchLevel: matchLevelFromComponents(best.Components),
		PostalCode: best.Components.Postcode,
		Candidates: len(body.Results),
		Confidence: &confidence,
	}
	// Coordinates only when the provider actually returned a geometry;
	// a components-only match must not report (0,0).
	if best.Geometry != nil {
		lat, lon := best.Geometry.Lat, best.Geometry.Lng
		r.Lat, r.Lon = &lat, &lon
		r.ReverseOK = true
	}
	if r.PostalCode == "" {
		r.PostalCode = best.Components.PostalCode
	}
	return r
}

func matchLevelFromComponents(c openCageComponents) models.MatchLevel {
	switch {
	case c.HouseNumber != "" && (c.Road != "" || c.Street != ""),
		c.Building != "",
		c.Residential != "":
		return models.MatchHouse
	case c.Road != "" || c.Street != "" || c.Pedestrian != "":
		return models.MatchStreet
	case c.Suburb != "" || c.Village != "" || c.Town != "" || c.City != "" || c.County != "":
		return models.MatchLocality
	default:
		return models.MatchUnknown
	}
}
