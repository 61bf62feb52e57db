package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"address-verifier/internal/models"
	"address-verifier/pkg/circuit"
	"address-verifier/pkg/errors"
	"address-verifier/pkg/logging"
	"address-verifier/pkg/metrics"
)

// NominatimConfig carries the primary provider settings.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string
	Interval  time.Duration
	Timeout   time.Duration
	CacheSize int
}

// NominatimClient talks to a Nominatim-compatible search endpoint. All
// outgoing requests go through a shared pacer so free/structured lookups
// from the same batch respect one interval budget; cache hits bypass it.
type NominatimClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	pacer     *Pacer
	breaker   *circuit.Breaker
	cache     *lru.Cache[string, Result]
	log       *logging.Logger

	calls     *metrics.Counter
	errs      *metrics.Counter
	cacheHits *metrics.Counter
	latency   *metrics.Histogram
}

func NewNominatimClient(cfg NominatimConfig, log *logging.Logger, reg *metrics.Registry) *NominatimClient {
	c := &NominatimClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		pacer:     NewPacer(cfg.Interval),
		breaker:   circuit.New(circuit.Config{Name: "nominatim"}, log, reg),
		log:       log.WithComponent("nominatim"),
		calls:     reg.Counter("nominatim_requests_total", "Requests sent to the primary geocoder"),
		errs:      reg.Counter("nominatim_errors_total", "Primary geocoder transport and HTTP failures"),
		cacheHits: reg.Counter("nominatim_cache_hits_total", "Primary lookups served from the in-process cache"),
		latency:   reg.Histogram("nominatim_request_seconds", "Primary geocoder request latency", nil),
	}
	if cfg.CacheSize > 0 {
		// lru.New only fails on a non-positive size.
		c.cache, _ = lru.New[string, Result](cfg.CacheSize)
	}
	return c
}

// StructuredQuery is a field-by-field search, used for the US retry path.
type StructuredQuery struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// SearchFree runs a free-form search for the normalized address string.
// countryCode, when known, is passed as a lowercase countrycodes filter.
func (c *NominatimClient) SearchFree(ctx context.Context, query, countryCode string) Result {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "5")
	params.Set("q", query)
	if countryCode != "" {
		params.Set("countrycodes", strings.ToLower(countryCode))
	}
	return c.search(ctx, "free|"+countryCode+"|"+query, params)
}

// SearchStructured runs a component search. Empty fields are omitted.
func (c *NominatimClient) SearchStructured(ctx context.Context, q StructuredQuery) Result {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", "5")
	if q.Street != "" {
		params.Set("street", q.Street)
	}
	if q.City != "" {
		params.Set("city", q.City)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.PostalCode != "" {
		params.Set("postalcode", q.PostalCode)
	}
	if q.Country != "" {
		params.Set("country", q.Country)
	}
	key := strings.Join([]string{"structured", q.Street, q.City, q.State, q.PostalCode, q.Country}, "|")
	return c.search(ctx, key, params)
}

func (c *NominatimClient) search(ctx context.Context, cacheKey string, params url.Values) Result {
	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			c.cacheHits.Inc()
			return cached
		}
	}

	// The breaker gates the pacing wait too: with the provider down there
	// is no point spending the interval budget on calls that cannot work.
	var items []nominatimItem
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		c.calls.Inc()
		start := time.Now()
		var ferr error
		items, ferr = c.fetch(ctx, params)
		c.latency.ObserveSince(start)
		return ferr
	})
	if err != nil {
		c.errs.Inc()
		c.log.Warn("primary lookup failed", logging.Error(err))
		return errorResult("nominatim_error:" + err.Error())
	}

	result := c.toResult(items)
	if c.cache != nil {
		c.cache.Add(cacheKey, result)
	}
	return result
}

type nominatimItem struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Type    string `json:"type"`
	Address struct {
		Postcode string `json:"postcode"`
	} `json:"address"`
}

func (c *NominatimClient) fetch(ctx context.Context, params url.Values) ([]nominatimItem, error) {
	const op = "nominatim.fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.NewExternal(op, "nominatim", "build request", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewExternal(op, "nominatim", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, errors.NewExternal(op, "nominatim", fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var items []nominatimItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, errors.NewExternal(op, "nominatim", "decode response", err)
	}
	return items, nil
}

func (c *NominatimClient) toResult(items []nominatimItem) Result {
	if len(items) == 0 {
		return notFound()
	}
	best := items[0]

	r := Result{
		Kind:       KindFound,
		MatchLevel: matchLevelFromType(best.Type),
		PostalCode: best.Address.Postcode,
		Candidates: len(items),
	}
	lat, latOK := parseCoord(best.Lat)
	lon, lonOK := parseCoord(best.Lon)
	if latOK && lonOK {
		r.Lat, r.Lon = &lat, &lon
		r.ReverseOK = true
	}
	return r
}

// matchLevelFromType classifies the best candidate's OSM type into the
// three precision tiers the scorer understands.
func matchLevelFromType(osmType string) models.MatchLevel {
	switch strings.ToLower(osmType) {
	case "house", "building", "residential", "address":
		return models.MatchHouse
	case "road", "street", "service", "tertiary", "primary", "secondary":
		return models.MatchStreet
	case "suburb", "neighbourhood", "hamlet", "quarter",
		"city", "town", "village", "municipality", "county", "district":
		return models.MatchLocality
	default:
		return models.MatchUnknown
	}
}

func parseCoord(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
