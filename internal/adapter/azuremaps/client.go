package azuremaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/andeanwatch/incident-geo/internal/domain"
	"github.com/andeanwatch/incident-geo/internal/observability"
)

// DefaultRequestsPerSecond matches the Azure Maps S1 tier query limit.
const DefaultRequestsPerSecond = 50

// Client implements domain.Geocoder using the Azure Maps Search Address API.
// All queries are scoped to Peru.
type Client struct {
	key        string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	limiter    *rate.Limiter
	clock      clockwork.Clock
	metrics    *observability.Metrics

	// Extra attempts after a timeout, one sleep per retry.
	backoff []time.Duration
	// How long to back off after a 429 before retrying.
	rateLimitWait time.Duration
}

// NewClient creates an Azure Maps geocoding client. rps bounds outgoing
// request rate; rps <= 0 selects DefaultRequestsPerSecond.
func NewClient(key string, timeout time.Duration, rps float64, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &Client{
		key: key,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:       "https://atlas.microsoft.com/search/address/json",
		logger:        logger,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		clock:         clockwork.NewRealClock(),
		metrics:       metrics,
		backoff:       []time.Duration{500 * time.Millisecond, time.Second},
		rateLimitWait: time.Second,
	}
}

// GeocodeAddress resolves a free-text address to a coordinate. The region
// hint, when present, is appended to the query to disambiguate homonymous
// places across regions. A provider response with no results is not an
// error: the caller falls back to the gazetteer tiers.
func (c *Client) GeocodeAddress(ctx context.Context, address, regionHint string) (domain.GeocodingResult, error) {
	query := address
	if regionHint != "" {
		query = fmt.Sprintf("%s, %s", address, regionHint)
	}
	query += ", Peru"

	params := url.Values{
		"api-version":      {"1.0"},
		"subscription-key": {c.key},
		"query":            {query},
		"countrySet":       {"PE"},
		"limit":            {"1"},
		"language":         {"es-PE"},
	}
	fullURL := c.baseURL + "?" + params.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return domain.GeocodingResult{}, fmt.Errorf("rate limiter: %w", err)
		}

		start := c.clock.Now()
		result, err := c.doRequest(ctx, fullURL)
		c.metrics.GeocodeAPIDuration.Observe(c.clock.Since(start).Seconds())
		c.metrics.GeocodeRequests.WithLabelValues(requestOutcome(result, err)).Inc()
		if err == nil {
			return result, nil
		}
		if attempt >= len(c.backoff) {
			return domain.GeocodingResult{}, err
		}

		var wait time.Duration
		switch {
		case isRateLimited(err):
			wait = c.rateLimitWait
		case isTimeout(err):
			wait = c.backoff[attempt]
		default:
			// Auth failures, bad requests and server errors are not
			// transient enough to burn the batch's time on.
			return domain.GeocodingResult{}, err
		}

		c.logger.Debug("retrying geocode request",
			"attempt", attempt+1,
			"wait", wait,
			"error", err)
		if err := c.sleep(ctx, wait); err != nil {
			return domain.GeocodingResult{}, err
		}
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.GeocodingResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return domain.GeocodingResult{}, errRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodingResult{}, fmt.Errorf("azure maps API error: status %d: %s", resp.StatusCode, body)
	}

	var searchResp response
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(searchResp.Results) == 0 {
		return domain.GeocodingResult{}, nil
	}

	r := searchResp.Results[0]
	return domain.GeocodingResult{
		Lat:        r.Position.Lat,
		Lon:        r.Position.Lon,
		Address:    r.Address.FreeformAddress,
		Confidence: r.Score,
		Found:      true,
	}, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// requestOutcome labels one API attempt for the request counter. Every
// attempt counts, so a geocode that retries twice shows up as three.
func requestOutcome(result domain.GeocodingResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result.Found:
		return "success"
	default:
		return "empty"
	}
}

var errRateLimited = errors.New("azure maps API error: status 429")

func isRateLimited(err error) bool {
	return errors.Is(err, errRateLimited)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Azure Maps search/address response types.

type response struct {
	Results []result `json:"results"`
}

type result struct {
	Score    float64  `json:"score"`
	Address  address  `json:"address"`
	Position position `json:"position"`
}

type address struct {
	FreeformAddress string `json:"freeformAddress"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
