package bitmex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
	"github.com/veiloq/bitmex-connector/pkg/ratelimit"
)

const apiPrefix = "/api/v1"

// Transport executes REST requests against the exchange: it signs
// authenticated calls, decodes structured errors, and self-throttles using
// the server-reported quota carried on every response.
//
// Two pacing mechanisms apply to each call. A client-side token bucket
// bounds the request rate before the call is sent. After the response, the
// transport reads the remaining-quota headers and blocks for
// 1/max(remaining, ε) seconds before returning control, so throughput
// degrades smoothly as the account approaches the server's limit instead of
// being hard-rejected.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	quota      *ratelimit.Quota
	signer     *Signer
	apiKey     string
	nonces     nonceSource
	logger     logging.Logger

	// sleep is swapped out in tests
	sleep func(time.Duration)
}

// NewTransport creates a transport from the given options. Credentials may
// be empty, in which case signed requests fail with
// ErrAuthenticationRequired.
func NewTransport(options *interfaces.ExchangeOptions, logger logging.Logger) *Transport {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	rps := options.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	t := &Transport{
		baseURL:    options.RESTBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter: ratelimit.NewTokenBucketLimiter(ratelimit.Rate{
			Limit:    rps,
			Interval: time.Second,
		}),
		quota:  ratelimit.NewQuota(),
		apiKey: options.APIKey,
		logger: logger,
		sleep:  time.Sleep,
	}
	if options.APISecret != "" {
		t.signer = NewSigner(options.APISecret)
	}
	return t
}

// Quota exposes the server-quota tracker for external throttling policy.
func (t *Transport) Quota() *ratelimit.Quota {
	return t.quota
}

// Request executes one REST call and returns the raw payload and HTTP
// status.
//
// verb is the HTTP method; endpoint is the path under /api/v1 (e.g.
// "order"). For read requests params become the query string; for write
// requests (POST, PUT, DELETE) body is JSON-encoded and params must be nil.
//
// Transient server failures (500, 502, 504) return an empty payload, the
// status, and an error wrapping ErrExchangeUnavailable; the transport never
// retries, the caller decides. Any other non-success status is decoded into
// an *interfaces.APIError. The self-throttle sleep applies on every path
// that received a response.
func (t *Transport) Request(ctx context.Context, verb, endpoint string, params url.Values, body interface{}, signed bool) ([]byte, int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	path := apiPrefix + "/" + endpoint
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var bodyStr string
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request body: %w", err)
		}
		bodyStr = string(encoded)
	}

	var reader io.Reader
	if bodyStr != "" {
		reader = bytes.NewReader([]byte(bodyStr))
	}
	req, err := http.NewRequestWithContext(ctx, verb, t.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if bodyStr != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	if signed {
		if t.signer == nil || t.apiKey == "" {
			return nil, 0, interfaces.ErrAuthenticationRequired
		}
		nonce := t.nonces.Next()
		req.Header.Set("api-key", t.apiKey)
		req.Header.Set("api-nonce", strconv.FormatInt(nonce, 10))
		req.Header.Set("api-signature", t.signer.Sign(verb, path, nonce, bodyStr))
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}

	t.observeQuota(resp.Header)
	defer t.sleep(t.quota.ThrottleDelay())

	t.logger.Debug("rest call",
		logging.String("verb", verb),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return payload, resp.StatusCode, nil

	case resp.StatusCode == http.StatusInternalServerError,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusGatewayTimeout:
		// Transient server-side failure: empty payload, no retry here.
		return nil, resp.StatusCode, &interfaces.APIError{
			Status:  resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
			Err:     interfaces.ErrExchangeUnavailable,
		}

	default:
		apiErr := &interfaces.APIError{Status: resp.StatusCode}
		var decoded apiErrorBody
		if err := json.Unmarshal(payload, &decoded); err == nil && decoded.Error.Message != "" {
			apiErr.Name = decoded.Error.Name
			apiErr.Message = decoded.Error.Message
		} else {
			apiErr.Message = string(payload)
		}
		return nil, resp.StatusCode, apiErr
	}
}

// decode unmarshals a response payload into an explicit schema record.
func decode(payload []byte, target interface{}) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// observeQuota refreshes the quota tracker from the response headers.
func (t *Transport) observeQuota(header http.Header) {
	remainingStr := header.Get("x-ratelimit-remaining")
	if remainingStr == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return
	}

	var reset time.Time
	if resetStr := header.Get("x-ratelimit-reset"); resetStr != "" {
		if unix, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			reset = time.Unix(unix, 0)
		}
	}
	t.quota.Observe(remaining, reset)
}
