package interfaces

import (
	"context"
	"time"
)

// ExchangeConnector is the boundary between this connectivity layer and the
// strategy code that consumes it. It presents one derivatives venue as a
// consistent view of markets, order books, open orders, positions, and fills.
//
// Implementations handle:
//   - request signing and nonce discipline for authenticated endpoints
//   - self-throttling against the venue's server-reported request quota
//   - live order-book mirroring over the venue's streaming socket
//   - quantization of prices and volumes to market precision
//
// All REST-backed methods block for the duration of the request plus the
// post-response throttle sleep; callers must expect bounded but variable
// latency.
type ExchangeConnector interface {
	// Markets fetches the venue's active instrument metadata. The returned
	// set replaces any prior one wholesale; individual Market values are
	// immutable.
	Markets(ctx context.Context) ([]Market, error)

	// GetBook returns the current order book for a symbol. Markets with a
	// running stream are served from the live mirror; any other market is
	// served from a REST snapshot.
	GetBook(ctx context.Context, symbol string) (*OrderBook, error)

	// TradesSince returns public trades for a symbol from the given time
	// onward, in chronological order.
	TradesSince(ctx context.Context, symbol string, since time.Time) ([]Trade, error)

	// PlacedOffers returns the account's open orders for a symbol.
	PlacedOffers(ctx context.Context, symbol string) ([]PlacedOrder, error)

	// AccountPositions returns the account's open positions.
	AccountPositions(ctx context.Context) ([]Position, error)

	// AccountBalances returns the account's wallet balances.
	AccountBalances(ctx context.Context) ([]Balance, error)

	// PostOffer submits a maker-only limit order for the given offer,
	// quantized to the market's precision. A rejection caused by the
	// maker-only instruction (the order would have matched immediately) is
	// an expected outcome and returns (nil, nil). Acceptance returns the
	// acknowledged order.
	PostOffer(ctx context.Context, offer Offer) (*PlacedOrder, error)

	// CancelOffer cancels a placed order by identifier. Responses reporting
	// the order already filled or not found are treated as idempotent
	// success.
	CancelOffer(ctx context.Context, order PlacedOrder) error

	// ExecutionsSince returns the account's fills for a market strictly
	// after the cursor trade id. With an empty cursor it returns all fills
	// inside the look-back window.
	ExecutionsSince(ctx context.Context, market Market, cursor string) ([]Execution, error)

	// QuoteFillRatios samples the venue's smoothed quote fill ratio metric.
	// Only finite numeric samples are returned; absent or null entries are
	// discarded.
	QuoteFillRatios(ctx context.Context) ([]float64, error)

	// Close releases all resources, including any running book streams.
	Close() error
}

// ExchangeOptions configures an exchange connector. There is no process-wide
// default; an options value is passed explicitly into every constructor.
type ExchangeOptions struct {
	// APIKey is the authentication key for the exchange API.
	// Required for signed endpoints (orders, positions, executions).
	APIKey string

	// APISecret is the secret paired with the API key, used to sign
	// authenticated requests.
	APISecret string

	// RESTBaseURL is the base URL for REST requests
	// (e.g. "https://www.bitmex.com").
	RESTBaseURL string

	// WSBaseURL is the base URL for the streaming socket
	// (e.g. "wss://www.bitmex.com/realtime").
	WSBaseURL string

	// HTTPTimeout bounds each REST request. The post-response throttle
	// sleep is additional to this.
	HTTPTimeout time.Duration

	// MaxRequestsPerSecond is the client-side request pacing floor applied
	// before each REST call, independent of the server-quota throttle.
	MaxRequestsPerSecond int
}

// NewExchangeOptions returns options with reasonable defaults: 15s HTTP
// timeout and 10 requests per second. Credentials and URLs must be filled in
// by the caller.
func NewExchangeOptions() *ExchangeOptions {
	return &ExchangeOptions{
		HTTPTimeout:          15 * time.Second,
		MaxRequestsPerSecond: 10,
	}
}

// WithCredentials sets the API key pair and returns the options for
// chaining.
func (o *ExchangeOptions) WithCredentials(key, secret string) *ExchangeOptions {
	o.APIKey = key
	o.APISecret = secret
	return o
}
