// Package bitmex implements the connectivity layer for the BitMEX
// derivatives exchange: a signed, self-throttling REST transport, a
// streaming order-book mirror, order lifecycle management, and execution
// reconciliation.
package bitmex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
)

const (
	defaultRESTBaseURL = "https://www.bitmex.com"
	defaultWSBaseURL   = "wss://www.bitmex.com/realtime"
)

// Connector implements interfaces.ExchangeConnector for BitMEX. It owns the
// REST transport and any per-market book streams started through it.
//
// Book retrieval is a tagged variant over the market set: a market with a
// running stream (StartBookStream) is served from the live mirror, every
// other market from a REST snapshot.
type Connector struct {
	options   *interfaces.ExchangeOptions
	transport *Transport
	logger    logging.Logger
	wsBaseURL string

	mu          sync.Mutex
	markets     map[string]interfaces.Market
	streams     map[string]*BookSynchronizer
	cursorTimes map[string]time.Time
}

var _ interfaces.ExchangeConnector = (*Connector)(nil)

// NewConnector creates a BitMEX connector with the given options.
//
// Example:
//
//	options := interfaces.NewExchangeOptions().
//		WithCredentials("your-api-key", "your-api-secret")
//	connector := bitmex.NewConnector(options, logging.NewZapLogger())
func NewConnector(options *interfaces.ExchangeOptions, logger logging.Logger) *Connector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	opts := *options
	if opts.RESTBaseURL == "" {
		opts.RESTBaseURL = defaultRESTBaseURL
	}
	if opts.WSBaseURL == "" {
		opts.WSBaseURL = defaultWSBaseURL
	}

	return &Connector{
		options:     &opts,
		transport:   NewTransport(&opts, logger),
		logger:      logger,
		wsBaseURL:   opts.WSBaseURL,
		markets:     make(map[string]interfaces.Market),
		streams:     make(map[string]*BookSynchronizer),
		cursorTimes: make(map[string]time.Time),
	}
}

// Transport exposes the underlying REST gate, primarily for quota
// inspection by external throttling policy.
func (c *Connector) Transport() *Transport {
	return c.transport
}

// Market returns the cached metadata for a symbol. Markets must have been
// fetched at least once.
func (c *Connector) Market(symbol string) (interfaces.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	market, ok := c.markets[symbol]
	if !ok {
		return interfaces.Market{}, fmt.Errorf("%w: %s", interfaces.ErrInvalidSymbol, symbol)
	}
	return market, nil
}

// StartBookStream begins mirroring a market's order book over the realtime
// socket. The returned synchronizer is owned by the connector until it
// terminates; GetBook for the symbol is served from it while it runs.
func (c *Connector) StartBookStream(ctx context.Context, symbol string) (*BookSynchronizer, error) {
	c.mu.Lock()
	if existing, ok := c.streams[symbol]; ok {
		select {
		case <-existing.Done():
			// terminal stream, replace it below
		default:
			c.mu.Unlock()
			return existing, nil
		}
	}
	c.mu.Unlock()

	stream := NewBookSynchronizer(c.wsBaseURL, symbol, c.logger)
	if err := stream.Start(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.streams[symbol] = stream
	c.mu.Unlock()
	return stream, nil
}

// GetBook implements interfaces.ExchangeConnector. Markets with a live
// stream are the Streaming variant; all others fall back to the Static REST
// snapshot.
func (c *Connector) GetBook(ctx context.Context, symbol string) (*interfaces.OrderBook, error) {
	c.mu.Lock()
	stream, ok := c.streams[symbol]
	c.mu.Unlock()

	if ok {
		select {
		case <-stream.Done():
			// fall through to the snapshot
		default:
			return stream.Book()
		}
	}
	return c.OrderBookSnapshot(ctx, symbol, 0)
}

// OrderBookSnapshot fetches the Static book variant over REST (unsigned).
// depth 0 requests the venue default.
func (c *Connector) OrderBookSnapshot(ctx context.Context, symbol string, depth int) (*interfaces.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if depth > 0 {
		params.Set("depth", fmt.Sprintf("%d", depth))
	}

	payload, _, err := c.transport.Request(ctx, http.MethodGet, "orderBook/L2", params, nil, false)
	if err != nil {
		return nil, err
	}

	var rows []bookSnapshotRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	book := &interfaces.OrderBook{Symbol: symbol}
	for _, row := range rows {
		level := interfaces.PriceLevel{Price: row.Price, Size: row.Size}
		if row.Side == string(interfaces.Buy) {
			book.Bids = append(book.Bids, level)
		} else {
			book.Asks = append(book.Asks, level)
		}
	}
	return book, nil
}

// Close implements interfaces.ExchangeConnector. It terminates every book
// stream; the transport itself holds no connection state.
func (c *Connector) Close() error {
	c.mu.Lock()
	streams := make([]*BookSynchronizer, 0, len(c.streams))
	for _, stream := range c.streams {
		streams = append(streams, stream)
	}
	c.streams = make(map[string]*BookSynchronizer)
	c.mu.Unlock()

	for _, stream := range streams {
		_ = stream.Close()
	}
	c.transport.signer.Wipe()
	return nil
}
