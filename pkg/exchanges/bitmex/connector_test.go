package bitmex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
)

// newTestConnector builds a connector aimed at the given REST handler, with
// throttling neutralized and the XBTUSD market pre-cached.
func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	options := interfaces.NewExchangeOptions().WithCredentials("test-key", "test-secret")
	options.RESTBaseURL = server.URL
	options.MaxRequestsPerSecond = 1000

	connector := NewConnector(options, nil)
	connector.transport.sleep = func(time.Duration) {}
	connector.markets["XBTUSD"] = interfaces.Market{
		Symbol:            "XBTUSD",
		PricePrecision:    1,
		QuantityPrecision: 0,
		Inverse:           true,
		Base:              interfaces.Asset{Symbol: "XBT", Scale: 8},
		Quote:             interfaces.Asset{Symbol: "USD", Scale: 8},
	}
	return connector
}

func TestMarketLookup(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {})

	market, err := connector.Market("XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, "XBTUSD", market.Symbol)

	_, err = connector.Market("NOPEUSD")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSymbol)
}

func TestGetBookSnapshotFallback(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orderBook/L2", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[
			{"symbol":"XBTUSD","id":1,"side":"Sell","size":5,"price":101},
			{"symbol":"XBTUSD","id":2,"side":"Buy","size":10,"price":100}
		]`))
	})

	// No stream was started, so GetBook serves the REST snapshot.
	book, err := connector.GetBook(context.Background(), "XBTUSD")
	require.NoError(t, err)
	assert.Equal(t, "XBTUSD", book.Symbol)
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.InDelta(t, 100, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 101, book.Asks[0].Price, 1e-9)
}

func TestOrderBookSnapshotDepth(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("depth"))
		w.Write([]byte(`[]`))
	})

	book, err := connector.OrderBookSnapshot(context.Background(), "XBTUSD", 25)
	require.NoError(t, err)
	assert.Empty(t, book.Bids)
	assert.Empty(t, book.Asks)
}

func TestConnectorCloseIsIdempotent(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {})

	require.NoError(t, connector.Close())
	require.NoError(t, connector.Close())
}
