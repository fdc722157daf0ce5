package bitmex

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
)

func TestMarketsRefreshesCache(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/instrument/active", r.URL.Path)
		// Unsigned endpoint.
		assert.Empty(t, r.Header.Get("api-key"))
		w.Write([]byte(`[
			{"symbol":"ETHUSD","state":"Open","tickSize":0.05,"lotSize":1,
			 "takerFee":0.00075,"isInverse":false,"underlying":"ETH","quoteCurrency":"USD"}
		]`))
	})

	markets, err := connector.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "ETHUSD", markets[0].Symbol)
	assert.Equal(t, 2, markets[0].PricePrecision)

	// The cache is replaced wholesale: the pre-seeded XBTUSD entry is gone.
	_, err = connector.Market("XBTUSD")
	assert.ErrorIs(t, err, interfaces.ErrInvalidSymbol)
	market, err := connector.Market("ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, "ETH", market.Base.Symbol)
}

func TestTradesSince(t *testing.T) {
	since := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/trade", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "2026-08-20T10:00:00Z", r.URL.Query().Get("startTime"))
		assert.Equal(t, "false", r.URL.Query().Get("reverse"))
		w.Write([]byte(`[
			{"timestamp":"2026-08-20T10:00:01Z","symbol":"XBTUSD","side":"Buy","size":100,"price":9000},
			{"timestamp":"2026-08-20T10:00:02Z","symbol":"XBTUSD","side":"Sell","size":50,"price":9000.5}
		]`))
	})

	trades, err := connector.TradesSince(context.Background(), "XBTUSD", since)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, interfaces.Buy, trades[0].Side)
	assert.InDelta(t, 9000, trades[0].Price, 1e-9)
	assert.True(t, trades[1].Timestamp.After(trades[0].Timestamp))
}

func TestAccountPositions(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/position", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("api-signature"))
		w.Write([]byte(`[
			{"symbol":"XBTUSD","avgEntryPrice":9000.5,"currentQty":-100,"posCost":1111111}
		]`))
	})

	positions, err := connector.AccountPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "XBTUSD", positions[0].Symbol)
	assert.InDelta(t, 9000.5, positions[0].AvgEntryPrice, 1e-9)
	assert.Equal(t, int64(-100), positions[0].CurrentQty)
	assert.Equal(t, int64(1111111), positions[0].Cost)
}

func TestAccountBalances(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/wallet", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("api-signature"))
		w.Write([]byte(`{"currency":"XBt","amount":123456789}`))
	})

	balances, err := connector.AccountBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "XBt", balances[0].Asset)
	assert.Equal(t, int64(123456789), balances[0].Amount)
}

func TestQuoteFillRatios(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/user/quoteFillRatio", r.URL.Path)
		w.Write([]byte(`[
			{"quoteFillRatioMavg7":0.61},
			{"quoteFillRatioMavg7":null},
			{"quoteFillRatioMavg7":0.05}
		]`))
	})

	samples, err := connector.QuoteFillRatios(context.Background())
	require.NoError(t, err)

	// Null entries (no recent quoting activity) are skipped.
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.61, samples[0], 1e-9)
	assert.InDelta(t, 0.05, samples[1], 1e-9)
}
