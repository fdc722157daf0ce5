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

const execHistoryPayload = `[
	{"orderID":"order-1","execID":"exec-1","symbol":"XBTUSD","side":"Buy",
	 "lastQty":100,"price":9000,"execCost":1111111,"execComm":833,
	 "timestamp":"2026-08-20T10:00:00Z"},
	{"execID":"funding-1","symbol":"XBTUSD","side":"",
	 "execCost":42,"timestamp":"2026-08-20T10:30:00Z"},
	{"orderID":"order-2","execID":"exec-2","symbol":"XBTUSD","side":"Sell",
	 "lastQty":50,"price":9100,"execCost":-549450,"execComm":412,
	 "timestamp":"2026-08-20T11:00:00Z"},
	{"orderID":"order-3","execID":"exec-3","symbol":"XBTUSD","side":"Sell",
	 "lastQty":25,"price":9200,"execCost":-271739,"execComm":203,
	 "timestamp":"2026-08-20T12:00:00Z"}
]`

func testMarket() interfaces.Market {
	return interfaces.Market{Symbol: "XBTUSD", PricePrecision: 1, Inverse: true}
}

func TestExecutionsSinceNoCursor(t *testing.T) {
	var gotQuery map[string]string
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/execution/tradeHistory", r.URL.Path)
		gotQuery = map[string]string{
			"symbol":  r.URL.Query().Get("symbol"),
			"count":   r.URL.Query().Get("count"),
			"reverse": r.URL.Query().Get("reverse"),
		}
		w.Write([]byte(execHistoryPayload))
	})

	executions, err := connector.ExecutionsSince(context.Background(), testMarket(), "")
	require.NoError(t, err)

	assert.Equal(t, "XBTUSD", gotQuery["symbol"])
	assert.Equal(t, "500", gotQuery["count"])
	assert.Equal(t, "false", gotQuery["reverse"])

	// The administrative row (empty side) is dropped; fills keep their
	// chronological order.
	require.Len(t, executions, 3)
	assert.Equal(t, "exec-1", executions[0].TradeID)
	assert.Equal(t, "exec-2", executions[1].TradeID)
	assert.Equal(t, "exec-3", executions[2].TradeID)
	assert.Equal(t, interfaces.Buy, executions[0].Side)
	assert.Equal(t, int64(100), executions[0].Size)
}

func TestExecutionsSinceCursorDedup(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(execHistoryPayload))
	})

	executions, err := connector.ExecutionsSince(context.Background(), testMarket(), "exec-2")
	require.NoError(t, err)

	// Strictly after the cursor: exec-1 and exec-2 are already reconciled.
	require.Len(t, executions, 1)
	assert.Equal(t, "exec-3", executions[0].TradeID)
}

func TestExecutionsSinceCursorIsLastRow(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(execHistoryPayload))
	})

	executions, err := connector.ExecutionsSince(context.Background(), testMarket(), "exec-3")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecutionsSinceCursorNotFound(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(execHistoryPayload))
	})

	// A cursor outside the venue's retention window is not in the batch;
	// the whole window comes back and the caller absorbs any overlap.
	executions, err := connector.ExecutionsSince(context.Background(), testMarket(), "exec-expired")
	require.NoError(t, err)
	assert.Len(t, executions, 3)
}

func TestExecutionsSinceVolumeScaling(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"orderID":"order-1","execID":"exec-1","symbol":"XBTUSD","side":"Sell",
			 "lastQty":50,"price":9100,"execCost":-549450,"execComm":412,
			 "timestamp":"2026-08-20T11:00:00Z"}
		]`))
	})

	executions, err := connector.ExecutionsSince(context.Background(), testMarket(), "")
	require.NoError(t, err)
	require.Len(t, executions, 1)

	// Gross is |execCost| scaled by one price decimal; net subtracts the
	// commission before scaling. Negative raw cost (a sell) still yields a
	// positive volume.
	assert.InDelta(t, 54945.0, executions[0].GrossVolume, 1e-9)
	assert.InDelta(t, 54903.8, executions[0].NetVolume, 1e-9)
}

func TestExecutionsSinceStartTime(t *testing.T) {
	var startTimes []string
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		startTimes = append(startTimes, r.URL.Query().Get("startTime"))
		w.Write([]byte(execHistoryPayload))
	})

	ctx := context.Background()
	market := testMarket()

	// First fetch has no cursor: the start time is the look-back window.
	_, err := connector.ExecutionsSince(ctx, market, "")
	require.NoError(t, err)
	require.Len(t, startTimes, 1)
	first, err := time.Parse(time.RFC3339, startTimes[0])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(-defaultExecLookback), first, time.Minute)

	// A later fetch with a cursor from that batch starts exactly at the
	// cursor's remembered timestamp.
	_, err = connector.ExecutionsSince(ctx, market, "exec-2")
	require.NoError(t, err)
	require.Len(t, startTimes, 2)
	assert.Equal(t, "2026-08-20T11:00:00Z", startTimes[1])

	// An unknown cursor falls back to the look-back window.
	_, err = connector.ExecutionsSince(ctx, market, "exec-unknown")
	require.NoError(t, err)
	require.Len(t, startTimes, 3)
	third, err := time.Parse(time.RFC3339, startTimes[2])
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(-defaultExecLookback), third, time.Minute)
}
