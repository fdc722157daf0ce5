package bitmex

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
)

func TestPostOfferQuantizesAndSubmits(t *testing.T) {
	var gotBody orderRequest
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{
			"orderID":"order-1","symbol":"XBTUSD","side":"Buy",
			"price":9342.8,"orderQty":100,"ordStatus":"New"
		}`))
	})

	offer := interfaces.Offer{
		Symbol: "XBTUSD",
		Side:   interfaces.Buy,
		Price:  9342.7501, // off-tick
		Size:   99.6,      // fractional contracts
	}
	placed, err := connector.PostOffer(context.Background(), offer)
	require.NoError(t, err)
	require.NotNil(t, placed)

	assert.InDelta(t, 9342.8, gotBody.Price, 1e-9)
	assert.Equal(t, int64(100), gotBody.OrderQty)
	assert.Equal(t, "Limit", gotBody.OrdType)
	assert.Equal(t, participateDoNotInitiate, gotBody.ExecInst)

	assert.Equal(t, "order-1", placed.OrderID)
	assert.Equal(t, interfaces.Buy, placed.Side)
	assert.Equal(t, int64(100), placed.Size)
	assert.Equal(t, "New", placed.Status)
}

func TestPostOfferUnknownSymbol(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an unknown symbol")
	})

	_, err := connector.PostOffer(context.Background(), interfaces.Offer{Symbol: "NOPEUSD"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidSymbol)
}

func TestPostOfferMakerOnlyRejection(t *testing.T) {
	t.Run("rejected with an error payload", func(t *testing.T) {
		connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Order had execInst of ParticipateDoNotInitiate","name":"ValidationError"}}`))
		})

		placed, err := connector.PostOffer(context.Background(), interfaces.Offer{
			Symbol: "XBTUSD", Side: interfaces.Buy, Price: 9000, Size: 100,
		})
		assert.NoError(t, err)
		assert.Nil(t, placed)
	})

	t.Run("accepted then canceled on arrival", func(t *testing.T) {
		connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"orderID":"order-2","symbol":"XBTUSD","side":"Buy",
				"price":9000,"orderQty":100,"ordStatus":"Canceled",
				"text":"Canceled: Order had execInst of ParticipateDoNotInitiate"
			}`))
		})

		placed, err := connector.PostOffer(context.Background(), interfaces.Offer{
			Symbol: "XBTUSD", Side: interfaces.Buy, Price: 9000, Size: 100,
		})
		assert.NoError(t, err)
		assert.Nil(t, placed)
	})
}

func TestPostOfferUnexpectedStatus(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"orderID":"order-3","symbol":"XBTUSD","side":"Buy",
			"price":9000,"orderQty":100,"ordStatus":"Rejected",
			"text":"Account has insufficient Available Balance"
		}`))
	})

	placed, err := connector.PostOffer(context.Background(), interfaces.Offer{
		Symbol: "XBTUSD", Side: interfaces.Buy, Price: 9000, Size: 100,
	})
	assert.Error(t, err)
	assert.Nil(t, placed)
}

func TestPostOfferStructuredRejection(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid orderQty","name":"ValidationError"}}`))
	})

	placed, err := connector.PostOffer(context.Background(), interfaces.Offer{
		Symbol: "XBTUSD", Side: interfaces.Buy, Price: 9000, Size: 100,
	})
	require.Error(t, err)
	assert.Nil(t, placed)

	var apiErr *interfaces.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ValidationError", apiErr.Name)
}

func TestCancelOffer(t *testing.T) {
	var gotBody cancelRequest
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`[{"orderID":"order-1","ordStatus":"Canceled"}]`))
	})

	order := interfaces.PlacedOrder{OrderID: "order-1", Symbol: "XBTUSD"}
	require.NoError(t, connector.CancelOffer(context.Background(), order))
	assert.Equal(t, "order-1", gotBody.OrderID)
}

func TestCancelOfferIsIdempotent(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{
			"order already filled",
			http.StatusOK,
			`[{"orderID":"order-1","ordStatus":"Filled"}]`,
		},
		{
			"order not found row",
			http.StatusOK,
			`[{"orderID":"order-1","ordStatus":"","text":"Not Found"}]`,
		},
		{
			"not found error payload",
			http.StatusBadRequest,
			`{"error":{"message":"Not Found","name":"HTTPError"}}`,
		},
		{
			"already canceled error payload",
			http.StatusBadRequest,
			`{"error":{"message":"Unable to cancel order: Already canceled","name":"ValidationError"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int64
			connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			})

			order := interfaces.PlacedOrder{OrderID: "order-1", Symbol: "XBTUSD"}
			// Cancelling twice never raises a hard error.
			assert.NoError(t, connector.CancelOffer(context.Background(), order))
			assert.NoError(t, connector.CancelOffer(context.Background(), order))
			assert.Equal(t, int64(2), requests.Load())
		})
	}
}

func TestCancelOfferUnexpectedStatus(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"orderID":"order-1","ordStatus":"PendingCancel","text":"queued"}]`))
	})

	order := interfaces.PlacedOrder{OrderID: "order-1", Symbol: "XBTUSD"}
	assert.Error(t, connector.CancelOffer(context.Background(), order))
}

func TestPlacedOffers(t *testing.T) {
	connector := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/order", r.URL.Path)
		assert.Equal(t, "XBTUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, `{"open":true}`, r.URL.Query().Get("filter"))
		w.Write([]byte(`[
			{"orderID":"order-1","symbol":"XBTUSD","side":"Buy","price":9000,"orderQty":100,"ordStatus":"New"},
			{"orderID":"order-2","symbol":"XBTUSD","side":"Sell","price":9100,"orderQty":50,"ordStatus":"PartiallyFilled"}
		]`))
	})

	orders, err := connector.PlacedOffers(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-1", orders[0].OrderID)
	assert.Equal(t, interfaces.Buy, orders[0].Side)
	assert.Equal(t, "order-2", orders[1].OrderID)
	assert.Equal(t, interfaces.Sell, orders[1].Side)
	assert.Equal(t, int64(50), orders[1].Size)
}
