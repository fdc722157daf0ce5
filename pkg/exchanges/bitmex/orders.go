package bitmex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
)

// participateDoNotInitiate is the execution instruction restricting an order
// to maker-only: the venue cancels it instead of matching it against the
// resting book.
const participateDoNotInitiate = "ParticipateDoNotInitiate"

// orderRequest is the body of POST /api/v1/order.
type orderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	OrderQty int64   `json:"orderQty"`
	OrdType  string  `json:"ordType"`
	ExecInst string  `json:"execInst"`
}

// cancelRequest is the body of DELETE /api/v1/order.
type cancelRequest struct {
	OrderID string `json:"orderID"`
}

// PostOffer implements interfaces.ExchangeConnector. The offer's price is
// quantized to the market's tick precision and its volume to whole
// contracts before submission as a maker-only limit order.
//
// A rejection caused by the maker-only instruction (the order would have
// matched immediately) is an expected outcome: PostOffer returns (nil, nil)
// and the offer is dropped. Any other rejection is an anomaly and is
// returned as an error; the caller may retry or ignore it, nothing here is
// fatal.
func (c *Connector) PostOffer(ctx context.Context, offer interfaces.Offer) (*interfaces.PlacedOrder, error) {
	market, err := c.Market(offer.Symbol)
	if err != nil {
		return nil, err
	}

	body := orderRequest{
		Symbol:   offer.Symbol,
		Side:     string(offer.Side),
		Price:    quantizePrice(market, offer.Price),
		OrderQty: quantizeVolume(offer.Size),
		OrdType:  "Limit",
		ExecInst: participateDoNotInitiate,
	}

	payload, _, err := c.transport.Request(ctx, http.MethodPost, "order", nil, body, true)
	if err != nil {
		if isMakerOnlyRejection(err) {
			c.logger.Debug("maker-only order rejected by policy",
				logging.String("symbol", offer.Symbol),
				logging.String("price", formatPrice(market, body.Price)),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("post offer: %w", err)
	}

	var row orderRow
	if err := decode(payload, &row); err != nil {
		return nil, err
	}

	// The venue can accept the request and cancel the order in the same
	// acknowledgment when it would have crossed the book.
	if row.OrdStatus == "Canceled" && strings.Contains(row.Text, participateDoNotInitiate) {
		c.logger.Debug("maker-only order canceled on arrival",
			logging.String("symbol", offer.Symbol),
			logging.String("price", formatPrice(market, body.Price)),
		)
		return nil, nil
	}
	if row.OrdStatus != "New" && row.OrdStatus != "PartiallyFilled" && row.OrdStatus != "Filled" {
		return nil, fmt.Errorf("unexpected order status %q: %s", row.OrdStatus, row.Text)
	}

	return &interfaces.PlacedOrder{
		OrderID: row.OrderID,
		Symbol:  row.Symbol,
		Side:    interfaces.Side(row.Side),
		Price:   row.Price,
		Size:    row.OrderQty,
		Status:  row.OrdStatus,
	}, nil
}

// CancelOffer implements interfaces.ExchangeConnector. Cancelling an order
// the venue reports as already filled or not found is idempotent success;
// calling CancelOffer twice for the same order never raises a hard error.
// Any other surprise status is returned as a non-fatal anomaly.
func (c *Connector) CancelOffer(ctx context.Context, order interfaces.PlacedOrder) error {
	body := cancelRequest{OrderID: order.OrderID}

	payload, _, err := c.transport.Request(ctx, http.MethodDelete, "order", nil, body, true)
	if err != nil {
		if isBenignCancelOutcome(err) {
			c.logger.Debug("cancel already settled",
				logging.String("orderID", order.OrderID),
			)
			return nil
		}
		return fmt.Errorf("cancel offer %s: %w", order.OrderID, err)
	}

	var rows []orderRow
	if err := decode(payload, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		switch row.OrdStatus {
		case "Canceled", "Filled":
			// terminal either way, the caller drops its tracking entry
		default:
			if strings.Contains(row.Text, "Not Found") || strings.Contains(row.Text, "not found") {
				continue
			}
			return fmt.Errorf("unexpected cancel status %q for %s: %s", row.OrdStatus, row.OrderID, row.Text)
		}
	}
	return nil
}

// PlacedOffers implements interfaces.ExchangeConnector, returning the
// account's open orders for a symbol.
func (c *Connector) PlacedOffers(ctx context.Context, symbol string) ([]interfaces.PlacedOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("filter", `{"open":true}`)

	payload, _, err := c.transport.Request(ctx, http.MethodGet, "order", params, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []orderRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	orders := make([]interfaces.PlacedOrder, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, interfaces.PlacedOrder{
			OrderID: row.OrderID,
			Symbol:  row.Symbol,
			Side:    interfaces.Side(row.Side),
			Price:   row.Price,
			Size:    row.OrderQty,
			Status:  row.OrdStatus,
		})
	}
	return orders, nil
}

// isMakerOnlyRejection reports whether an order submission error is the
// expected maker-only policy rejection.
func isMakerOnlyRejection(err error) bool {
	var apiErr *interfaces.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(apiErr.Message, participateDoNotInitiate) ||
		strings.Contains(apiErr.Message, "would execute immediately")
}

// isBenignCancelOutcome reports whether a cancel error means the order is
// already terminal on the venue side (filled or unknown), which callers
// treat as success.
func isBenignCancelOutcome(err error) bool {
	var apiErr *interfaces.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	message := strings.ToLower(apiErr.Message)
	return strings.Contains(message, "not found") ||
		strings.Contains(message, "already") ||
		strings.Contains(message, "filled")
}
