package interfaces

import (
	"time"
)

// Side identifies which side of the book an offer or trade sits on.
type Side string

const (
	Buy  Side = "Buy"
	Sell Side = "Sell"
)

// Asset describes one currency or contract denomination referenced by a
// market.
type Asset struct {
	// Symbol is the asset identifier in exchange format (e.g. "XBt", "USD")
	Symbol string

	// Scale is the power-of-ten divisor converting raw integer amounts
	// (as reported by the exchange) into asset units
	Scale int
}

// Market describes one tradable instrument. Markets are constructed once per
// metadata refresh and are immutable afterwards; a refresh replaces the set
// wholesale.
type Market struct {
	// Symbol is the instrument identifier in exchange format (e.g. "XBTUSD")
	Symbol string

	// PricePrecision is the number of decimal digits in a quantized price
	PricePrecision int

	// QuantityPrecision is the number of decimal digits in a quantized
	// volume; zero for markets traded in whole contracts
	QuantityPrecision int

	// TakerFee is the taker fee rate charged on aggressive fills
	TakerFee float64

	// Inverse marks inverse contracts (settled in the base asset)
	Inverse bool

	// Base is the primary asset of the pair
	Base Asset

	// Quote is the counter asset of the pair
	Quote Asset
}

// Offer is one price level the caller wants resting on the book, or one
// level observed in it. Offers are value objects: a change in price or size
// produces a new Offer, never a mutation.
type Offer struct {
	Symbol string
	Side   Side
	Price  float64
	Size   float64
}

// PriceLevel is one aggregated level of an order book snapshot.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a point-in-time view of one market's book. Both sides are
// sorted ascending by price, matching the upstream feed's ordering.
type OrderBook struct {
	Symbol string
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// PlacedOrder is an order acknowledged by the exchange. It exists from the
// accepted submission until a terminal cancel or fill acknowledgment, at
// which point the caller drops it from tracking.
type PlacedOrder struct {
	OrderID string
	Symbol  string
	Side    Side
	Price   float64
	// Size is the order quantity in whole contracts
	Size int64
	// Status is the venue order state (e.g. "New", "Filled", "Canceled")
	Status string
}

// Trade is one public market trade.
type Trade struct {
	Symbol    string
	Side      Side
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Execution is one fill against the caller's own orders. Immutable once
// constructed. Executions are totally ordered by (Timestamp, TradeID);
// reconciliation assumes the venue returns them in stable chronological
// order.
type Execution struct {
	OrderID string
	// TradeID is the venue-unique identifier of this fill; it doubles as
	// the reconciliation cursor
	TradeID string
	Symbol  string
	Side    Side
	Price   float64
	// Size is the filled quantity in contracts
	Size int64
	// GrossVolume is the traded value before fees, in quote terms scaled
	// by the market's price precision
	GrossVolume float64
	// NetVolume is GrossVolume adjusted for commission
	NetVolume float64
	Timestamp time.Time
}

// Position is one open position on the account.
type Position struct {
	Symbol        string
	AvgEntryPrice float64
	// CurrentQty is the signed position size in contracts
	CurrentQty int64
	// Cost is the raw position cost as reported by the venue
	Cost int64
}

// Balance is one wallet balance entry.
type Balance struct {
	// Asset is the wallet currency symbol
	Asset string
	// Amount is the raw balance in the asset's smallest unit
	Amount int64
}

// EventSeverity classifies stream events delivered outside the request path.
type EventSeverity int

const (
	// Advisory events report anomalies the caller may retry or ignore
	// (unexpected order or cancel statuses).
	Advisory EventSeverity = iota

	// Fatal events terminate their source; a fatal event from a book
	// stream means the stream is closed and must be reconstructed.
	Fatal
)

// String returns the string representation of an event severity.
func (s EventSeverity) String() string {
	switch s {
	case Advisory:
		return "advisory"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StreamEvent is one advisory or fatal condition raised by a background
// stream, delivered on a channel rather than as a return value.
type StreamEvent struct {
	Severity EventSeverity
	Symbol   string
	Err      error
}
