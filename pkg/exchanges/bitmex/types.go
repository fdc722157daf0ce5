package bitmex

import "time"

// Wire schemas for the REST and streaming endpoints this connector touches.
// Each endpoint decodes into an explicit record type; optional fields are
// pointers, everything else is required. Dynamic map-based decoding is
// deliberately absent.

// instrumentRow is one row of GET /api/v1/instrument/active.
type instrumentRow struct {
	Symbol        string  `json:"symbol"`
	State         string  `json:"state"`
	TickSize      float64 `json:"tickSize"`
	LotSize       float64 `json:"lotSize"`
	TakerFee      float64 `json:"takerFee"`
	IsInverse     bool    `json:"isInverse"`
	Underlying    string  `json:"underlying"`
	QuoteCurrency string  `json:"quoteCurrency"`
	MarkPrice     float64 `json:"markPrice"`
}

// bookSnapshotRow is one row of GET /api/v1/orderBook/L2.
type bookSnapshotRow struct {
	Symbol string  `json:"symbol"`
	ID     int64   `json:"id"`
	Side   string  `json:"side"`
	Size   float64 `json:"size"`
	Price  float64 `json:"price"`
}

// tradeRow is one row of GET /api/v1/trade.
type tradeRow struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Size      float64   `json:"size"`
	Price     float64   `json:"price"`
}

// orderRow is one row of GET/POST/DELETE /api/v1/order.
type orderRow struct {
	OrderID   string  `json:"orderID"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	OrderQty  int64   `json:"orderQty"`
	OrdStatus string  `json:"ordStatus"`
	ExecInst  string  `json:"execInst"`
	Text      string  `json:"text"`
}

// positionRow is one row of GET /api/v1/position.
type positionRow struct {
	Symbol        string  `json:"symbol"`
	AvgEntryPrice float64 `json:"avgEntryPrice"`
	CurrentQty    int64   `json:"currentQty"`
	PosCost       int64   `json:"posCost"`
}

// walletRow is the payload of GET /api/v1/user/wallet.
type walletRow struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// executionRow is one row of GET /api/v1/execution/tradeHistory. Rows with
// an empty side are administrative records (funding, settlement), not trades.
type executionRow struct {
	OrderID   string    `json:"orderID"`
	ExecID    string    `json:"execID"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	LastQty   int64     `json:"lastQty"`
	Price     float64   `json:"price"`
	ExecCost  int64     `json:"execCost"`
	ExecComm  int64     `json:"execComm"`
	Timestamp time.Time `json:"timestamp"`
}

// quoteFillRatioRow is one row of GET /api/v1/user/quoteFillRatio. The
// moving average is null for accounts without recent quoting activity.
type quoteFillRatioRow struct {
	QuoteFillRatioMavg7 *float64 `json:"quoteFillRatioMavg7"`
}

// apiErrorBody is the structured error payload of non-success responses.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error"`
}

// streamMessage is one inbound frame on the realtime socket. Exactly one of
// the three shapes is populated: a greeting (Info), a subscription ack
// (Success/Subscribe), or a table delta (Table/Action/Data).
type streamMessage struct {
	Info      string      `json:"info"`
	Success   bool        `json:"success"`
	Subscribe string      `json:"subscribe"`
	Error     string      `json:"error"`
	Table     string      `json:"table"`
	Action    string      `json:"action"`
	Data      []streamRow `json:"data"`
}

// streamRow is one order-book row inside a table delta. Price is present
// only on rows that introduce a new price level (partial and insert); update
// rows omit it because a level's price is immutable per id.
type streamRow struct {
	ID     int64    `json:"id"`
	Symbol string   `json:"symbol"`
	Side   string   `json:"side"`
	Size   float64  `json:"size"`
	Price  *float64 `json:"price,omitempty"`
}
