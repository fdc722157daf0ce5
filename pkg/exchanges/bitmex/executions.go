package bitmex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
)

// defaultExecLookback is the fetch window used when no cursor exists yet.
const defaultExecLookback = 24 * time.Hour

// execFetchLimit caps one trade-history page.
const execFetchLimit = 500

// ExecutionsSince implements interfaces.ExchangeConnector. It fetches the
// account's fill records for a market and returns the ones strictly after
// the cursor trade id, preserving the venue's chronological order.
//
// The fetch starts at the cursor's timestamp (or now minus the look-back
// window when no cursor exists). When the cursor id appears in the returned
// batch, everything up to and including it is discarded, which makes the
// scheme duplicate-free and gap-free as long as the venue's retention
// window still contains the cursor. If it no longer does, the cursor is not
// found and the whole window is returned: a reconciliation gap is possible
// and is not detected here.
func (c *Connector) ExecutionsSince(ctx context.Context, market interfaces.Market, cursor string) ([]interfaces.Execution, error) {
	start := time.Now().UTC().Add(-defaultExecLookback)
	if cursor != "" {
		if at, ok := c.cursorTime(cursor); ok {
			start = at
		}
	}

	params := url.Values{}
	params.Set("symbol", market.Symbol)
	params.Set("startTime", start.Format(time.RFC3339))
	params.Set("count", strconv.Itoa(execFetchLimit))
	params.Set("reverse", "false")

	payload, _, err := c.transport.Request(ctx, http.MethodGet, "execution/tradeHistory", params, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []executionRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	executions := make([]interfaces.Execution, 0, len(rows))
	for _, row := range rows {
		// Rows without a side are administrative (funding, settlement).
		if row.Side == "" {
			continue
		}
		executions = append(executions, buildExecution(market, row))
	}
	c.rememberCursorTimes(executions)

	if cursor == "" {
		return executions, nil
	}
	for i, execution := range executions {
		if execution.TradeID == cursor {
			return executions[i+1:], nil
		}
	}
	return executions, nil
}

// buildExecution converts one wire row into an immutable Execution. Gross
// and net volumes come from the raw cost and commission fields scaled by
// the market's price precision. The commission is subtracted while both
// values are still raw integers, so the only rounding happens in the final
// decimal shift.
func buildExecution(market interfaces.Market, row executionRow) interfaces.Execution {
	cost := row.ExecCost
	if cost < 0 {
		cost = -cost
	}

	return interfaces.Execution{
		OrderID:     row.OrderID,
		TradeID:     row.ExecID,
		Symbol:      row.Symbol,
		Side:        interfaces.Side(row.Side),
		Price:       row.Price,
		Size:        row.LastQty,
		GrossVolume: scaleCost(market, cost),
		NetVolume:   scaleCost(market, cost-row.ExecComm),
		Timestamp:   row.Timestamp,
	}
}

// cursorTime returns the remembered timestamp of a cursor trade id.
func (c *Connector) cursorTime(cursor string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.cursorTimes[cursor]
	return at, ok
}

// rememberCursorTimes records each returned trade id's timestamp so a later
// fetch with that id as cursor can start exactly there instead of at the
// full look-back window.
func (c *Connector) rememberCursorTimes(executions []interfaces.Execution) {
	if len(executions) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Only the most recent ids can become cursors; cap the memory.
	if len(c.cursorTimes) > 4*execFetchLimit {
		c.cursorTimes = make(map[string]time.Time)
	}
	for _, execution := range executions {
		c.cursorTimes[execution.TradeID] = execution.Timestamp
	}
}
