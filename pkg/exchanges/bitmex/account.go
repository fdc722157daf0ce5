package bitmex

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/bitmex-connector/pkg/logging"
)

// Markets implements interfaces.ExchangeConnector. It fetches the venue's
// active instruments (unsigned) and replaces the connector's cached market
// set wholesale.
func (c *Connector) Markets(ctx context.Context) ([]interfaces.Market, error) {
	payload, _, err := c.transport.Request(ctx, http.MethodGet, "instrument/active", nil, nil, false)
	if err != nil {
		return nil, err
	}

	var rows []instrumentRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	markets := make([]interfaces.Market, 0, len(rows))
	fresh := make(map[string]interfaces.Market, len(rows))
	for _, row := range rows {
		market := buildMarket(row)
		markets = append(markets, market)
		fresh[market.Symbol] = market
	}

	c.mu.Lock()
	c.markets = fresh
	c.mu.Unlock()

	c.logger.Info("market metadata refreshed", logging.Int("markets", len(markets)))
	return markets, nil
}

// TradesSince implements interfaces.ExchangeConnector, returning public
// trades (unsigned) for a symbol from the given time onward.
func (c *Connector) TradesSince(ctx context.Context, symbol string, since time.Time) ([]interfaces.Trade, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("startTime", since.UTC().Format(time.RFC3339))
	params.Set("reverse", "false")

	payload, _, err := c.transport.Request(ctx, http.MethodGet, "trade", params, nil, false)
	if err != nil {
		return nil, err
	}

	var rows []tradeRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	trades := make([]interfaces.Trade, 0, len(rows))
	for _, row := range rows {
		trades = append(trades, interfaces.Trade{
			Symbol:    row.Symbol,
			Side:      interfaces.Side(row.Side),
			Price:     row.Price,
			Size:      row.Size,
			Timestamp: row.Timestamp,
		})
	}
	return trades, nil
}

// AccountPositions implements interfaces.ExchangeConnector.
func (c *Connector) AccountPositions(ctx context.Context) ([]interfaces.Position, error) {
	payload, _, err := c.transport.Request(ctx, http.MethodGet, "position", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []positionRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	positions := make([]interfaces.Position, 0, len(rows))
	for _, row := range rows {
		positions = append(positions, interfaces.Position{
			Symbol:        row.Symbol,
			AvgEntryPrice: row.AvgEntryPrice,
			CurrentQty:    row.CurrentQty,
			Cost:          row.PosCost,
		})
	}
	return positions, nil
}

// AccountBalances implements interfaces.ExchangeConnector.
func (c *Connector) AccountBalances(ctx context.Context) ([]interfaces.Balance, error) {
	payload, _, err := c.transport.Request(ctx, http.MethodGet, "user/wallet", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var row walletRow
	if err := decode(payload, &row); err != nil {
		return nil, err
	}

	return []interfaces.Balance{{
		Asset:  row.Currency,
		Amount: row.Amount,
	}}, nil
}

// QuoteFillRatios implements interfaces.ExchangeConnector. It samples the
// venue's 7-day moving average quote fill ratio for external throttling
// policy, keeping only finite numeric entries; accounts without recent
// quoting activity report null and are skipped.
func (c *Connector) QuoteFillRatios(ctx context.Context) ([]float64, error) {
	payload, _, err := c.transport.Request(ctx, http.MethodGet, "user/quoteFillRatio", nil, nil, true)
	if err != nil {
		return nil, err
	}

	var rows []quoteFillRatioRow
	if err := decode(payload, &rows); err != nil {
		return nil, err
	}

	samples := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.QuoteFillRatioMavg7 == nil {
			continue
		}
		sample := *row.QuoteFillRatioMavg7
		if math.IsNaN(sample) || math.IsInf(sample, 0) {
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}
