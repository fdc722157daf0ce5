package bitmex

import (
	"github.com/shopspring/decimal"

	"github.com/veiloq/bitmex-connector/pkg/exchanges/interfaces"
)

// satoshiScale converts raw XBt wallet amounts into XBT.
const satoshiScale = 8

// buildMarket derives an immutable Market from one instrument row.
// Precision is recovered from the instrument's tick and lot steps.
func buildMarket(row instrumentRow) interfaces.Market {
	return interfaces.Market{
		Symbol:            row.Symbol,
		PricePrecision:    precisionFromStep(row.TickSize),
		QuantityPrecision: precisionFromStep(row.LotSize),
		TakerFee:          row.TakerFee,
		Inverse:           row.IsInverse,
		Base: interfaces.Asset{
			Symbol: row.Underlying,
			Scale:  satoshiScale,
		},
		Quote: interfaces.Asset{
			Symbol: row.QuoteCurrency,
		},
	}
}

// precisionFromStep returns the number of decimal digits in a price or lot
// step. A step of 0.5 yields 1, 0.01 yields 2. Whole-number steps yield 0.
func precisionFromStep(step float64) int {
	if step <= 0 {
		return 0
	}
	d := decimal.NewFromFloat(step)
	if exp := int(d.Exponent()); exp < 0 {
		return -exp
	}
	return 0
}

// pricePlaces returns the decimal places used when quantizing and
// formatting prices for a market. Always at least 1.
func pricePlaces(m interfaces.Market) int32 {
	places := m.PricePrecision
	if places < 1 {
		places = 1
	}
	return int32(places)
}

// quantizePrice rounds a raw price to the market's tick precision.
func quantizePrice(m interfaces.Market, price float64) float64 {
	q, _ := decimal.NewFromFloat(price).Round(pricePlaces(m)).Float64()
	return q
}

// formatPrice renders a quantized price with exactly the market's price
// precision digits after the decimal point (minimum 1).
func formatPrice(m interfaces.Market, price float64) string {
	return decimal.NewFromFloat(price).Round(pricePlaces(m)).StringFixed(pricePlaces(m))
}

// quantizeVolume rounds a raw volume to a whole contract count.
func quantizeVolume(volume float64) int64 {
	return decimal.NewFromFloat(volume).Round(0).IntPart()
}

// scaleCost converts a raw cost or commission amount into quote terms by
// shifting it down by the market's price precision.
func scaleCost(m interfaces.Market, raw int64) float64 {
	v, _ := decimal.NewFromInt(raw).Shift(-int32(m.PricePrecision)).Float64()
	return v
}
