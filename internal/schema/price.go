package schema

import "github.com/shopspring/decimal"

// PriceDecimals is the number of implied decimals of a wire price.
// 15000 means 1.5000.
const PriceDecimals = 4

// Price is a fixed-point price with PriceDecimals implied decimals.
// Zero means no quote.
type Price int64

// Quantity is a share count. It is never negative in book state.
type Quantity int64

// Decimal converts the fixed-point price into a decimal.
func (p Price) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -PriceDecimals)
}

func (p Price) String() string {
	return p.Decimal().StringFixed(PriceDecimals)
}

// PriceFromDecimal rounds d to PriceDecimals and returns the fixed-point price.
func PriceFromDecimal(d decimal.Decimal) Price {
	return Price(d.Shift(PriceDecimals).Round(0).IntPart())
}

// ParsePrice parses a decimal string such as "195.50".
func ParsePrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return PriceFromDecimal(d), nil
}
