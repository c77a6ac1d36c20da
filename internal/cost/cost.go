// Package cost converts maintenance costs between their VAT-inclusive and
// VAT-exclusive legs at the fixed Italian rate.
package cost

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalid  = errors.New("cost is not a number")
	ErrNegative = errors.New("cost cannot be negative")
)

// amountPattern bounds a normalised amount to twelve integer digits and six
// decimals. Exponents are not accepted.
var amountPattern = regexp.MustCompile(`^-?\d{1,12}(\.\d{1,6})?$`)

// VATRate is the 22% Italian standard rate as a multiplier.
var VATRate = decimal.RequireFromString("1.22")

// Amount is a cost with both legs at full precision. The zero value is a
// cleared amount.
type Amount struct {
	Gross decimal.Decimal
	Net   decimal.Decimal
	Set   bool
}

// Parse reads a user-entered amount. Both "." and "," are accepted as the
// decimal separator; with a comma, dots are thousands separators and must
// come before it. An empty string yields ok == false.
func Parse(input string) (d decimal.Decimal, ok bool, err error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, ","); i >= 0 {
		if strings.Contains(s[i:], ".") {
			return decimal.Zero, false, ErrInvalid
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	if !amountPattern.MatchString(s) {
		return decimal.Zero, false, ErrInvalid
	}
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, ErrInvalid
	}
	if d.IsNegative() {
		return decimal.Zero, false, ErrNegative
	}
	return d, true, nil
}

// FromGross builds an Amount from the VAT-inclusive leg.
func FromGross(input string) (Amount, error) {
	gross, ok, err := Parse(input)
	if err != nil || !ok {
		return Amount{}, err
	}
	return Amount{Gross: gross, Net: gross.Div(VATRate), Set: true}, nil
}

// FromNet builds an Amount from the VAT-exclusive leg.
func FromNet(input string) (Amount, error) {
	net, ok, err := Parse(input)
	if err != nil || !ok {
		return Amount{}, err
	}
	return Amount{Gross: net.Mul(VATRate), Net: net, Set: true}, nil
}

// Value is the stored cost: the gross leg rounded to cents, or nil when
// the amount is cleared.
func (a Amount) Value() *decimal.Decimal {
	if !a.Set {
		return nil
	}
	v := a.Gross.Round(2)
	return &v
}

func (a Amount) GrossString() string {
	if !a.Set {
		return ""
	}
	return a.Gross.StringFixed(2)
}

func (a Amount) NetString() string {
	if !a.Set {
		return ""
	}
	return a.Net.StringFixed(2)
}

// NetOf returns the VAT-exclusive leg of a stored gross cost, rounded to cents.
func NetOf(gross decimal.Decimal) decimal.Decimal {
	return gross.Div(VATRate).Round(2)
}

// Euro renders d as a euro amount, e.g. "€1,234.50".
func Euro(d decimal.Decimal) string {
	cents := d.Round(2).Shift(2).IntPart()
	return money.New(cents, money.EUR).Display()
}
