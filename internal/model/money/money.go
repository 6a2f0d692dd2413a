package money

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in centavos.
type Money int64

// FromPesos converts a float peso amount, rounding half away from zero.
func FromPesos(v float64) Money {
	return Money(math.Round(v * 100))
}

// Parse reads decimal strings such as "50", "50.5" or "1,250.00".
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "₱")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromPesos(v), nil
}

// Mul multiplies by an integer quantity.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

// Div splits an amount across qty units, rounding to the nearest centavo.
func (m Money) Div(qty int) Money {
	if qty <= 0 {
		return m
	}
	return Money(math.Round(float64(m) / float64(qty)))
}

// Pesos returns the amount as a float, for spreadsheets and JSON numbers.
func (m Money) Pesos() float64 {
	return float64(m) / 100
}

// Decimal formats the amount as "75.00".
func (m Money) Decimal() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) String() string {
	return "₱" + m.Decimal()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal()), nil
}

// UnmarshalJSON accepts JSON numbers, decimal strings and null.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*m = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := Parse(s)
		if err != nil {
			return err
		}
		*m = v
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", raw, err)
	}
	*m = FromPesos(v)
	return nil
}
