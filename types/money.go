// Package types provides value types shared across the ledger: asset amounts,
// the asset registry, entity timestamps and validation errors.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Money is an amount of one asset in its minor unit.
// All arithmetic is integer-only.
//
// Examples:
//   - USD(4900) = $49.00 (4900 cents)
//   - BTC(150000000) = ₿1.50000000 (satoshis)
//   - JPY(100) = ¥100
type Money struct {
	Amount int64  `json:"amount"` // Minor units
	Asset  string `json:"asset"`  // Upper-case asset code: "USD", "BTC"
}

// NewMoney creates a Money value for an arbitrary asset code.
func NewMoney(asset string, amount int64) Money {
	return Money{Amount: amount, Asset: NormalizeAssetCode(asset)}
}

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return NewMoney("USD", cents) }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return NewMoney("EUR", cents) }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return NewMoney("GBP", pence) }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return NewMoney("JPY", yen) }

// BTC creates a Money value in Bitcoin (satoshis).
func BTC(sats int64) Money { return NewMoney("BTC", sats) }

// Zero returns a zero Money value in the given asset.
func Zero(asset string) Money { return NewMoney(asset, 0) }

// Add adds two Money values. Panics if assets don't match.
func (m Money) Add(other Money) Money {
	m.assertSameAsset(other)
	return Money{Amount: m.Amount + other.Amount, Asset: m.Asset}
}

// Subtract subtracts another Money value. Panics if assets don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameAsset(other)
	return Money{Amount: m.Amount - other.Amount, Asset: m.Asset}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Asset: m.Asset}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both values have the same amount and asset.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Asset == other.Asset
}

// LessThan returns true if m is less than other. Panics if assets don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameAsset(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if m is greater than other. Panics if assets don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameAsset(other)
	return m.Amount > other.Amount
}

// FormatMajor returns the amount in major units without a symbol.
// USD(4900) formats as "49.00", JPY(100) as "100".
func (m Money) FormatMajor() string {
	precision := assetPrecision(m.Asset)
	if precision == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < precision; i++ {
		divisor *= 10
	}

	negative := m.Amount < 0
	abs := m.Amount
	if negative {
		abs = -abs
	}

	result := fmt.Sprintf("%d.%0*d", abs/divisor, precision, abs%divisor)
	if negative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with the asset symbol.
// Examples: "$49.00", "€199.00", "₿0.00010000"
func (m Money) String() string {
	return assetSymbol(m.Asset) + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount  int64  `json:"amount"`
		Asset   string `json:"asset"`
		Display string `json:"display"`
	}{
		Amount:  m.Amount,
		Asset:   m.Asset,
		Display: m.String(),
	})
}

// FromBalances converts an asset→amount map into Money values sorted by asset code.
func FromBalances(balances map[string]int64) []Money {
	out := make([]Money, 0, len(balances))
	for asset, amount := range balances {
		out = append(out, NewMoney(asset, amount))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func (m Money) assertSameAsset(other Money) {
	if m.Asset != other.Asset {
		panic(fmt.Sprintf("money: asset mismatch: %s != %s", m.Asset, other.Asset))
	}
}

func assetSymbol(code string) string {
	if a, ok := LookupAsset(code); ok && a.Symbol != "" {
		return a.Symbol
	}
	return NormalizeAssetCode(code) + " "
}

func assetPrecision(code string) int {
	if a, ok := LookupAsset(code); ok {
		return a.Precision
	}
	return 2
}
