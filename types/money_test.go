package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		amount  int64
		asset   string
		display string
	}{
		{"USD", USD(4900), 4900, "USD", "$49.00"},
		{"EUR", EUR(19900), 19900, "EUR", "€199.00"},
		{"GBP", GBP(9900), 9900, "GBP", "£99.00"},
		{"JPY", JPY(100), 100, "JPY", "¥100"},
		{"BTC", BTC(150000000), 150000000, "BTC", "₿1.50000000"},
		{"lower-case code", NewMoney("eur", 5), 5, "EUR", "€0.05"},
		{"unknown asset", NewMoney("pts", 1234), 1234, "PTS", "PTS 12.34"},
		{"Zero USD", Zero("usd"), 0, "USD", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Asset != tt.asset {
				t.Errorf("Asset: got %s, want %s", tt.money.Asset, tt.asset)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Negate", func() Money { return USD(100).Negate() }, USD(-100)},
		{"Chain", func() Money { return BTC(10).Add(BTC(5)).Subtract(BTC(3)) }, BTC(12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyAssetMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for asset mismatch")
		}
	}()
	_ = USD(100).Add(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	if !USD(100).LessThan(USD(200)) {
		t.Error("expected 100 < 200")
	}
	if !USD(300).GreaterThan(USD(200)) {
		t.Error("expected 300 > 200")
	}
	if USD(100).Equal(EUR(100)) {
		t.Error("different assets must not be equal")
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{USD(5), "0.05"},
		{USD(-4900), "-49.00"},
		{JPY(-100), "-100"},
		{NewMoney("XAU", 1500), "1.500"},
	}

	for _, tt := range tests {
		if got := tt.money.FormatMajor(); got != tt.want {
			t.Errorf("FormatMajor(%d %s) = %q, want %q", tt.money.Amount, tt.money.Asset, got, tt.want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["asset"] != "USD" {
		t.Errorf("asset: got %v", decoded["asset"])
	}
	if decoded["display"] != "$49.00" {
		t.Errorf("display: got %v", decoded["display"])
	}
}

func TestFromBalances(t *testing.T) {
	got := FromBalances(map[string]int64{"USD": 10, "BTC": 2, "EUR": 0})
	want := []string{"BTC", "EUR", "USD"}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i, code := range want {
		if got[i].Asset != code {
			t.Errorf("position %d: got %s, want %s", i, got[i].Asset, code)
		}
	}
}

func TestAssetRegistry(t *testing.T) {
	r := NewAssetRegistry(DefaultAssets()...)

	if err := r.Validate("usd"); err != nil {
		t.Errorf("USD should be valid: %v", err)
	}

	err := r.Validate("DOGE")
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "asset" {
		t.Errorf("expected asset ValidationError, got %v", err)
	}

	if err := r.Validate("  "); err == nil {
		t.Error("expected error for empty asset code")
	}

	r.Register(Asset{Code: "doge", Precision: 8})
	a, ok := r.Lookup("DOGE")
	if !ok {
		t.Fatal("expected DOGE after register")
	}
	if a.Type != AssetCustom {
		t.Errorf("expected default type %q, got %q", AssetCustom, a.Type)
	}
}

func TestValidateAmount(t *testing.T) {
	for _, amount := range []int64{0, -1} {
		if err := ValidateAmount(amount); err == nil {
			t.Errorf("amount %d should be rejected", amount)
		}
	}
	if err := ValidateAmount(1); err != nil {
		t.Errorf("amount 1 should be accepted: %v", err)
	}
}
