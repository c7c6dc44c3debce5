package types

import (
	"sort"
	"strings"
	"sync"
)

// AssetType classifies an asset.
type AssetType string

const (
	AssetFiat      AssetType = "fiat"
	AssetCrypto    AssetType = "crypto"
	AssetCommodity AssetType = "commodity"
	AssetCustom    AssetType = "custom"
)

// Asset describes a unit of value the ledger can hold.
// Precision is the number of decimal places represented by one minor unit.
type Asset struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Type      AssetType `json:"type"`
	Precision int       `json:"precision"`
}

// builtinAssets is the table used for formatting and as the default registry.
var builtinAssets = []Asset{
	{Code: "USD", Name: "US Dollar", Symbol: "$", Type: AssetFiat, Precision: 2},
	{Code: "EUR", Name: "Euro", Symbol: "€", Type: AssetFiat, Precision: 2},
	{Code: "GBP", Name: "British Pound", Symbol: "£", Type: AssetFiat, Precision: 2},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF ", Type: AssetFiat, Precision: 2},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Type: AssetFiat, Precision: 0},
	{Code: "BTC", Name: "Bitcoin", Symbol: "₿", Type: AssetCrypto, Precision: 8},
	{Code: "ETH", Name: "Ether", Symbol: "Ξ", Type: AssetCrypto, Precision: 9},
	{Code: "XAU", Name: "Gold (grams)", Symbol: "XAU ", Type: AssetCommodity, Precision: 3},
}

// DefaultAssets returns a copy of the built-in asset table.
func DefaultAssets() []Asset {
	out := make([]Asset, len(builtinAssets))
	copy(out, builtinAssets)
	return out
}

// NormalizeAssetCode upper-cases and trims an asset code.
func NormalizeAssetCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AssetRegistry holds the assets accepted by a ledger instance.
type AssetRegistry struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

// NewAssetRegistry creates a registry seeded with the given assets.
func NewAssetRegistry(assets ...Asset) *AssetRegistry {
	r := &AssetRegistry{assets: make(map[string]Asset, len(assets))}
	for _, a := range assets {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an asset.
func (r *AssetRegistry) Register(a Asset) {
	a.Code = NormalizeAssetCode(a.Code)
	if a.Type == "" {
		a.Type = AssetCustom
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.Code] = a
}

// Lookup returns the asset registered under code.
func (r *AssetRegistry) Lookup(code string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[NormalizeAssetCode(code)]
	return a, ok
}

// Validate returns a ValidationError when code is empty or not registered.
func (r *AssetRegistry) Validate(code string) error {
	if NormalizeAssetCode(code) == "" {
		return ValidationError{Field: "asset", Message: "asset code is required"}
	}
	if _, ok := r.Lookup(code); !ok {
		return ValidationError{Field: "asset", Message: "unknown asset " + NormalizeAssetCode(code)}
	}
	return nil
}

// Codes returns the registered asset codes in sorted order.
func (r *AssetRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.assets))
	for code := range r.assets {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LookupAsset resolves code against the built-in table.
func LookupAsset(code string) (Asset, bool) {
	code = NormalizeAssetCode(code)
	for _, a := range builtinAssets {
		if a.Code == code {
			return a, true
		}
	}
	return Asset{}, false
}
