package domain

import "time"

// PricePoint is one daily OHLCV bar for a symbol.
// Points are immutable once loaded and ordered by Date per symbol.
type PricePoint struct {
	Date   time.Time `json:"date"`   // trading day, UTC midnight
	Open   float64   `json:"open"`   // opening price
	High   float64   `json:"high"`   // session high
	Low    float64   `json:"low"`    // session low
	Close  float64   `json:"close"`  // closing price, used for marking and fills
	Volume float64   `json:"volume"` // shares traded
}

// Valid reports whether the bar can be used for marking.
func (p PricePoint) Valid() bool {
	return !p.Date.IsZero() && p.Close > 0
}

// SymbolBar is a PricePoint tagged with its symbol.
// Corresponds to daily_bars table in ClickHouse.
type SymbolBar struct {
	Symbol string
	PricePoint
}
