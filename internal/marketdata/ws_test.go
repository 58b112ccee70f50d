package marketdata

import (
	"testing"
	"time"
)

func TestParseQuote_Valid(t *testing.T) {
	raw := map[string]any{
		"ch":     "nbbo",
		"symbol": "AAPL",
		"data": map[string]any{
			"bp": "179.9",
			"ap": 180.1,
			"bs": "500",
			"as": float64(600),
			"t":  time.Now().UTC().Format(time.RFC3339),
		},
	}

	q, err := parseQuote(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if q.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", q.Symbol)
	}
	if q.BidPrice != 179.9 || q.AskPrice != 180.1 {
		t.Errorf("unexpected prices: bid=%f ask=%f", q.BidPrice, q.AskPrice)
	}
	if q.BidSize != 500 || q.AskSize != 600 {
		t.Errorf("unexpected sizes: bid=%d ask=%d", q.BidSize, q.AskSize)
	}
}

func TestParseQuote_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		raw  map[string]any
	}{
		{"missing symbol", map[string]any{"data": map[string]any{"bp": 1.0, "ap": 2.0, "bs": 1.0, "as": 1.0}}},
		{"missing data", map[string]any{"symbol": "AAPL"}},
		{"bad bid price", map[string]any{"symbol": "AAPL", "data": map[string]any{"bp": "abc", "ap": 2.0, "bs": 1.0, "as": 1.0}}},
		{"zero ask price", map[string]any{"symbol": "AAPL", "data": map[string]any{"bp": 1.0, "ap": 0.0, "bs": 1.0, "as": 1.0}}},
		{"crossed quote", map[string]any{"symbol": "AAPL", "data": map[string]any{"bp": 180.2, "ap": 180.1, "bs": 1.0, "as": 1.0}}},
		{"bad size type", map[string]any{"symbol": "AAPL", "data": map[string]any{"bp": 1.0, "ap": 2.0, "bs": true, "as": 1.0}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseQuote(tc.raw); err == nil {
				t.Error("expected parse error, got nil")
			}
		})
	}
}

func TestCache_UpdateAndLatest(t *testing.T) {
	c := NewCache()

	if _, ok := c.Latest("AAPL"); ok {
		t.Error("expected no quote for unseen symbol")
	}

	first := Quote{Symbol: "AAPL", BidPrice: 179.9, AskPrice: 180.1, BidSize: 500, AskSize: 600, Ts: time.Now()}
	c.Update(first)

	got, ok := c.Latest("AAPL")
	if !ok {
		t.Fatal("expected cached quote")
	}
	if got.BidPrice != first.BidPrice {
		t.Errorf("expected bid %f, got %f", first.BidPrice, got.BidPrice)
	}

	// Newer quote replaces the old one.
	second := first
	second.BidPrice = 180.0
	c.Update(second)

	got, _ = c.Latest("AAPL")
	if got.BidPrice != 180.0 {
		t.Errorf("expected updated bid 180.0, got %f", got.BidPrice)
	}

	if symbols := c.Symbols(); len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("unexpected symbols: %v", symbols)
	}
}
