// Package features builds the numeric feature vectors consumed by the
// per-venue price-improvement models. Column order is a strict contract
// with the serialized models: the regressors do not name-check columns,
// so a reordered row silently produces wrong predictions.
package features

import "strings"

// Order side codes accepted on inbound requests.
const (
	SideBuy  = "B"
	SideSell = "S"
)

// Columns is the fixed column order shared with the trained venue models.
// It must match the order used at training time.
var Columns = []string{
	"side_num",
	"order_qty",
	"limit_price",
	"bid_price",
	"ask_price",
	"bid_size",
	"ask_size",
}

// OrderRequest describes a candidate order together with the NBBO snapshot
// it should be scored against. Symbol is carried for logging and persistence
// but does not participate in scoring.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   int64   `json:"quantity"`
	LimitPrice float64 `json:"limit_price"`
	BidPrice   float64 `json:"bid_price"`
	AskPrice   float64 `json:"ask_price"`
	BidSize    int64   `json:"bid_size"`
	AskSize    int64   `json:"ask_size"`
}

// SideNum encodes the order side as a signed feature: +1 for buy, -1 for
// anything else. The comparison is case-insensitive, so "b" and "B" encode
// identically; unrecognized codes fall through to sell.
func SideNum(side string) float64 {
	if strings.EqualFold(side, SideBuy) {
		return 1
	}
	return -1
}

// Row assembles the order into the fixed 7-column feature vector described
// by Columns. Every value passes through float32 to match the precision the
// models were trained with.
func (o OrderRequest) Row() []float64 {
	vals := [...]float64{
		SideNum(o.Side),
		float64(o.Quantity),
		o.LimitPrice,
		o.BidPrice,
		o.AskPrice,
		float64(o.BidSize),
		float64(o.AskSize),
	}

	row := make([]float64, len(vals))
	for i, v := range vals {
		row[i] = float64(float32(v))
	}
	return row
}
