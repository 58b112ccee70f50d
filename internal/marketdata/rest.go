package marketdata

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client fetches quote snapshots over REST, used when a route request omits
// NBBO fields and the streaming cache has no entry for the symbol.
type Client struct {
	base string
	rest *resty.Client
}

func NewREST(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{base, r}
}

type quoteResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Symbol   string  `json:"symbol"`
		BidPrice float64 `json:"bidPrice,string"`
		AskPrice float64 `json:"askPrice,string"`
		BidSize  int64   `json:"bidSize,string"`
		AskSize  int64   `json:"askSize,string"`
		Ts       int64   `json:"ts"`
	} `json:"data"`
}

// Snapshot fetches the current NBBO for a symbol.
func (c *Client) Snapshot(symbol string) (Quote, error) {
	resp := &quoteResp{}
	_, err := c.rest.R().
		SetQueryParam("symbol", symbol).
		SetResult(resp).
		Get(c.base + "/api/v1/quotes/nbbo")
	if err != nil {
		return Quote{}, fmt.Errorf("fetch quote snapshot: %w", err)
	}
	if resp.Code != 0 {
		return Quote{}, fmt.Errorf("quote snapshot: %d %s", resp.Code, resp.Msg)
	}

	ts := time.UnixMilli(resp.Data.Ts)
	if resp.Data.Ts == 0 {
		ts = time.Now()
	}

	return Quote{
		Symbol:   resp.Data.Symbol,
		BidPrice: resp.Data.BidPrice,
		AskPrice: resp.Data.AskPrice,
		BidSize:  resp.Data.BidSize,
		AskSize:  resp.Data.AskSize,
		Ts:       ts,
	}, nil
}
