// Package marketdata supplies NBBO quote snapshots to the router, either
// streamed over a websocket feed or fetched on demand over REST.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Quote is the latest NBBO snapshot for a symbol.
type Quote struct {
	Symbol   string    `json:"symbol"`
	BidPrice float64   `json:"bid_price"`
	AskPrice float64   `json:"ask_price"`
	BidSize  int64     `json:"bid_size"`
	AskSize  int64     `json:"ask_size"`
	Ts       time.Time `json:"ts"`
}

// WS streams NBBO quotes for a set of symbols.
type WS struct{ url string }

func NewWS(u string) WS { return WS{u} }

// Stream subscribes to quote updates for the symbols and pushes them to the
// quotes channel until the context is canceled. Connection failures
// reconnect with exponential backoff; transient errors are reported on the
// errors channel without stopping the stream.
func (w WS) Stream(ctx context.Context, symbols []string, quotes chan<- Quote, errors chan<- error, ping time.Duration) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := w.streamOnce(ctx, symbols, quotes, errors, ping); err != nil {
				log.Warn().Err(err).Dur("backoff", backoff).Msg("quote feed disconnected, reconnecting")
				select {
				case errors <- fmt.Errorf("quote feed reconnect: %w", err):
				default:
				}

				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}

				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = time.Second
		}
	}
}

func (w WS) streamOnce(ctx context.Context, symbols []string, quotes chan<- Quote, errors chan<- error, ping time.Duration) error {
	log.Info().Str("url", w.url).Int("symbols_count", len(symbols)).Msg("connecting to quote feed")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	var args []map[string]string
	for _, s := range symbols {
		args = append(args, map[string]string{"symbol": s, "ch": "nbbo"})
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	pingTicker := time.NewTicker(ping)
	defer pingTicker.Stop()

	lastDataReceived := time.Now()
	healthTicker := time.NewTicker(30 * time.Second)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return fmt.Errorf("ping failed: %w", err)
			}
		case <-healthTicker.C:
			if time.Since(lastDataReceived) > 60*time.Second {
				return fmt.Errorf("quote feed stale, no data for %v", time.Since(lastDataReceived))
			}
		default:
			conn.SetReadDeadline(time.Now().Add(30 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return err
				}
				return fmt.Errorf("read message failed: %w", err)
			}

			lastDataReceived = time.Now()

			var raw map[string]any
			if err := json.Unmarshal(msg, &raw); err != nil {
				log.Debug().Err(err).Str("message", string(msg)).Msg("failed to parse quote feed message")
				continue
			}

			if op, ok := raw["op"].(string); ok && op == "subscribe" {
				log.Info().Interface("response", raw).Msg("quote feed subscription acknowledged")
				continue
			}

			if raw["ch"] != "nbbo" {
				continue
			}

			q, err := parseQuote(raw)
			if err != nil {
				log.Debug().Err(err).Interface("raw_data", raw).Msg("failed to parse quote")
				select {
				case errors <- fmt.Errorf("parse quote: %w", err):
				default:
				}
				continue
			}

			select {
			case quotes <- q:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func parseQuote(m map[string]any) (Quote, error) {
	symbol, ok := m["symbol"].(string)
	if !ok || symbol == "" {
		return Quote{}, fmt.Errorf("missing symbol in quote")
	}

	data, ok := m["data"].(map[string]any)
	if !ok {
		return Quote{}, fmt.Errorf("invalid quote data format")
	}

	bid, err := toFloat(data["bp"])
	if err != nil {
		return Quote{}, fmt.Errorf("invalid bid price: %w", err)
	}
	ask, err := toFloat(data["ap"])
	if err != nil {
		return Quote{}, fmt.Errorf("invalid ask price: %w", err)
	}
	if bid <= 0 || ask <= 0 {
		return Quote{}, fmt.Errorf("non-positive quote: bid=%f ask=%f", bid, ask)
	}
	if ask < bid {
		return Quote{}, fmt.Errorf("crossed quote: bid=%f ask=%f", bid, ask)
	}

	bidSize, err := toFloat(data["bs"])
	if err != nil {
		return Quote{}, fmt.Errorf("invalid bid size: %w", err)
	}
	askSize, err := toFloat(data["as"])
	if err != nil {
		return Quote{}, fmt.Errorf("invalid ask size: %w", err)
	}

	ts := time.Now()
	if s, ok := data["t"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			ts = parsed
		}
	}

	return Quote{
		Symbol:   symbol,
		BidPrice: bid,
		AskPrice: ask,
		BidSize:  int64(bidSize),
		AskSize:  int64(askSize),
		Ts:       ts,
	}, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected numeric type %T", v)
	}
}
