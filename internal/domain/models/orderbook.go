package models

import "time"

// Side of the book a level or wall sits on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Level is the canonical representation of one order-book price level.
// Raw exchange payloads are normalized into this form at the ingestion
// boundary before any detection logic runs.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Notional returns price x size for the level.
func (l Level) Notional() float64 { return l.Price * l.Size }

// RawOrderbook is an order book as delivered by an exchange client.
// Bids and Asks carry heterogeneous level encodings (pair arrays, keyed
// records, string-encoded numbers) that have not been normalized yet.
type RawOrderbook struct {
	Symbol     string
	Exchange   string
	Bids       []interface{}
	Asks       []interface{}
	CapturedAt time.Time
}

// Wall is a single price level whose notional exceeds the configured
// threshold, read as deliberate large-size placement.
type Wall struct {
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Notional float64 `json:"notional"`
	Side     Side    `json:"side"`
}

// OrderbookAnalysis is the immutable output of one analyzer cycle for
// one symbol.
type OrderbookAnalysis struct {
	Symbol        string    `json:"symbol"`
	Exchange      string    `json:"exchange"`
	DetectedAt    time.Time `json:"detected_at"`
	Walls         []Wall    `json:"walls"`
	LayeringScore float64   `json:"layering_score"`
	BidDepth      float64   `json:"bid_depth"`
	AskDepth      float64   `json:"ask_depth"`
}

// Key implements the keyed-message contract used by transport bridges.
func (a *OrderbookAnalysis) Key() string { return a.Symbol }

// WallsOn returns the walls for one side of the book.
func (a *OrderbookAnalysis) WallsOn(side Side) []Wall {
	out := make([]Wall, 0, len(a.Walls))
	for _, w := range a.Walls {
		if w.Side == side {
			out = append(out, w)
		}
	}
	return out
}

// MaxWallNotional returns the largest wall notional on a side, or 0.
func (a *OrderbookAnalysis) MaxWallNotional(side Side) float64 {
	max := 0.0
	for _, w := range a.Walls {
		if w.Side == side && w.Notional > max {
			max = w.Notional
		}
	}
	return max
}
