package models

import "time"

// ShapeSignal is emitted by the external spectral feature extractor on
// the bus. Features carries the spectral/orderbook shape attributes
// (centroid, bandwidth, flatness, energy, peak count, ...).
type ShapeSignal struct {
	Symbol     string             `json:"symbol"`
	Subtype    Subtype            `json:"subtype"`
	Score      float64            `json:"score"`
	Features   map[string]float64 `json:"features"`
	DetectedAt time.Time          `json:"detected_at"`
}

func (s *ShapeSignal) Key() string { return s.Symbol }

// ShapeRecorded acknowledges that a shape signal was written to Pattern
// Memory, carrying the id outcomes must later be recorded against.
type ShapeRecorded struct {
	Symbol     string    `json:"symbol"`
	PatternID  string    `json:"pattern_id"`
	Subtype    Subtype   `json:"subtype"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (s *ShapeRecorded) Key() string { return s.Symbol }

// PathAnnotation is a derived golden/blocked marker over a pair of
// symbols, offered to external routing collaborators. This pipeline
// computes the annotation; it never enforces it.
type PathAnnotation struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	WinRate float64 `json:"win_rate"`
	Samples int     `json:"samples"`
	Golden  bool    `json:"golden"`
	Blocked bool    `json:"blocked"`
}
