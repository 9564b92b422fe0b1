package model

import (
	"encoding/json"
	"time"
)

// PriceUpdate is pushed by a feed adapter for a normalized symbol.
type PriceUpdate struct {
	Symbol string          `json:"symbol"`
	Data   json.RawMessage `json:"data"`
}

// Announcement is a cross-cutting notice fanned out to the announcement room.
type Announcement struct {
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}
