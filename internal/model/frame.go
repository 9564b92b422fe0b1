package model

import "encoding/json"

// Request is an inbound client frame.
type Request struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is an outbound frame written to a client.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// SymbolRequest is the object form of a symbol payload.
type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

// ErrorMessage tells a single client that one of its requests was rejected.
type ErrorMessage struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// RoomUsersCount reports a room's size after a membership change.
type RoomUsersCount struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}
