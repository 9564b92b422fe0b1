package model

// FeedCommand is pushed onto the feed command queue for the external
// market-data process. Direction: Go -> feed (LPUSH, consumer RPOPs).
type FeedCommand struct {
	Type      string            `json:"Type"`
	Market    string            `json:"Market"`
	Payload   map[string]string `json:"Payload"`
	RequestID string            `json:"RequestID"`
}
