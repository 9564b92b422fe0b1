package model

import "time"

// ChatMessage is the envelope delivered to trading-room members. ID and
// Timestamp are always stamped by the server.
type ChatMessage struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// TradingMessageRequest is what a client submits for a trading room.
type TradingMessageRequest struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}
