package model

import (
	"time"
)

// WatchlistItem stores a user's saved symbol. The gateway reads these to
// auto-subscribe a user's session; writes belong to the account service.
type WatchlistItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;uniqueIndex:idx_user_symbol" json:"userId"`
	Symbol    string    `gorm:"uniqueIndex:idx_user_symbol" json:"symbol"`
	Sorter    int       `json:"sorter"`
	CreatedAt time.Time `json:"createdAt"`
}
