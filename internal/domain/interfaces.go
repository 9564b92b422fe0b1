package domain

import (
	"context"
)

// ===========================
// 行情适配器接口
// ===========================

// FeedAdapter is implemented by each upstream market-data source. The
// gateway only forwards calls to whichever adapter a symbol was routed to;
// adapters push price updates back on their own and own upstream dedup.
type FeedAdapter interface {
	Name() string
	Subscribe(ctx context.Context, connID, symbol string) error
	Unsubscribe(ctx context.Context, connID, symbol string) error
	Cleanup(ctx context.Context, connID string) error
}

// ===========================
// 推送接口
// ===========================

// Deliverer hands an outbound event to a single connection. It must not
// block; false means the event was not accepted (unknown, closed or full).
type Deliverer interface {
	Deliver(connID, event string, payload any) bool
}

// ===========================
// 存储就绪接口
// ===========================

// StoreReadiness is what request handlers see of the connection supervisor.
type StoreReadiness interface {
	IsReady() bool
	EnsureConnected(ctx context.Context) bool
}
