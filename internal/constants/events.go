package constants

// 客户端 -> 网关 事件
const (
	EventSubscribePrice   = "subscribe-price"
	EventUnsubscribePrice = "unsubscribe-price"
	EventSubscribeIPO     = "subscribe-ipo"
	EventUnsubscribeIPO   = "unsubscribe-ipo"
	EventJoinTradingRoom  = "join-trading-room"
	EventLeaveTradingRoom = "leave-trading-room"
	EventTradingMessage   = "trading-message"
)

// 网关 -> 客户端 事件
const (
	EventPriceUpdate    = "price-update"
	EventRoomUsersCount = "room-users-count"
	EventIPODataUpdated = "ipo-data-updated"
	EventError          = "error"
)

// 进程内事件 (event bus)
const (
	BusAnnouncementReceived = "announcement.received"
)

// AnonymousUser is the author stamped on chat messages sent without a user id.
const AnonymousUser = "Anonymous"
