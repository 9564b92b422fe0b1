package constants

// Redis Pub/Sub 频道
const (
	// RedisPubSubIPOAnnouncements 新股公告频道
	RedisPubSubIPOAnnouncements = "announcements.ipo"
)

// 行情指令类型 (Go -> feed process)
const (
	FeedCommandSubscribe   = "SUBSCRIBE"
	FeedCommandUnsubscribe = "UNSUBSCRIBE"
)
