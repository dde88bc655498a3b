package services

import "time"

const (
	KeyTicket    = "ticket:%s"
	KeyRateLimit = "ratelimit:%d:%s"

	DefaultTicketTTL = 30 * time.Second

	DefaultRateLimitTickets = 10 // per window
	DefaultRateLimitWindow  = time.Minute
)

const (
	KeyChatroomMessages = "chatroom:%s:messages"
	KeyChatroomMembers  = "chatroom:%s:members"
	KeyClientChatrooms  = "client:%d:chatrooms"

	MaxChatroomMessages = 100
	TTLChatroomMessages = 7 * 24 * time.Hour
)
