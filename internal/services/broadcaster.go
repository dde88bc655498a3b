package services

import "context"

// Broadcaster pushes an unsolicited message to one client, wherever its
// socket lives.
type Broadcaster interface {
	SendTo(ctx context.Context, clientID int64, kind string, data any) error
}
