package ws

import "time"

// ConnInfo identifies one notification socket in lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Role        string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
