package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo carries per-connection metadata for telemetry.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Username    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
