package accountguard

import "github.com/MrEthical07/accountguard/audit"

// Aliases so callers wiring a sink need only this package.
type (
	SecurityEvent     = audit.Event
	SecurityEventType = audit.EventType
	EventSink         = audit.Sink
)
