package crewdesk

import "errors"

var (
	// ErrNotConnected is returned synchronously by every outbound command
	// while the connection is not in StateConnected. Commands are dropped,
	// never queued, so the caller can surface "not sent" immediately.
	ErrNotConnected = errors.New("crewdesk: not connected")

	// errUnknownEvent marks an inbound event name outside the catalogue.
	errUnknownEvent = errors.New("crewdesk: unknown event type")
)
