package relay

import "errors"

// Transport-level error sentinels.
var (
	// ErrTransport reports that no configured relay could be reached at
	// all. Partial relay failures are not errors; callers get whatever
	// the reachable relays returned.
	ErrTransport = errors.New("no relays reachable")

	// ErrClosed reports use of a pool after Close.
	ErrClosed = errors.New("relay pool closed")
)
