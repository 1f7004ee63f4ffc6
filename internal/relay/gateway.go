// Package relay speaks the relay wire protocol over websockets and fans
// queries and publishes out across a configured relay set.
package relay

import (
	"context"

	"linkpage/internal/event"
)

// Receipt summarizes a publish fan-out across the relay set.
type Receipt struct {
	// Accepted counts relays that acknowledged the event.
	Accepted int
	// Total counts relays the publish was attempted against.
	Total int
}

// Gateway is the application's view of the relay network. Query returns
// the events matching a filter, merged and deduplicated across relays;
// when the context deadline cuts collection short it returns whatever
// arrived. Publish fans an event out and reports how many relays accepted
// it. Both return ErrTransport only when no relay was reachable at all.
type Gateway interface {
	Query(ctx context.Context, f event.Filter) ([]event.Event, error)
	Publish(ctx context.Context, ev event.Event) (Receipt, error)
}
