package engine

import "errors"

// Sentinel errors reported by sessions and the manager. Validation
// failures are reported as *models.ValidationError instead; transport
// failures pass through as relay.ErrTransport.
var (
	// ErrQuorumFailed means a publish reached the relay set but no relay
	// accepted the document. Optimistic state is kept.
	ErrQuorumFailed = errors.New("no relay accepted the document")
	// ErrNotFound means no document exists at the queried address.
	ErrNotFound = errors.New("no document at this address")
	// ErrNoDocument means the session's page does not exist (never created
	// or deleted), so content mutations have nothing to apply to.
	ErrNoDocument = errors.New("page does not exist")
	// ErrPageExists rejects creating a page over a live document.
	ErrPageExists = errors.New("page already exists")
	// ErrItemNotFound means a mutation referenced a link or group id the
	// current projection does not contain.
	ErrItemNotFound = errors.New("no such link or group")
	// ErrSessionLoading rejects mutations while the initial load or a
	// reload is still in flight.
	ErrSessionLoading = errors.New("session is still loading")
	// ErrSessionClosed rejects operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrReadOnly means the node has no signing key and cannot author.
	ErrReadOnly = errors.New("no signing key configured")
)
