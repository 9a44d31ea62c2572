package bifrost

import "errors"

var (
	// Store errors.
	ErrNoQueueStore = errors.New("bifrost: no queue store configured")
	ErrNoTrackStore = errors.New("bifrost: no tracker store configured")

	// Job identity errors.
	ErrUnknownJobKind  = errors.New("bifrost: unknown job kind")
	ErrInvalidIdentity = errors.New("bifrost: invalid job identity")

	// Handler errors.
	ErrNoHandler = errors.New("bifrost: no handler registered for job kind")
)
