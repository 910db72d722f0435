package starboard

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingClient is returned at construction when no platform client is
	// supplied. The service cannot resolve anything without one.
	ErrMissingClient = errors.New("starboard: platform client is required")

	// ErrDuplicateStarboard is returned by Register when the channel already
	// has a starboard for the same emoji.
	ErrDuplicateStarboard = errors.New("starboard: channel already has a starboard for this emoji")

	// ErrNotFound is returned by Unregister when no starboard is configured
	// for the channel.
	ErrNotFound = errors.New("starboard: no starboard configured for channel")
)

// StorageFormatError means the durable store holds something that is not a
// starboard config list. It is fatal on load: proceeding would silently drop
// configs.
type StorageFormatError struct {
	Source string
	Err    error
}

func (e *StorageFormatError) Error() string {
	return fmt.Sprintf("starboard: malformed config store %s: %v", e.Source, e.Err)
}

func (e *StorageFormatError) Unwrap() error {
	return e.Err
}
