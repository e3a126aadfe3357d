package channeldata

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by the channel-data engine. Validation kinds are
// returned as-is; store kinds wrap the underlying driver failure.
var (
	ErrDuplicateIndex  = errors.New("duplicate primary index value")
	ErrIndexOutOfOrder = errors.New("primary index value out of order")
	ErrInvalidRange    = errors.New("invalid index range")
	ErrNotFound        = errors.New("channel data not found")
	ErrRead            = errors.New("channel data read failed")
	ErrWrite           = errors.New("channel data write failed")
	ErrUpdate          = errors.New("channel data update failed")
	ErrDelete          = errors.New("channel data delete failed")
)

// kindError ties a failure to one of the domain error kinds while keeping
// the underlying cause reachable. Cause resolves to the kind so callers can
// classify with errors.Cause; Unwrap exposes the original failure.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string { return fmt.Sprintf("%s: %s", e.kind.Error(), e.cause.Error()) }
func (e *kindError) Cause() error  { return e.kind }
func (e *kindError) Unwrap() error { return e.cause }

// wrapKind returns nil when cause is nil so call sites can wrap
// unconditionally.
func wrapKind(kind, cause error) error {
	if cause == nil {
		return nil
	}
	return &kindError{kind: kind, cause: cause}
}

// IsKind reports whether err resolves to the given error kind.
func IsKind(err, kind error) bool {
	return err != nil && errors.Cause(err) == kind
}
