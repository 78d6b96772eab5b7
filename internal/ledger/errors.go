package ledger

import (
	"errors"
	"fmt"

	"github.com/iliyamo/meeting-room-bot/internal/model"
)

// Error taxonomy of the ledger.  Callers match with errors.Is; refinements
// wrap their category so a handler can switch on either.
var (
	// ErrMalformedInput: bad date, time or selection text.  Retry the step.
	ErrMalformedInput = errors.New("malformed input")
	// ErrPastDate: the date is before today.  Retry the step.
	ErrPastDate = model.ErrPastDate
	// ErrOverlap: the range intersects an existing booking on that date.
	// Retry the time step; the date is kept.
	ErrOverlap = errors.New("overlaps another booking")
	// ErrNotFound: the caller has nothing to cancel or end, or the chosen
	// booking disappeared.  Ends the conversation.
	ErrNotFound = errors.New("booking not found")
	// ErrUnauthorized: caller is not the administrator.  Nothing is touched.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreFailure: the backing table could not be read or written.
	ErrStoreFailure = errors.New("store failure")

	ErrInvalidChoice   = fmt.Errorf("%w: invalid choice", ErrMalformedInput)
	ErrNoActiveMeeting = fmt.Errorf("%w: no active or recent meeting", ErrNotFound)
	// ErrSweepRewrite is returned when the expiry rewrite failed.  The table
	// may not reflect the sweep and must be reported, unlike an empty sweep.
	ErrSweepRewrite = fmt.Errorf("%w: sweep rewrite failed", ErrStoreFailure)
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}

// Authorize returns ErrUnauthorized unless callerID is the administrator.
func Authorize(callerID, adminID int64) error {
	if callerID != adminID {
		return ErrUnauthorized
	}
	return nil
}
