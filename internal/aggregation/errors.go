package aggregation

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("aggregation session does not exist")
	ErrIllegalTransition = errors.New("operation is not legal in the session's current state")
	ErrUnknownCandidate  = errors.New("selected candidate is not present in the session's results")
	ErrNoCandidate       = errors.New("session holds no aggregated candidate to save")
)

// DuplicateTitleError reports that saving the candidate would collide with
// an existing record sharing its exact title under a different external
// ID. It is never resolved silently; the caller must surface the choice
// and come back through ResolveConflict.
type DuplicateTitleError struct {
	Conflict TitleConflict
}

func (err *DuplicateTitleError) Error() string {
	return fmt.Sprintf("a record titled %q already exists (id %d)", err.Conflict.ExistingTitle, err.Conflict.ExistingID)
}
