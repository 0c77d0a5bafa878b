package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrBusy            = errors.New("a create is already in progress")
	ErrCommitInFlight  = errors.New("an order commit is already in progress")
	ErrNoPendingDelete = errors.New("no delete is pending confirmation")
	ErrUnknownCase     = errors.New("case is not in the list")
)

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
