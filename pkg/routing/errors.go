package routing

import "fmt"

// AppNotFoundError is returned when an application is not present on any
// known server even after a listing refresh. It is deliberately distinct
// from a transport error so callers can advise a re-list instead of
// surfacing an HTTP failure.
type AppNotFoundError struct {
	Name string
}

// Error implements the error interface.
func (e *AppNotFoundError) Error() string {
	return fmt.Sprintf("application %q not found on any server; run list_apps to refresh the application list", e.Name)
}

// RunNotFoundError is returned when no known server recognizes a deployment
// run identifier.
type RunNotFoundError struct {
	RunID string
}

// Error implements the error interface.
func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("deployment run %q not found on any server; it may belong to a different organization or have been pruned", e.RunID)
}
