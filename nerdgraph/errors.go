package nerdgraph

import "fmt"

// ProtocolError is returned for transport failures, non-2xx responses,
// GraphQL `errors` payloads and responses whose shape cannot be used.
type ProtocolError struct {
	Status  int
	Reason  string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Status == 0 && e.Reason == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (status: %d, reason: %s)", e.Message, e.Status, e.Reason)
}

func newProtocolError(status int, reason string, format string, args ...any) *ProtocolError {
	return &ProtocolError{
		Status:  status,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// PaginationExhaustedError is returned when a paginated query still reports
// a continuation cursor after the client's page limit has been reached.
type PaginationExhaustedError struct {
	CursorPath string
	Pages      int
}

func (e *PaginationExhaustedError) Error() string {
	return fmt.Sprintf("pagination did not terminate after %d pages (cursor path %s)", e.Pages, e.CursorPath)
}
