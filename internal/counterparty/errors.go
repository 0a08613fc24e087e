package counterparty

import "fmt"

// UpstreamError is returned when the node answers a read request with a
// non-success status. The upstream message is preserved for display.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("counterparty returned %d", e.Status)
	}
	return "counterparty request failed: " + e.Message
}

// ComposeError is returned when the compose endpoint rejects a request,
// either with a non-success status or an explicit error field in its body.
// The upstream message is preserved for display.
type ComposeError struct {
	Message string
}

func (e *ComposeError) Error() string {
	if e.Message == "" {
		return "compose order failed"
	}
	return "compose order failed: " + e.Message
}
