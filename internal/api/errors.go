package api

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey marks a rotate-key response that came back 2xx but
// without a credential in the body.
var ErrMissingAPIKey = errors.New("rotate-key succeeded but apiKey missing in response")

// StatusError is a non-2xx backend response. Body holds a short
// excerpt so log lines stay readable.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend status %d", e.Status)
	}
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Body)
}
