package sentiment

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyText    = errors.New("please enter some text to analyze")
	ErrTextTooShort = fmt.Errorf("text is too short, enter at least %d characters", MinTextLength)
)

// TransportError reports a failed call to the remote endpoint.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("sentiment endpoint %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("sentiment endpoint %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
