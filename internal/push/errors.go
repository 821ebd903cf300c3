package push

import "fmt"

// NetworkError indicates a transport-level failure (connect, timeout, TLS)
// while talking to an external API. The wrapped error carries the cause.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
