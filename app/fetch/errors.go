package fetch

import "fmt"

// HTTPError is returned when the upstream answered with a non-success status.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error fetching %s: %s", e.URL, e.Status)
}

// NetworkError wraps transport failures, timeouts included.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
