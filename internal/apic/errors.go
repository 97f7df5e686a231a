package apic

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is returned for non-2xx responses of the vendor API.
type HTTPError struct {
	StatusCode int
	// Status text, e.g. "404 Not Found".
	Status string
	Body   string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("HTTP error: %s", e.Status)
	}
	return fmt.Sprintf("HTTP error: %s: %s", e.Status, body)
}

// IsUnauthorized reports whether err is (or wraps) an HTTPError with status 401.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}
