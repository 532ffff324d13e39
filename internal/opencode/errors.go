package opencode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// RequestError is returned for any non-2xx response from the server.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e == nil {
		return "opencode request failed"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("opencode request failed (%s %s): %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// StatusCode extracts the HTTP status from err, or 0 when err did not come
// from a server response.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr != nil {
		return reqErr.StatusCode
	}
	return 0
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
