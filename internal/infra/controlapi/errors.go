package controlapi

import (
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the control API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("control api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("control api: %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the backend did not know the task.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }
