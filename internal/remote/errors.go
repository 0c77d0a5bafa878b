package remote

import (
	"fmt"
	"net/http"
)

// NetworkError means the request never produced an HTTP response.
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

// ServerError is a non-2xx response. Code and Message come from the error
// envelope when the server sent one.
type ServerError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	message := e.Message
	if message == "" {
		message = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Op, e.Status, e.Code, message)
	}
	return fmt.Sprintf("%s: %d: %s", e.Op, e.Status, message)
}

// Unauthorized reports whether the server rejected the credentials.
func (e *ServerError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}
