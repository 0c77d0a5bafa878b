package model

// Envelope is the body of every JSON response from the catalog API. The
// server encodes Envelope[any]; clients decode into a concrete T or
// json.RawMessage.
type Envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIResponse = Envelope[any]

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Meta accompanies list responses.
type Meta struct {
	Total int `json:"total"`
}

func OK(data any, meta *Meta) APIResponse {
	return APIResponse{Success: true, Data: data, Meta: meta}
}

func Fail(code string, message string, details string) APIResponse {
	return APIResponse{Error: &APIError{Code: code, Message: message, Details: details}}
}
