package models

// ErrorResponse is the body of a rejected HTTP request.
type ErrorResponse struct {
	Error string `json:"error"`
}
