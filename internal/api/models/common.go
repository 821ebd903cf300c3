// Package models defines the API request and response shapes.
package models

// Status is the outcome marker carried by every response envelope.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Response is the envelope every API endpoint answers with. Data is null on
// errors and on responses that carry no payload.
type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// NewSuccess builds a success envelope.
func NewSuccess(message string, data any) Response {
	return Response{Status: StatusSuccess, Message: message, Data: data}
}

// NewError builds an error envelope.
func NewError(message string) Response {
	return Response{Status: StatusError, Message: message}
}
