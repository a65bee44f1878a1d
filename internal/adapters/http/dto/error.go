// Package dto holds wire shapes shared across HTTP handlers.
package dto

// ErrorResponse is the JSON body of every non-2xx API response. Error
// carries a stable machine-readable type ("not_found",
// "validation_error"), Message the human-readable detail.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func NewErrorResponse(err string, message string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:   err,
		Message: message,
		Code:    code,
	}
}
