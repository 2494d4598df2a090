package errors

import (
	stderrors "errors"
)

// ErrorResponse is the envelope a handler error renders as. Pipeline
// rejections (401, 403, 404, 429) use fixed one-line bodies instead;
// this envelope only carries errors a handler chose to surface.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible slice of an AppError. The cause
// chain and HTTP status never serialize.
type ErrorDetail struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ToResponse strips an AppError down to what clients may see.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}}
}

// AsAppError unwraps err to the first AppError in its chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError reports whether err carries an AppError anywhere in its
// chain.
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}
