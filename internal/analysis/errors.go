package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. ServerError values unwrap to one of these.
var (
	ErrValidation              = errors.New("invalid request")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrPersistence             = errors.New("persistence failure")
	ErrInternal                = errors.New("internal error")
)

// ServerError is the failure result of an analysis. Code follows HTTP status
// semantics; Message is safe to show to the caller.
type ServerError struct {
	Code    int
	Message string
	Err     error
}

func (e *ServerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServerError) Unwrap() error { return e.Err }

func validationError(msg string) *ServerError {
	return &ServerError{Code: http.StatusBadRequest, Message: msg, Err: ErrValidation}
}

func persistenceError(msg string, cause error) *ServerError {
	return &ServerError{
		Code:    http.StatusInternalServerError,
		Message: msg,
		Err:     fmt.Errorf("%w: %v", ErrPersistence, cause),
	}
}

func internalError(cause any) *ServerError {
	return &ServerError{
		Code:    http.StatusInternalServerError,
		Message: "服务器内部错误，请稍后重试",
		Err:     fmt.Errorf("%w: %v", ErrInternal, cause),
	}
}
