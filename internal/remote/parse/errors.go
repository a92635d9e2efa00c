package parse

import (
	"fmt"

	"dg-agenda/internal/model"
)

// Parse error codes the driver distinguishes.
const (
	codeObjectNotFound      = 101
	codeOperationForbidden  = 119
	codeValidation          = 142
	codeInvalidSessionToken = 209
)

// apiError is the JSON body of a failed Parse request.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func classify(status int, e *apiError) error {
	if e == nil {
		e = &apiError{}
	}
	switch e.Code {
	case codeObjectNotFound:
		return model.ErrNotFound
	case codeOperationForbidden:
		return model.ErrPermissionDenied
	case codeInvalidSessionToken:
		return fmt.Errorf("%w: %s", model.ErrUnauthenticated, e.Message)
	case codeValidation:
		return fmt.Errorf("%w: %w: %s", model.ErrRemote, model.ErrValidation, e.Message)
	}
	return fmt.Errorf("%w: parse: http %d code %d: %s", model.ErrRemote, status, e.Code, e.Message)
}
