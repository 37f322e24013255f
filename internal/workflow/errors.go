package workflow

import "errors"

// Error taxonomy surfaced to the API boundary. Handlers match these with
// errors.Is and map them to HTTP status codes; services wrap them with
// fmt.Errorf("%w: ...") to add detail.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
)
