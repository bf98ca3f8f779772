package airline

import "errors"

// Every error the service returns wraps exactly one of these.
var (
	ErrNotFound  = errors.New("booking not found")
	ErrRejected  = errors.New("request rejected")
	ErrTransient = errors.New("airline backend unavailable")
)
