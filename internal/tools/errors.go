package tools

import "errors"

var (
	ErrToolNotFound          = errors.New("tool not found")
	ErrToolNameEmpty         = errors.New("tool name cannot be empty")
	ErrToolExecuteNil        = errors.New("tool execute function cannot be nil")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrMissingRequiredArg    = errors.New("missing required argument")
	ErrInvalidArgType        = errors.New("invalid argument type")

	// ErrNoResults is returned by lookups that found nothing.
	ErrNoResults = errors.New("no results")
)
