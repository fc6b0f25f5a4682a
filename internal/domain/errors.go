package domain

import "errors"

var (
	// ErrItemNotFound signals a missing item.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidCategory signals an unknown category name.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrUnsupported signals an operation the configured backend cannot serve.
	ErrUnsupported = errors.New("operation not supported by backend")
)
