package features

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAttribute = errors.New("missing attribute")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidType      = errors.New("invalid attribute type")
	ErrEmptyDataset     = errors.New("empty dataset")
	ErrSchemaMismatch   = errors.New("schema mismatch")
)

// AttributeError reports a record-level problem with a single attribute.
type AttributeError struct {
	Attribute string
	Reason    string
	err       error
}

func (e *AttributeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.err, e.Attribute)
	}
	return fmt.Sprintf("%s: %s (%s)", e.err, e.Attribute, e.Reason)
}

func (e *AttributeError) Unwrap() error {
	return e.err
}

func missingAttribute(name string) error {
	return &AttributeError{Attribute: name, err: ErrMissingAttribute}
}

func unknownAttribute(name string) error {
	return &AttributeError{Attribute: name, err: ErrUnknownAttribute}
}

func invalidType(name, reason string) error {
	return &AttributeError{Attribute: name, Reason: reason, err: ErrInvalidType}
}

// SchemaError describes a malformed or incompatible feature schema.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}

func schemaMismatch(format string, args ...interface{}) error {
	return &SchemaError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err was caused by a malformed input record.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingAttribute) ||
		errors.Is(err, ErrUnknownAttribute) ||
		errors.Is(err, ErrInvalidType)
}
