package ogm

import (
	"errors"
	"fmt"
)

// ErrQueryCompiled is returned when an include is requested on a query whose
// statement has already been materialized.
var ErrQueryCompiled = errors.New("ogm: query already compiled")

// ConfigurationError is returned by registration calls that would leave the
// registry in an inconsistent state.
type ConfigurationError struct {
	TypeName string
	Message  string
}

// Error returns the error message for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ogm: configuration %s: %s", e.TypeName, e.Message)
}

// ArgumentError is returned when a caller passes an unusable argument: a nil
// executor or object, or a selector resolving to the wrong number of properties.
type ArgumentError struct {
	Op      string
	Message string
}

// Error returns the error message for ArgumentError.
func (e *ArgumentError) Error() string {
	return fmt.Sprintf("ogm: %s: %s", e.Op, e.Message)
}

// UnmappedTypeError is returned when an operation meets a Go type that has
// not been registered.
type UnmappedTypeError struct {
	TypeName string
}

// Error returns the error message for UnmappedTypeError.
func (e *UnmappedTypeError) Error() string {
	return fmt.Sprintf("ogm: type %q is not registered", e.TypeName)
}

// KeyAttributeError is returned when an object cannot be addressed in the
// store because its key properties are unset.
type KeyAttributeError struct {
	TypeName  string
	Property  string
	Operation string
}

// Error returns the error message for KeyAttributeError.
func (e *KeyAttributeError) Error() string {
	return fmt.Sprintf("ogm: key property %q on %s is required for %s",
		e.Property, e.TypeName, e.Operation)
}

// AmbiguousIdentityError is returned when value equality over the key
// properties matches more than one tracked object.
type AmbiguousIdentityError struct {
	TypeName string
	Count    int
}

// Error returns the error message for AmbiguousIdentityError.
func (e *AmbiguousIdentityError) Error() string {
	return fmt.Sprintf("ogm: %s: key matches %d tracked objects", e.TypeName, e.Count)
}

// HydrationError is returned when a stored value cannot be assigned to a
// struct field.
type HydrationError struct {
	TypeName string
	Field    string
	Cause    error
}

// Error returns the error message for HydrationError.
func (e *HydrationError) Error() string {
	return fmt.Sprintf("ogm: hydrating %s.%s: %v", e.TypeName, e.Field, e.Cause)
}

// Unwrap returns the underlying cause of the HydrationError.
func (e *HydrationError) Unwrap() error {
	return e.Cause
}
