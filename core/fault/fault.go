// Package fault defines the error taxonomy shared by the core services.
// Callers branch on the error kind instead of parsing message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an operational error.
type Kind int

const (
	// KindNotFound signals a referenced vehicle, mission or user is absent.
	KindNotFound Kind = iota
	// KindInvalidState signals a transition attempted from the wrong mission status.
	KindInvalidState
	// KindForbidden signals the caller lacks the required role or assignment.
	KindForbidden
	// KindVehicleUnavailable signals a create or reassign against a non-available vehicle.
	KindVehicleUnavailable
	// KindValidation signals malformed input, such as missing geo-coordinates.
	KindValidation
)

// String returns a stable identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindVehicleUnavailable:
		return "vehicle_unavailable"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error carries a kind alongside its message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidState builds a KindInvalidState error.
func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden builds a KindForbidden error.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// VehicleUnavailable builds a KindVehicleUnavailable error.
func VehicleUnavailable(format string, args ...any) error {
	return &Error{Kind: KindVehicleUnavailable, Msg: fmt.Sprintf(format, args...)}
}

// Validation builds a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err or any error it wraps carries the given kind.
func IsKind(err error, k Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == k
}
