// Package apierr implements the error taxonomy of spec §7: each kind
// carries the HTTP status the API layer should surface.
package apierr

import "fmt"

// Kind is one of the spec §7 error categories.
type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindAuthorization       Kind = "authorization_error"
	KindState               Kind = "state_error"
	KindHashMismatch        Kind = "hash_mismatch"
	KindStorage             Kind = "storage_error"
	KindAdapter             Kind = "adapter_error"
	KindVerifier            Kind = "verifier_error"
	KindInsufficientAllowance Kind = "insufficient_allowance"
	KindNotFound            Kind = "not_found"
)

// Error is a classified error carrying an HTTP status code.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, status int, msg string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: msg, Err: err}
}

func Validation(msg string) *Error       { return newErr(KindValidation, 400, msg, nil) }
func Validationf(format string, a ...any) *Error {
	return newErr(KindValidation, 400, fmt.Sprintf(format, a...), nil)
}
func Authorization(msg string) *Error { return newErr(KindAuthorization, 403, msg, nil) }
func State(msg string) *Error         { return newErr(KindState, 400, msg, nil) }
func HashMismatch(msg string) *Error  { return newErr(KindHashMismatch, 400, msg, nil) }
func NotFound(msg string) *Error      { return newErr(KindNotFound, 404, msg, nil) }

// Storage returns a genuine nil error interface if err is nil (not a typed
// nil *Error), so callers can write `return result, Storage(someErr)`
// without an extra nil check.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindStorage, 500, "durable store failure", err)
}
func Adapter(err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindAdapter, 500, "payment-channel adapter failure", err)
}
func Verifier(err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindVerifier, 500, "external verifier failure", err)
}
func InsufficientAllowance(msg string) *Error {
	return newErr(KindInsufficientAllowance, 500, msg, nil)
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	e, ok := err.(*Error)
	return e, ok
}
