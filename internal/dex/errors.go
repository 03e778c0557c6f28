package dex

import "fmt"

// DecodeError reports call data whose selector matched an operation of
// interest but whose arguments did not fit the operation's schema.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
