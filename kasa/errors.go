package kasa

import (
	"errors"
	"fmt"
)

// CommunicationError covers everything that goes wrong between us and the
// device: dial/read/write failures, garbage replies, and errors the device
// reports itself via err_code. Callers get it from every accessor that
// performs a round trip; nothing is retried here.
type CommunicationError struct {
	Err     error
	Host    string
	ErrCode int
	ErrMsg  string
}

func (e *CommunicationError) Error() string {
	if e.ErrCode != 0 {
		return fmt.Sprintf("device %s reported error %d: %s", e.Host, e.ErrCode, e.ErrMsg)
	}
	return fmt.Sprintf("communication with %s failed: %v", e.Host, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

func IsCommunicationError(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}

// ArgumentError reports a caller-supplied value outside the range a setter
// accepts. It is raised before any request is sent.
type ArgumentError struct {
	Value any
	Field string
	Valid string
	Min   int
	Max   int
}

func (e *ArgumentError) Error() string {
	if e.Valid != "" {
		return fmt.Sprintf("invalid %s value: %v (valid: %s)", e.Field, e.Value, e.Valid)
	}
	return fmt.Sprintf("invalid %s value: %v (valid range: %d-%d)", e.Field, e.Value, e.Min, e.Max)
}

func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
