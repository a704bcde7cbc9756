// Package errcode defines the typed failure codes an instruction can end with.
//
// Every failure surfaced by the program or by the reference host is an *Error
// carrying a stable Code. Callers should branch on the Code (errors.As, Is,
// CodeOf) rather than matching error strings; Message is for humans and may
// change between versions.
package errcode

import (
	"errors"
	"fmt"
)

// Code is a stable failure category. The numeric value is what a host reports
// as the custom program error; the name is what transports carry.
type Code uint32

const (
	// Core program codes.
	DecodingError Code = iota + 1
	AddressMismatch
	AlreadyInitialized
	UninitializedAccount
	SizeLimitExceeded
	IllegalOwner

	// Account-list and derivation codes.
	NotEnoughAccountKeys
	InvalidSeeds
	CounterExhausted
	IncorrectProgramID

	// Host codes.
	MissingRequiredSignature
	AccountInUse
	InsufficientFunds
	ReadonlyModified
	ExternalDataModified
	InvalidTransaction
)

var names = map[Code]string{
	DecodingError:            "DecodingError",
	AddressMismatch:          "AddressMismatch",
	AlreadyInitialized:       "AlreadyInitialized",
	UninitializedAccount:     "UninitializedAccount",
	SizeLimitExceeded:        "SizeLimitExceeded",
	IllegalOwner:             "IllegalOwner",
	NotEnoughAccountKeys:     "NotEnoughAccountKeys",
	InvalidSeeds:             "InvalidSeeds",
	CounterExhausted:         "CounterExhausted",
	IncorrectProgramID:       "IncorrectProgramID",
	MissingRequiredSignature: "MissingRequiredSignature",
	AccountInUse:             "AccountInUse",
	InsufficientFunds:        "InsufficientFunds",
	ReadonlyModified:         "ReadonlyModified",
	ExternalDataModified:     "ExternalDataModified",
	InvalidTransaction:       "InvalidTransaction",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Parse returns the Code with the given name.
func Parse(name string) (Code, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Error is the structured failure type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns an *Error with code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf is like New with a format string.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error with code and message that unwraps to cause.
func Wrap(code Code, msg string, cause error) error {
	if cause == nil {
		return New(code, msg)
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Is reports whether err is (or wraps) an *Error with the given Code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf returns the Code of the first *Error in err's chain.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}
