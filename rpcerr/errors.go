// Package rpcerr defines the error kinds surfaced by the RPC client.
//
// Every failure returned from a Send is an *Error carrying one Kind, so callers
// can tell a broken HTTP exchange from a malformed response or from a fault the
// server reported on purpose:
//
//	var e *rpcerr.Error
//	if errors.As(err, &e) && e.Kind == rpcerr.Fault {
//		log.Printf("server fault %d: %s", e.Code, e.Message)
//	}
//
// The kind sentinels also work with errors.Is:
//
//	if errors.Is(err, rpcerr.ErrTransport) { ... }
package rpcerr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Kind classifies an error.
type Kind uint8

const (
	Other           Kind = iota // Unclassified error.
	InvalidArgument             // Malformed request construction or configuration.
	InvalidState                // Operation not allowed in the current client state.
	Protocol                    // Malformed, unparseable or mismatched wire response.
	Fault                       // Application fault reported by the server.
	Transport                   // HTTP level failure.
)

// Sentinels matched by (*Error).Is, one per Kind.
const (
	ErrOther           = errors.ConstError("other error")
	ErrInvalidArgument = errors.ConstError("invalid argument")
	ErrInvalidState    = errors.ConstError("invalid state")
	ErrProtocol        = errors.ConstError("protocol error")
	ErrFault           = errors.ConstError("rpc fault")
	ErrTransport       = errors.ConstError("transport error")
)

func (k Kind) String() string {
	return string(k.sentinel())
}

func (k Kind) sentinel() errors.ConstError {
	switch k {
	case InvalidArgument:
		return ErrInvalidArgument
	case InvalidState:
		return ErrInvalidState
	case Protocol:
		return ErrProtocol
	case Fault:
		return ErrFault
	case Transport:
		return ErrTransport
	}
	return ErrOther
}

// Error is the error type returned by every package of the client.
type Error struct {
	// Op is the operation that failed, e.g. "client.Send" or "codec.Decode".
	Op string
	// Kind is the class of the error.
	Kind Kind
	// Code is the server supplied fault code. Only meaningful for Fault.
	Code int64
	// Message is the human readable description. For faults it is the
	// server supplied fault string.
	Message string
	// Err is the underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Kind == Fault {
		b.WriteString(" (code ")
		b.WriteString(strconv.FormatInt(e.Code, 10))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	c, ok := target.(errors.ConstError)
	return ok && c == e.Kind.sentinel()
}

// New builds an error of the given kind with a fixed message.
func New(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// Errorf builds an error of the given kind with a formatted message.
func Errorf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around err.
func Wrap(op string, kind Kind, err error, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}

// NewFault builds the error for a fault reported by the server.
func NewFault(op string, code int64, message string) *Error {
	return &Error{Op: op, Kind: Fault, Code: code, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or Other.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// Is reports whether err carries the given kind.
func Is(kind Kind, err error) bool {
	return err != nil && KindOf(err) == kind
}
