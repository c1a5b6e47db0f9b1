package message

import (
	"fmt"

	"rpcclient/rpcerr"
)

// IDKind tells how a request's JSON-RPC id is obtained.
type IDKind uint8

const (
	IDAuto     IDKind = iota // generated from the request's unique id
	IDNone                   // notification, no id and no response
	IDExplicit               // caller supplied value used verbatim
)

// ID is the response identity of a Request.
type ID struct {
	kind  IDKind
	value any
}

// AutoID returns an ID generated at encode time.
func AutoID() ID { return ID{kind: IDAuto} }

// NoID returns the ID of a notification.
func NoID() ID { return ID{kind: IDNone} }

// ExplicitID returns an ID carrying v. Only strings and integers are valid JSON-RPC ids here.
func ExplicitID(v any) (ID, error) {
	switch x := v.(type) {
	case string:
		return ID{kind: IDExplicit, value: x}, nil
	case int:
		return ID{kind: IDExplicit, value: int64(x)}, nil
	case int8:
		return ID{kind: IDExplicit, value: int64(x)}, nil
	case int16:
		return ID{kind: IDExplicit, value: int64(x)}, nil
	case int32:
		return ID{kind: IDExplicit, value: int64(x)}, nil
	case int64:
		return ID{kind: IDExplicit, value: x}, nil
	case uint:
		return ID{kind: IDExplicit, value: uint64(x)}, nil
	case uint8:
		return ID{kind: IDExplicit, value: uint64(x)}, nil
	case uint16:
		return ID{kind: IDExplicit, value: uint64(x)}, nil
	case uint32:
		return ID{kind: IDExplicit, value: uint64(x)}, nil
	case uint64:
		return ID{kind: IDExplicit, value: x}, nil
	}
	return ID{}, rpcerr.Errorf("message.ExplicitID", rpcerr.InvalidArgument, "Invalid RPC id %v (%T)", v, v)
}

// Kind returns how the id is obtained.
func (id ID) Kind() IDKind { return id.kind }

// Value returns the explicit value, or nil.
func (id ID) Value() any { return id.value }

// Resolve returns the wire id for a request with the given unique id.
// ok is false for notifications.
func (id ID) Resolve(uid string) (v any, ok bool) {
	switch id.kind {
	case IDAuto:
		return uid, true
	case IDExplicit:
		return id.value, true
	}
	return nil, false
}

func (id ID) String() string {
	switch id.kind {
	case IDAuto:
		return "auto"
	case IDNone:
		return "none"
	}
	return fmt.Sprint(id.value)
}
