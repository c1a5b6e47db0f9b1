// Package message defines the call request exchanged between the client and a remote RPC server.
//
// A Request describes one remote procedure invocation. It is built once through New, validated,
// queued, and then only read by the codec layer when the queue is encoded into a wire payload.
//
//   - Method and Params are sent on the wire for both XML-RPC and JSON-RPC.
//   - ID only matters for JSON-RPC, where it decides whether a response is expected.
//   - SpecialTypes only matter for XML-RPC, where they override the default marshaling of a value.
//   - UniqueID never leaves the process unless it is used as an auto-generated JSON-RPC id.
package message

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"rpcclient/rpcerr"
)

// SpecialType tags a parameter value that XML-RPC must not marshal with its default type.
type SpecialType string

const (
	Base64   SpecialType = "base64"   // send a string as <base64>
	DateTime SpecialType = "datetime" // send a string as <dateTime.iso8601>
	CData    SpecialType = "cdata"    // send a string wrapped in a CDATA section
)

// ParseSpecialType returns the SpecialType named by s, ignoring case.
func ParseSpecialType(s string) (SpecialType, error) {
	switch t := SpecialType(strings.ToLower(s)); t {
	case Base64, DateTime, CData:
		return t, nil
	}
	return "", rpcerr.Errorf("message.ParseSpecialType", rpcerr.InvalidArgument, "Invalid value type %q", s)
}

// Request carries the data for a single RPC invocation.
type Request struct {
	uid          string                 // Process local correlation token, 32 hex chars
	method       string                 // Remote procedure name, never empty
	params       []any                  // Positional arguments, order significant
	specialTypes map[string]SpecialType // Value -> type override, XML-RPC only
	id           ID                     // Response identity, JSON-RPC only
}

// Option configures a Request at construction time.
type Option func(*Request) error

// WithID sets an explicit JSON-RPC id, used verbatim on the wire.
// Strings and integers are accepted.
func WithID(v any) Option {
	return func(r *Request) error {
		id, err := ExplicitID(v)
		if err != nil {
			return err
		}
		r.id = id
		return nil
	}
}

// AsNotification marks the request as a notification: no id is sent and no response is expected.
func AsNotification() Option {
	return func(r *Request) error {
		r.id = NoID()
		return nil
	}
}

// WithAutoID asks for a generated id. This is the default.
func WithAutoID() Option {
	return func(r *Request) error {
		r.id = AutoID()
		return nil
	}
}

// New validates and builds a Request. A nil params slice is the same as an empty one.
func New(method string, params []any, opts ...Option) (*Request, error) {
	const op = "message.New"
	if method == "" {
		return nil, rpcerr.New(op, rpcerr.InvalidArgument, "Invalid RPC method")
	}
	for i, p := range params {
		if err := checkValue(p); err != nil {
			return nil, rpcerr.Errorf(op, rpcerr.InvalidArgument, "Invalid RPC parameter %d: %v", i, err)
		}
	}
	if params == nil {
		params = []any{}
	}
	r := &Request{
		uid:          newUID(),
		method:       method,
		params:       params,
		specialTypes: make(map[string]SpecialType),
		id:           AutoID(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// newUID returns 32 lowercase hex characters.
func newUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// UniqueID returns the process local token identifying the request in a Queue.
func (r *Request) UniqueID() string { return r.uid }

// Method returns the remote procedure name.
func (r *Request) Method() string { return r.method }

// Params returns the positional parameters. The slice must not be modified.
func (r *Request) Params() []any { return r.params }

// ID returns the response identity of the request.
func (r *Request) ID() ID { return r.id }

// SetSpecialType tags every occurrence of value in the parameters with tag.
// Tagging is by value, not by position: the same literal appearing twice is tagged twice.
func (r *Request) SetSpecialType(value string, tag SpecialType) error {
	t, err := ParseSpecialType(string(tag))
	if err != nil || value == "" {
		return rpcerr.New("message.SetSpecialType", rpcerr.InvalidArgument, "Invalid value type")
	}
	r.specialTypes[value] = t
	return nil
}

// SpecialTypes returns a copy of the value -> type overrides.
func (r *Request) SpecialTypes() map[string]SpecialType {
	m := make(map[string]SpecialType, len(r.specialTypes))
	for k, v := range r.specialTypes {
		m[k] = v
	}
	return m
}

// DebugView is a read-only snapshot of a Request, meant for logs and inspection.
type DebugView struct {
	UID          string                 `json:"uid"`
	Method       string                 `json:"method"`
	Params       []any                  `json:"parameters"`
	SpecialTypes map[string]SpecialType `json:"special_types"`
	ID           any                    `json:"id"`
}

// DebugView exports the request. ID is true for auto, nil for notifications,
// or the explicit value.
func (r *Request) DebugView() DebugView {
	var id any
	switch r.id.Kind() {
	case IDAuto:
		id = true
	case IDExplicit:
		id = r.id.Value()
	}
	return DebugView{
		UID:          r.uid,
		Method:       r.method,
		Params:       r.params,
		SpecialTypes: r.SpecialTypes(),
		ID:           id,
	}
}

func (r *Request) String() string {
	return fmt.Sprintf("%s(%d params, id=%s, uid=%s)", r.method, len(r.params), r.id, r.uid)
}

var timeType = reflect.TypeOf(time.Time{})

// checkValue rejects values that neither wire format can represent.
func checkValue(v any) error {
	if v == nil {
		return nil
	}
	return checkReflect(reflect.ValueOf(v))
}

func checkReflect(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkReflect(v.Elem())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkReflect(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map key type %s is not a string", v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkReflect(iter.Value()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		if v.Type() == timeType {
			return nil
		}
		return fmt.Errorf("unsupported struct type %s", v.Type())
	}
	return fmt.Errorf("unsupported type %s", v.Type())
}
