package rpctest

import (
	"fmt"
	"reflect"
)

// Method is the Go side of a remote procedure.
type Method func(params []any) (any, error)

type service struct {
	name   string
	method map[string]Method
}

var (
	paramsType = reflect.TypeOf([]any(nil))
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
)

// newService scans rcvr for exported methods shaped like
//
//	func (r *T) Name(params []any) (any, error)
//
// and exposes them as "T.Name".
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("rpctest: rcvr must be a pointer, got %T", rcvr)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpctest: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}
	val := reflect.ValueOf(rcvr)
	svc := &service{name: typ.Elem().Name(), method: make(map[string]Method)}
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		mt := m.Type
		if mt.NumIn() != 2 || mt.In(1) != paramsType ||
			mt.NumOut() != 2 || mt.Out(0) != anyType || mt.Out(1) != errorType {
			continue
		}
		fn := val.Method(i)
		svc.method[m.Name] = func(params []any) (any, error) {
			out := fn.Call([]reflect.Value{reflect.ValueOf(params)})
			err, _ := out[1].Interface().(error)
			return out[0].Interface(), err
		}
	}
	if len(svc.method) == 0 {
		return nil, fmt.Errorf("rpctest: %s has no exported method of the expected shape", svc.name)
	}
	return svc, nil
}
