package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"reflect"
	"strings"
)

// The server side of the format: decoding a <methodCall> and encoding a
// <methodResponse>. The client never needs it; test servers do.

type methodCall struct {
	XMLName    xml.Name   `xml:"methodCall"`
	MethodName string     `xml:"methodName"`
	Params     []xmlValue `xml:"params>param>value"`
}

// DecodeCall parses a <methodCall> into its method name and params.
func DecodeCall(body []byte) (method string, params []any, err error) {
	var call methodCall
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&call); err != nil {
		return "", nil, fmt.Errorf("malformed methodCall: %w", err)
	}
	method = strings.TrimSpace(call.MethodName)
	if method == "" {
		return "", nil, fmt.Errorf("methodCall without methodName")
	}
	params = make([]any, 0, len(call.Params))
	for i := range call.Params {
		v, err := call.Params[i].decode()
		if err != nil {
			return "", nil, fmt.Errorf("param %d: %w", i, err)
		}
		params = append(params, v)
	}
	return method, params, nil
}

// EncodeResponse builds a <methodResponse> carrying value.
func EncodeResponse(value any, encoding string) ([]byte, error) {
	e := &encoder{}
	e.header(encoding)
	e.WriteString("<methodResponse><params><param>")
	if err := e.value(reflect.ValueOf(value)); err != nil {
		return nil, err
	}
	e.WriteString("</param></params></methodResponse>")
	return transcode(e.Bytes(), encoding)
}

// EncodeFault builds a <methodResponse> carrying a fault.
func EncodeFault(f *Fault, encoding string) ([]byte, error) {
	e := &encoder{}
	e.header(encoding)
	e.WriteString("<methodResponse><fault>")
	if err := e.value(reflect.ValueOf(f.Value())); err != nil {
		return nil, err
	}
	e.WriteString("</fault></methodResponse>")
	return transcode(e.Bytes(), encoding)
}

// Value returns the struct form of f, as embedded in multicall responses.
func (f *Fault) Value() map[string]any {
	return map[string]any{"faultCode": f.Code, "faultString": f.String}
}
