// Package xmlrpc marshals XML-RPC method calls and unmarshals method responses.
//
// Go values map to XML-RPC types as follows:
//
//	nil                    <nil/>
//	bool                   <boolean>
//	int*, uint*            <int>, or <i8> outside the int32 range
//	float32, float64       <double>
//	string                 <string>
//	[]byte                 <base64>
//	time.Time              <dateTime.iso8601>
//	slices and arrays      <array>
//	map[string]T           <struct>, members sorted by name
//
// A Types table overrides the default mapping of string (and integer) values,
// see message.SpecialType.
package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"rpcclient/message"
)

// DateTimeFormat is the layout of <dateTime.iso8601> values.
const DateTimeFormat = "20060102T15:04:05"

// MulticallMethod is the method name used to batch calls.
const MulticallMethod = "system.multicall"

// Types maps a value, in its canonical string form, to a special type.
type Types map[string]message.SpecialType

// Call is one entry of a multicall. Types, when not nil, replaces the
// multicall-wide table for the params of this call.
type Call struct {
	Method string
	Params []any
	Types  Types
}

var timeType = reflect.TypeOf(time.Time{})

// EncodeCall builds a <methodCall> document. encoding is the charset label of
// the document; empty means utf-8.
func EncodeCall(method string, params []any, types Types, encoding string) ([]byte, error) {
	e := &encoder{types: types}
	e.header(encoding)
	e.WriteString("<methodCall><methodName>")
	e.text(method)
	e.WriteString("</methodName><params>")
	for i, p := range params {
		e.WriteString("<param>")
		if err := e.value(reflect.ValueOf(p)); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		e.WriteString("</param>")
	}
	e.WriteString("</params></methodCall>")
	return transcode(e.Bytes(), encoding)
}

// EncodeMulticall builds a system.multicall <methodCall> carrying calls in order.
func EncodeMulticall(calls []Call, types Types, encoding string) ([]byte, error) {
	e := &encoder{}
	e.header(encoding)
	e.WriteString("<methodCall><methodName>" + MulticallMethod + "</methodName>")
	e.WriteString("<params><param><value><array><data>")
	for i, c := range calls {
		e.types = types
		if c.Types != nil {
			e.types = c.Types
		}
		e.WriteString("<value><struct><member><name>methodName</name><value><string>")
		e.text(c.Method)
		e.WriteString("</string></value></member><member><name>params</name><value><array><data>")
		for j, p := range c.Params {
			if err := e.value(reflect.ValueOf(p)); err != nil {
				return nil, fmt.Errorf("call %d param %d: %w", i, j, err)
			}
		}
		e.WriteString("</data></array></value></member></struct></value>")
	}
	e.WriteString("</data></array></value></param></params></methodCall>")
	return transcode(e.Bytes(), encoding)
}

type encoder struct {
	bytes.Buffer
	types Types
}

func (e *encoder) header(encoding string) {
	if encoding == "" {
		encoding = "utf-8"
	}
	e.WriteString(`<?xml version="1.0" encoding="`)
	e.text(encoding)
	e.WriteString(`"?>`)
	e.WriteByte('\n')
}

func (e *encoder) text(s string) {
	// Buffer writes never fail.
	_ = xml.EscapeText(&e.Buffer, []byte(s))
}

func (e *encoder) value(v reflect.Value) error {
	e.WriteString("<value>")
	if err := e.inner(v); err != nil {
		return err
	}
	e.WriteString("</value>")
	return nil
}

func (e *encoder) inner(v reflect.Value) error {
	if !v.IsValid() {
		e.WriteString("<nil/>")
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			e.WriteString("<nil/>")
			return nil
		}
		return e.inner(v.Elem())
	case reflect.Bool:
		if v.Bool() {
			e.WriteString("<boolean>1</boolean>")
		} else {
			e.WriteString("<boolean>0</boolean>")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.integer(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return fmt.Errorf("integer %d overflows i8", u)
		}
		e.integer(int64(u))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("double %v has no XML-RPC representation", f)
		}
		e.WriteString("<double>")
		e.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		e.WriteString("</double>")
	case reflect.String:
		e.str(v.String())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			e.WriteString("<base64>")
			e.WriteString(base64.StdEncoding.EncodeToString(b))
			e.WriteString("</base64>")
			return nil
		}
		e.WriteString("<array><data>")
		for i := 0; i < v.Len(); i++ {
			if err := e.value(v.Index(i)); err != nil {
				return err
			}
		}
		e.WriteString("</data></array>")
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("struct keys must be strings, got %s", v.Type().Key())
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		e.WriteString("<struct>")
		for _, k := range keys {
			e.WriteString("<member><name>")
			e.text(k)
			e.WriteString("</name>")
			if err := e.value(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
				return err
			}
			e.WriteString("</member>")
		}
		e.WriteString("</struct>")
	case reflect.Struct:
		if v.Type() != timeType {
			return fmt.Errorf("unsupported struct type %s", v.Type())
		}
		t := v.Interface().(time.Time)
		e.WriteString("<dateTime.iso8601>")
		e.WriteString(t.Format(DateTimeFormat))
		e.WriteString("</dateTime.iso8601>")
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
	return nil
}

func (e *encoder) integer(i int64) {
	s := strconv.FormatInt(i, 10)
	if e.types[s] == message.DateTime {
		e.WriteString("<dateTime.iso8601>")
		e.WriteString(time.Unix(i, 0).UTC().Format(DateTimeFormat))
		e.WriteString("</dateTime.iso8601>")
		return
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		e.WriteString("<i8>")
		e.WriteString(s)
		e.WriteString("</i8>")
		return
	}
	e.WriteString("<int>")
	e.WriteString(s)
	e.WriteString("</int>")
}

func (e *encoder) str(s string) {
	switch e.types[s] {
	case message.Base64:
		e.WriteString("<base64>")
		e.WriteString(base64.StdEncoding.EncodeToString([]byte(s)))
		e.WriteString("</base64>")
	case message.DateTime:
		e.WriteString("<dateTime.iso8601>")
		e.text(formatDateTime(s))
		e.WriteString("</dateTime.iso8601>")
	case message.CData:
		e.WriteString("<string><![CDATA[")
		// A literal "]]>" must be split across two sections.
		e.WriteString(strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>"))
		e.WriteString("]]></string>")
	default:
		e.WriteString("<string>")
		e.text(s)
		e.WriteString("</string>")
	}
}

// formatDateTime renders a string tagged as datetime. Unix timestamps and
// RFC 3339 dates are converted; anything else is assumed to be formatted already.
func formatDateTime(s string) string {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC().Format(DateTimeFormat)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateTimeFormat)
	}
	return s
}

// transcode converts a utf-8 document to the requested charset.
func transcode(doc []byte, encoding string) ([]byte, error) {
	if isUTF8(encoding) {
		return doc, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", encoding, err)
	}
	return enc.NewEncoder().Bytes(doc)
}

func isUTF8(label string) bool {
	switch strings.ToLower(label) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}
