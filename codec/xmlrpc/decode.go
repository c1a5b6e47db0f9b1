package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// Fault is a <fault> returned by the server in place of a result.
type Fault struct {
	Code   int64
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault %d: %s", f.Code, f.String)
}

type methodResponse struct {
	XMLName xml.Name   `xml:"methodResponse"`
	Params  []xmlValue `xml:"params>param>value"`
	Fault   *xmlValue  `xml:"fault>value"`
}

type xmlValue struct {
	Int      *string    `xml:"int"`
	I4       *string    `xml:"i4"`
	I8       *string    `xml:"i8"`
	Boolean  *string    `xml:"boolean"`
	String   *string    `xml:"string"`
	Double   *string    `xml:"double"`
	DateTime *string    `xml:"dateTime.iso8601"`
	Base64   *string    `xml:"base64"`
	Struct   *xmlStruct `xml:"struct"`
	Array    *xmlArray  `xml:"array"`
	Nil      *struct{}  `xml:"nil"`
	Text     string     `xml:",chardata"`
}

type xmlStruct struct {
	Members []xmlMember `xml:"member"`
}

type xmlMember struct {
	Name  string   `xml:"name"`
	Value xmlValue `xml:"value"`
}

type xmlArray struct {
	Values []xmlValue `xml:"data>value"`
}

// DecodeResponse parses a <methodResponse>. Exactly one of value and fault is
// meaningful when err is nil. A response without params decodes to a nil value.
func DecodeResponse(body []byte) (value any, fault *Fault, err error) {
	var resp methodResponse
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&resp); err != nil {
		return nil, nil, fmt.Errorf("malformed methodResponse: %w", err)
	}
	if resp.Fault != nil {
		f, err := decodeFault(resp.Fault)
		return nil, f, err
	}
	if len(resp.Params) == 0 {
		return nil, nil, nil
	}
	value, err = resp.Params[0].decode()
	return value, nil, err
}

func decodeFault(v *xmlValue) (*Fault, error) {
	raw, err := v.decode()
	if err != nil {
		return nil, err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("fault is a %T, not a struct", raw)
	}
	f := &Fault{}
	switch c := m["faultCode"].(type) {
	case int64:
		f.Code = c
	case string:
		f.Code, _ = strconv.ParseInt(c, 10, 64)
	}
	f.String, _ = m["faultString"].(string)
	return f, nil
}

// FaultFromValue reports whether v is a fault struct as embedded in a
// system.multicall response, and returns it.
func FaultFromValue(v any) (*Fault, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 2 {
		return nil, false
	}
	code, ok := m["faultCode"].(int64)
	if !ok {
		return nil, false
	}
	msg, ok := m["faultString"].(string)
	if !ok {
		return nil, false
	}
	return &Fault{Code: code, String: msg}, true
}

func (v *xmlValue) decode() (any, error) {
	switch {
	case v.Int != nil:
		return parseInt(*v.Int)
	case v.I4 != nil:
		return parseInt(*v.I4)
	case v.I8 != nil:
		return parseInt(*v.I8)
	case v.Boolean != nil:
		switch strings.TrimSpace(*v.Boolean) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", *v.Boolean)
	case v.String != nil:
		return *v.String, nil
	case v.Double != nil:
		f, err := strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q", *v.Double)
		}
		return f, nil
	case v.DateTime != nil:
		return parseDateTime(*v.DateTime)
	case v.Base64 != nil:
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(*v.Base64), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return b, nil
	case v.Struct != nil:
		m := make(map[string]any, len(v.Struct.Members))
		for _, member := range v.Struct.Members {
			mv, err := member.Value.decode()
			if err != nil {
				return nil, err
			}
			m[strings.TrimSpace(member.Name)] = mv
		}
		return m, nil
	case v.Array != nil:
		a := make([]any, 0, len(v.Array.Values))
		for i := range v.Array.Values {
			av, err := v.Array.Values[i].decode()
			if err != nil {
				return nil, err
			}
			a = append(a, av)
		}
		return a, nil
	case v.Nil != nil:
		return nil, nil
	}
	// An untyped value is a string.
	return v.Text, nil
}

func parseInt(s string) (int64, error) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}

var dateTimeLayouts = []string{
	DateTimeFormat,
	"20060102T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"20060102T150405",
}

func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid dateTime.iso8601 %q", s)
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	if isUTF8(label) {
		return input, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(input), nil
}
