package codec

import (
	"encoding/json"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"rpcclient/message"
	"rpcclient/rpcerr"
)

func mustRequest(c *qt.C, method string, params []any, opts ...message.Option) *message.Request {
	r, err := message.New(method, params, opts...)
	c.Assert(err, qt.IsNil)
	return r
}

func TestParseProtocol(t *testing.T) {
	c := qt.New(t)

	p, err := ParseProtocol("json")
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, ProtocolJSON)
	c.Assert(p.ContentType(), qt.Equals, "application/json")

	p, err = ParseProtocol("XML")
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, ProtocolXML)
	c.Assert(p.ContentType(), qt.Equals, "text/xml")

	_, err = ParseProtocol("soap")
	c.Assert(rpcerr.Is(rpcerr.InvalidArgument, err), qt.IsTrue)
}

func TestEncodeEmpty(t *testing.T) {
	c := qt.New(t)

	for _, p := range []Processor{&JSONProcessor{}, &XMLProcessor{}} {
		_, err := p.Encode(nil)
		c.Assert(rpcerr.Is(rpcerr.InvalidState, err), qt.IsTrue)
		c.Assert(err, qt.ErrorMatches, ".*No request to send")
	}
}

func TestDecodeWithoutExchange(t *testing.T) {
	c := qt.New(t)

	_, err := (&JSONProcessor{}).Decode(nil, []byte("{}"))
	c.Assert(rpcerr.Is(rpcerr.InvalidState, err), qt.IsTrue)

	_, err = (&XMLProcessor{}).Decode(&Exchange{Protocol: ProtocolJSON}, nil)
	c.Assert(rpcerr.Is(rpcerr.InvalidState, err), qt.IsTrue)
}

func TestJSONEncodeSingle(t *testing.T) {
	c := qt.New(t)

	r := mustRequest(c, "echo", []any{"hi"}, message.WithID(7))
	ex, err := (&JSONProcessor{}).Encode([]*message.Request{r})
	c.Assert(err, qt.IsNil)
	c.Assert(string(ex.Payload), qt.Equals, `{"jsonrpc":"2.0","method":"echo","params":["hi"],"id":7}`)
	c.Assert(ex.ExpectedIDs, qt.DeepEquals, []any{int64(7)})
	c.Assert(ex.Multicall, qt.IsFalse)
}

func TestJSONEncodeBatch(t *testing.T) {
	c := qt.New(t)

	auto := mustRequest(c, "a", nil)
	note := mustRequest(c, "b", []any{1}, message.AsNotification())
	named := mustRequest(c, "c", nil, message.WithID("x"))

	ex, err := (&JSONProcessor{}).Encode([]*message.Request{auto, note, named})
	c.Assert(err, qt.IsNil)
	c.Assert(ex.Multicall, qt.IsTrue)
	c.Assert(ex.Count, qt.Equals, 3)
	c.Assert(ex.ExpectedIDs, qt.DeepEquals, []any{auto.UniqueID(), "x"})

	var sent []map[string]any
	c.Assert(json.Unmarshal(ex.Payload, &sent), qt.IsNil)
	c.Assert(sent, qt.HasLen, 3)
	c.Assert(sent[0]["id"], qt.Equals, auto.UniqueID())
	c.Assert(sent[0]["params"], qt.DeepEquals, []any{})
	_, hasID := sent[1]["id"]
	c.Assert(hasID, qt.IsFalse)
	c.Assert(sent[2]["jsonrpc"], qt.Equals, "2.0")
}

func TestJSONDecodeNotificationOnly(t *testing.T) {
	c := qt.New(t)

	p := &JSONProcessor{}
	ex, err := p.Encode([]*message.Request{mustRequest(c, "ping", nil, message.AsNotification())})
	c.Assert(err, qt.IsNil)
	c.Assert(ex.ExpectedIDs, qt.HasLen, 0)

	got, err := p.Decode(ex, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, true)
}

func TestJSONDecodeSingle(t *testing.T) {
	c := qt.New(t)

	p := &JSONProcessor{}
	ex, err := p.Encode([]*message.Request{mustRequest(c, "add", []any{40, 2}, message.WithID(1))})
	c.Assert(err, qt.IsNil)

	got, err := p.Decode(ex, []byte(`{"jsonrpc":"2.0","result":42,"id":1}`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, int64(42))

	// The id compares loosely.
	got, err = p.Decode(ex, []byte(`{"jsonrpc":"2.0","result":{"x":1.5},"id":"1"}`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, map[string]any{"x": 1.5})

	_, err = p.Decode(ex, []byte(`{"jsonrpc":"2.0","result":42,"id":2}`))
	c.Assert(rpcerr.Is(rpcerr.Protocol, err), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, ".*Invalid response ID received")

	_, err = p.Decode(ex, []byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found"},"id":1}`))
	c.Assert(rpcerr.Is(rpcerr.Fault, err), qt.IsTrue)
	var rerr *rpcerr.Error
	c.Assert(err, qt.ErrorAs, &rerr)
	c.Assert(rerr.Code, qt.Equals, int64(-32601))
	c.Assert(rerr.Message, qt.Equals, "Method not found")

	for _, body := range []string{"", "null", "{oops"} {
		_, err = p.Decode(ex, []byte(body))
		c.Assert(err, qt.ErrorMatches, ".*Incomprehensible or empty response.*", qt.Commentf("%q", body))
	}
}

func TestJSONDecodeBatch(t *testing.T) {
	c := qt.New(t)

	p := &JSONProcessor{}
	var reqs []*message.Request
	for i := 1; i <= 5; i++ {
		reqs = append(reqs, mustRequest(c, "m", nil, message.WithID(i)))
	}
	ex, err := p.Encode(reqs)
	c.Assert(err, qt.IsNil)

	body := `[
		{"jsonrpc":"2.0","result":"one","id":1},
		{"jsonrpc":"2.0","error":{"code":-32000,"message":"boom","data":[1]},"id":2},
		{"jsonrpc":"2.0","result":"three","id":99},
		{"jsonrpc":"2.0","result":"four"}
	]`
	got, err := p.Decode(ex, []byte(body))
	c.Assert(err, qt.IsNil)
	results := got.([]BatchResult)
	c.Assert(results, qt.HasLen, 5)

	c.Assert(results[0], qt.DeepEquals, BatchResult{Result: "one"})

	code := int64(-32000)
	c.Assert(results[1].Error, qt.DeepEquals, &ResponseError{Code: &code, Message: "boom", Data: []any{int64(1)}})
	c.Assert(rpcerr.Is(rpcerr.Fault, results[1].Err()), qt.IsTrue)

	c.Assert(results[2].Error.Message, qt.Equals, MsgInvalidResponseID)
	c.Assert(results[3].Error.Message, qt.Equals, MsgMalformedResponse)
	c.Assert(results[4].Error.Message, qt.Equals, MsgEmptyResponse)
	c.Assert(results[4].Error.Code, qt.IsNil)
}

func TestJSONDecodeBatchNotAnArray(t *testing.T) {
	c := qt.New(t)

	p := &JSONProcessor{}
	ex, err := p.Encode([]*message.Request{mustRequest(c, "a", nil), mustRequest(c, "b", nil)})
	c.Assert(err, qt.IsNil)

	got, err := p.Decode(ex, []byte(`{"jsonrpc":"2.0","result":1,"id":1}`))
	c.Assert(err, qt.IsNil)
	for _, r := range got.([]BatchResult) {
		c.Assert(r.Error.Message, qt.Equals, MsgEmptyResponse)
	}
}

func TestXMLEncodeSingle(t *testing.T) {
	c := qt.New(t)

	r := mustRequest(c, "echo", []any{"secret"})
	c.Assert(r.SetSpecialType("secret", message.Base64), qt.IsNil)

	ex, err := (&XMLProcessor{}).Encode([]*message.Request{r})
	c.Assert(err, qt.IsNil)
	c.Assert(ex.Multicall, qt.IsFalse)
	c.Assert(ex.ExpectedIDs, qt.HasLen, 0)
	s := string(ex.Payload)
	c.Assert(strings.HasPrefix(s, `<?xml version="1.0" encoding="utf-8"?>`), qt.IsTrue)
	c.Assert(s, qt.Contains, "<methodName>echo</methodName>")
	c.Assert(s, qt.Contains, "<base64>c2VjcmV0</base64>")
}

func TestXMLEncodeMulticallScopesSpecialTypes(t *testing.T) {
	c := qt.New(t)

	tagged := mustRequest(c, "a", []any{"v"})
	c.Assert(tagged.SetSpecialType("v", message.CData), qt.IsNil)
	plain := mustRequest(c, "b", []any{"v"})
	reqs := []*message.Request{tagged, plain}

	ex, err := (&XMLProcessor{}).Encode(reqs)
	c.Assert(err, qt.IsNil)
	c.Assert(ex.Multicall, qt.IsTrue)
	s := string(ex.Payload)
	c.Assert(s, qt.Contains, "<methodName>system.multicall</methodName>")
	c.Assert(strings.Count(s, "<![CDATA[v]]>"), qt.Equals, 1)
	c.Assert(strings.Count(s, "<string>v</string>"), qt.Equals, 1)

	ex, err = (&XMLProcessor{SharedSpecialTypes: true}).Encode(reqs)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Count(string(ex.Payload), "<![CDATA[v]]>"), qt.Equals, 2)
}

func TestXMLEncodeRejectsBadEncoding(t *testing.T) {
	c := qt.New(t)

	_, err := (&XMLProcessor{Encoding: "bogus"}).Encode([]*message.Request{mustRequest(c, "a", nil)})
	c.Assert(rpcerr.Is(rpcerr.InvalidArgument, err), qt.IsTrue)
}

func TestXMLDecode(t *testing.T) {
	c := qt.New(t)

	p := &XMLProcessor{}
	ex, err := p.Encode([]*message.Request{mustRequest(c, "echo", []any{"x"})})
	c.Assert(err, qt.IsNil)

	got, err := p.Decode(ex, []byte(`<?xml version="1.0"?><methodResponse><params><param>`+
		`<value><string>x</string></value></param></params></methodResponse>`))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, "x")

	_, err = p.Decode(ex, []byte(`<methodResponse><fault><value><struct>`+
		`<member><name>faultCode</name><value><int>-32601</int></value></member>`+
		`<member><name>faultString</name><value><string>unknown method</string></value></member>`+
		`</struct></value></fault></methodResponse>`))
	var rerr *rpcerr.Error
	c.Assert(err, qt.ErrorAs, &rerr)
	c.Assert(rerr.Kind, qt.Equals, rpcerr.Fault)
	c.Assert(rerr.Code, qt.Equals, int64(-32601))
	c.Assert(rerr.Message, qt.Equals, "unknown method")

	_, err = p.Decode(ex, []byte("not xml"))
	c.Assert(rpcerr.Is(rpcerr.Protocol, err), qt.IsTrue)
}

func TestXMLDecodeMulticall(t *testing.T) {
	c := qt.New(t)

	p := &XMLProcessor{}
	ex, err := p.Encode([]*message.Request{mustRequest(c, "a", nil), mustRequest(c, "b", nil)})
	c.Assert(err, qt.IsNil)

	body := `<methodResponse><params><param><value><array><data>
<value><array><data><value><int>42</int></value></data></array></value>
<value><struct>
<member><name>faultCode</name><value><int>1</int></value></member>
<member><name>faultString</name><value><string>bad</string></value></member>
</struct></value>
</data></array></value></param></params></methodResponse>`

	got, err := p.Decode(ex, []byte(body))
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []any{
		int64(42),
		map[string]any{"faultCode": int64(1), "faultString": "bad"},
	})

	_, err = p.Decode(ex, []byte(`<methodResponse><params><param><value><int>1</int></value></param></params></methodResponse>`))
	c.Assert(rpcerr.Is(rpcerr.Protocol, err), qt.IsTrue)
}
