package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"rpcclient/message"
	"rpcclient/rpcerr"
)

// JSONRPCVersion is the value of the "jsonrpc" member of every request.
const JSONRPCVersion = "2.0"

// Messages of the synthetic per-slot errors of a batch response.
const (
	MsgEmptyResponse     = "Empty response"
	MsgMalformedResponse = "Malformed response received"
	MsgInvalidResponseID = "Invalid response ID received"
	MsgIncomprehensible  = "Incomprehensible or empty response"
)

// JSONProcessor implements JSON-RPC 2.0.
//
// One request is sent as a bare object, two or more as a batch array. A
// response is only expected when at least one request carries an id.
type JSONProcessor struct{}

type jsonRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      any    `json:"id,omitempty"`
}

// ResponseError is the error member of one batch slot. Code is nil for
// errors synthesized by the client.
type ResponseError struct {
	Code    *int64 `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// BatchResult is the outcome of one call of a batch: exactly one of Result
// and Error is meaningful.
type BatchResult struct {
	Result any            `json:"result,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// Err returns the slot's error as an RPC fault, or nil.
func (r BatchResult) Err() error {
	if r.Error == nil {
		return nil
	}
	var code int64
	if r.Error.Code != nil {
		code = *r.Error.Code
	}
	return rpcerr.NewFault("codec.BatchResult", code, r.Error.Message)
}

func (p *JSONProcessor) Protocol() Protocol { return ProtocolJSON }

func (p *JSONProcessor) Encode(reqs []*message.Request) (*Exchange, error) {
	const op = "codec.JSONProcessor.Encode"
	if err := checkRequests(op, reqs); err != nil {
		return nil, err
	}

	ex := &Exchange{
		Protocol:  ProtocolJSON,
		Multicall: len(reqs) > 1,
		Count:     len(reqs),
	}
	payload := make([]jsonRequest, 0, len(reqs))
	for _, r := range reqs {
		composed := jsonRequest{
			JSONRPC: JSONRPCVersion,
			Method:  r.Method(),
			Params:  r.Params(),
		}
		if id, ok := r.ID().Resolve(r.UniqueID()); ok {
			composed.ID = id
			ex.ExpectedIDs = append(ex.ExpectedIDs, id)
		}
		payload = append(payload, composed)
	}

	var (
		body []byte
		err  error
	)
	if len(payload) > 1 {
		body, err = json.Marshal(payload)
	} else {
		body, err = json.Marshal(payload[0])
	}
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.InvalidArgument, err, "cannot encode parameters")
	}
	ex.Payload = body
	return ex, nil
}

// Decode returns true when no response was expected, the result of a single
// call, or a []BatchResult in request order for a batch.
func (p *JSONProcessor) Decode(ex *Exchange, body []byte) (any, error) {
	const op = "codec.JSONProcessor.Decode"
	if err := checkExchange(op, ex, ProtocolJSON); err != nil {
		return nil, err
	}
	if len(ex.ExpectedIDs) == 0 {
		return true, nil
	}

	content, err := parseJSON(body)
	if err != nil || content == nil {
		return nil, &rpcerr.Error{Op: op, Kind: rpcerr.Protocol, Message: MsgIncomprehensible, Err: err}
	}
	if !ex.Multicall {
		return decodeSingle(op, ex.ExpectedIDs[0], content)
	}
	return decodeBatch(ex.ExpectedIDs, content), nil
}

func decodeSingle(op string, expected any, content any) (any, error) {
	obj, ok := content.(map[string]any)
	if !ok {
		return nil, rpcerr.New(op, rpcerr.Protocol, MsgInvalidResponseID)
	}
	if e, ok := obj["error"]; ok && e != nil {
		re := responseError(e)
		var code int64
		if re.Code != nil {
			code = *re.Code
		}
		return nil, rpcerr.NewFault(op, code, re.Message)
	}
	if id, ok := obj["id"]; !ok || !idsEqual(id, expected) {
		return nil, rpcerr.New(op, rpcerr.Protocol, MsgInvalidResponseID)
	}
	return normalize(obj["result"]), nil
}

func decodeBatch(expected []any, content any) []BatchResult {
	// Anything but an array leaves every slot empty.
	entries, _ := content.([]any)
	results := make([]BatchResult, len(expected))
	for k, id := range expected {
		if k >= len(entries) || entries[k] == nil {
			results[k] = synthetic(MsgEmptyResponse)
			continue
		}
		entry, ok := entries[k].(map[string]any)
		if !ok {
			results[k] = synthetic(MsgMalformedResponse)
			continue
		}
		if e, ok := entry["error"]; ok && e != nil {
			results[k] = BatchResult{Error: responseError(e)}
			continue
		}
		rid, ok := entry["id"]
		switch {
		case !ok || rid == nil:
			results[k] = synthetic(MsgMalformedResponse)
		case !idsEqual(rid, id):
			results[k] = synthetic(MsgInvalidResponseID)
		default:
			results[k] = BatchResult{Result: normalize(entry["result"])}
		}
	}
	return results
}

func synthetic(msg string) BatchResult {
	return BatchResult{Error: &ResponseError{Message: msg}}
}

func responseError(e any) *ResponseError {
	m, ok := e.(map[string]any)
	if !ok {
		return &ResponseError{Message: fmt.Sprint(normalize(e))}
	}
	re := &ResponseError{Data: normalize(m["data"])}
	if n, ok := m["code"].(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			re.Code = &i
		}
	}
	switch msg := m["message"].(type) {
	case string:
		re.Message = msg
	case nil:
	default:
		re.Message = fmt.Sprint(normalize(msg))
	}
	return re
}

func parseJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// normalize turns json.Number into int64 when integral, float64 otherwise.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	return v
}

// idsEqual compares ids loosely: 7, "7" and 7.0 are the same id.
func idsEqual(a, b any) bool {
	sa, sb := idString(a), idString(b)
	if sa == sb {
		return true
	}
	if ia, err := strconv.ParseInt(sa, 10, 64); err == nil {
		if ib, err := strconv.ParseInt(sb, 10, 64); err == nil {
			return ia == ib
		}
	}
	fa, errA := strconv.ParseFloat(sa, 64)
	fb, errB := strconv.ParseFloat(sb, 64)
	return errA == nil && errB == nil && fa == fb
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case nil:
		return "\x00null"
	}
	return fmt.Sprint(v)
}
