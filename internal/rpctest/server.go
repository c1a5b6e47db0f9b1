// Package rpctest provides an in-process XML-RPC and JSON-RPC 2.0 server for
// tests, optionally speaking the encrypted envelope.
//
// Request processing:
//
//	POST → unwrap envelope → Content-Type picks the protocol
//	  → decode call(s) → dispatch by name → encode → wrap envelope
//
// Services are registered either as receivers (see Register) or as plain
// functions (see Handle). XML-RPC system.multicall is built in.
package rpctest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"rpcclient/codec/xmlrpc"
	"rpcclient/protocol"
)

// Standard JSON-RPC error codes, also used for XML-RPC faults.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeServerError    = -32000
)

// Fault makes a method fail with a specific code.
type Fault struct {
	Code    int64
	Message string
}

func (f *Fault) Error() string { return f.Message }

// Received is one request as seen after the envelope was removed.
type Received struct {
	ContentType string
	Body        []byte
}

// Server is a running test server. The zero value is not usable, see NewServer.
type Server struct {
	*httptest.Server

	key     string
	mu      sync.Mutex
	methods map[string]Method
	log     []Received
}

// NewServer starts a server. A non-empty key enables the encrypted envelope.
func NewServer(key string) *Server {
	s := &Server{key: key, methods: make(map[string]Method)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Register exposes the methods of rcvr as "Type.Method".
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, m := range svc.method {
		s.methods[svc.name+"."+name] = m
	}
	return nil
}

// Handle exposes fn under name.
func (s *Server) Handle(name string, fn Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[name] = fn
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Received(nil), s.log...)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.key != "" {
		if body, err = s.open(body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	ct := r.Header.Get("Content-Type")
	s.mu.Lock()
	s.log = append(s.log, Received{ContentType: ct, Body: body})
	s.mu.Unlock()

	var out []byte
	if strings.HasPrefix(ct, "application/json") {
		out = s.serveJSON(body)
	} else {
		out = s.serveXML(body)
	}
	if out == nil {
		return
	}
	if s.key != "" {
		if out, err = s.seal(out); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
	} else {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = w.Write(out)
}

func (s *Server) open(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, []byte(protocol.RequestMarker)) {
		return nil, errors.New("request is not encrypted")
	}
	sealed, err := base64.StdEncoding.DecodeString(string(body[len(protocol.RequestMarker):]))
	if err != nil {
		return nil, err
	}
	return protocol.NewCipher(s.key).Decrypt(sealed)
}

func (s *Server) seal(plain []byte) ([]byte, error) {
	sealed, err := protocol.NewCipher(s.key).Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return []byte(protocol.ResponseMarker + "-" + base64.StdEncoding.EncodeToString(sealed)), nil
}

func (s *Server) call(name string, params []any) (any, *Fault) {
	s.mu.Lock()
	fn, ok := s.methods[name]
	s.mu.Unlock()
	if !ok {
		return nil, &Fault{Code: CodeMethodNotFound, Message: "Method not found"}
	}
	result, err := fn(params)
	if err != nil {
		var f *Fault
		if errors.As(err, &f) {
			return nil, f
		}
		return nil, &Fault{Code: CodeServerError, Message: err.Error()}
	}
	return result, nil
}

type jsonResponse struct {
	JSONRPC string     `json:"jsonrpc"`
	Result  any        `json:"result,omitempty"`
	Error   *jsonError `json:"error,omitempty"`
	ID      any        `json:"id"`
}

type jsonError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// serveJSON returns nil when nothing must be answered.
func (s *Server) serveJSON(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		out, _ := json.Marshal(jsonResponse{
			JSONRPC: "2.0",
			Error:   &jsonError{Code: CodeParseError, Message: "Parse error"},
		})
		return out
	}

	if batch, ok := v.([]any); ok {
		var replies []jsonResponse
		for _, entry := range batch {
			if reply, ok := s.jsonOne(entry); ok {
				replies = append(replies, reply)
			}
		}
		if len(replies) == 0 {
			return nil
		}
		out, _ := json.Marshal(replies)
		return out
	}
	reply, ok := s.jsonOne(v)
	if !ok {
		return nil
	}
	out, _ := json.Marshal(reply)
	return out
}

func (s *Server) jsonOne(entry any) (jsonResponse, bool) {
	req, _ := entry.(map[string]any)
	id, hasID := req["id"]
	method, _ := req["method"].(string)
	params, _ := normalize(req["params"]).([]any)

	result, fault := s.call(method, params)
	if !hasID {
		return jsonResponse{}, false
	}
	reply := jsonResponse{JSONRPC: "2.0", ID: id}
	if fault != nil {
		reply.Error = &jsonError{Code: fault.Code, Message: fault.Message}
	} else {
		reply.Result = result
	}
	return reply, true
}

func (s *Server) serveXML(body []byte) []byte {
	method, params, err := xmlrpc.DecodeCall(body)
	if err != nil {
		out, _ := xmlrpc.EncodeFault(&xmlrpc.Fault{Code: CodeParseError, String: err.Error()}, "")
		return out
	}
	if method != xmlrpc.MulticallMethod {
		result, fault := s.call(method, params)
		var out []byte
		if fault != nil {
			out, err = xmlrpc.EncodeFault(&xmlrpc.Fault{Code: fault.Code, String: fault.Message}, "")
		} else {
			out, err = xmlrpc.EncodeResponse(result, "")
		}
		if err != nil {
			out, _ = xmlrpc.EncodeFault(&xmlrpc.Fault{Code: CodeServerError, String: err.Error()}, "")
		}
		return out
	}

	var calls []any
	if len(params) == 1 {
		calls, _ = params[0].([]any)
	}
	results := make([]any, len(calls))
	for i, c := range calls {
		spec, _ := c.(map[string]any)
		name, _ := spec["methodName"].(string)
		args, _ := spec["params"].([]any)
		result, fault := s.call(name, args)
		if fault != nil {
			results[i] = (&xmlrpc.Fault{Code: fault.Code, String: fault.Message}).Value()
			continue
		}
		results[i] = []any{result}
	}
	out, err := xmlrpc.EncodeResponse(results, "")
	if err != nil {
		out, _ = xmlrpc.EncodeFault(&xmlrpc.Fault{Code: CodeServerError, String: err.Error()}, "")
	}
	return out
}

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
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
	}
	return v
}
