// Package codec turns a queue of call requests into one wire payload and a raw
// wire response back into call results.
//
// Two processors exist, one per protocol:
//
//	XMLProcessor   XML-RPC, multicall through system.multicall
//	JSONProcessor  JSON-RPC 2.0, multicall through batch arrays
//
// Encode returns an *Exchange describing what the response must look like
// (expected ids, multicall or not). Decode consumes that Exchange, so a
// processor holds no per-call state and can serve concurrent calls.
package codec

import (
	"strings"

	"rpcclient/message"
	"rpcclient/rpcerr"
)

// Protocol selects the wire format.
type Protocol byte

const (
	ProtocolXML  Protocol = 0 // default
	ProtocolJSON Protocol = 1
)

// DefaultEncoding is the character encoding used when none is configured.
const DefaultEncoding = "utf-8"

// ParseProtocol parses "XML" or "JSON", ignoring case.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(s) {
	case "XML":
		return ProtocolXML, nil
	case "JSON":
		return ProtocolJSON, nil
	}
	return 0, rpcerr.Errorf("codec.ParseProtocol", rpcerr.InvalidArgument, "Invalid RPC protocol %q", s)
}

func (p Protocol) String() string {
	if p == ProtocolJSON {
		return "JSON"
	}
	return "XML"
}

// ContentType returns the HTTP Content-Type of payloads in this protocol.
func (p Protocol) ContentType() string {
	if p == ProtocolJSON {
		return "application/json"
	}
	return "text/xml"
}

// Exchange is the pending state of one encode/decode pair.
type Exchange struct {
	Protocol    Protocol
	Payload     []byte // encoded request body
	ExpectedIDs []any  // JSON-RPC ids in request order, notifications excluded
	Multicall   bool   // more than one request was encoded
	Count       int    // number of requests encoded
}

// Processor encodes requests and decodes responses for one protocol.
type Processor interface {
	// Encode builds the payload for reqs, in order. reqs must not be empty.
	Encode(reqs []*message.Request) (*Exchange, error)
	// Decode interprets body as the answer to ex.
	Decode(ex *Exchange, body []byte) (any, error)
	// Protocol returns the protocol handled.
	Protocol() Protocol
}

// GetProcessor returns a processor for p writing payloads in the given
// character encoding.
func GetProcessor(p Protocol, encoding string) Processor {
	if p == ProtocolJSON {
		return &JSONProcessor{}
	}
	return &XMLProcessor{Encoding: encoding}
}

func checkExchange(op string, ex *Exchange, p Protocol) error {
	if ex == nil {
		return rpcerr.New(op, rpcerr.InvalidState, "decode without a matching encode")
	}
	if ex.Protocol != p {
		return rpcerr.Errorf(op, rpcerr.InvalidState, "exchange was encoded as %s, not %s", ex.Protocol, p)
	}
	return nil
}

func checkRequests(op string, reqs []*message.Request) error {
	if len(reqs) == 0 {
		return rpcerr.New(op, rpcerr.InvalidState, "No request to send")
	}
	for i, r := range reqs {
		if r == nil {
			return rpcerr.Errorf(op, rpcerr.InvalidArgument, "request %d is nil", i)
		}
	}
	return nil
}
