package codec

import (
	"rpcclient/codec/xmlrpc"
	"rpcclient/message"
	"rpcclient/rpcerr"
)

// XMLProcessor implements XML-RPC.
//
// Two or more requests are sent as one system.multicall. Special types apply
// to the params of the request that declared them, unless SharedSpecialTypes
// is set, in which case the tables of all requests are merged and apply to the
// whole payload.
type XMLProcessor struct {
	Encoding           string
	SharedSpecialTypes bool
}

func (p *XMLProcessor) Protocol() Protocol { return ProtocolXML }

func (p *XMLProcessor) encoding() string {
	if p.Encoding == "" {
		return DefaultEncoding
	}
	return p.Encoding
}

func (p *XMLProcessor) Encode(reqs []*message.Request) (*Exchange, error) {
	const op = "codec.XMLProcessor.Encode"
	if err := checkRequests(op, reqs); err != nil {
		return nil, err
	}

	var (
		body []byte
		err  error
	)
	if len(reqs) == 1 {
		r := reqs[0]
		body, err = xmlrpc.EncodeCall(r.Method(), r.Params(), r.SpecialTypes(), p.encoding())
	} else {
		var shared xmlrpc.Types
		if p.SharedSpecialTypes {
			shared = xmlrpc.Types{}
		}
		calls := make([]xmlrpc.Call, len(reqs))
		for i, r := range reqs {
			calls[i] = xmlrpc.Call{Method: r.Method(), Params: r.Params()}
			if shared != nil {
				for v, t := range r.SpecialTypes() {
					shared[v] = t
				}
			} else {
				calls[i].Types = r.SpecialTypes()
			}
		}
		body, err = xmlrpc.EncodeMulticall(calls, shared, p.encoding())
	}
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.InvalidArgument, err, "cannot encode request")
	}

	return &Exchange{
		Protocol:  ProtocolXML,
		Payload:   body,
		Multicall: len(reqs) > 1,
		Count:     len(reqs),
	}, nil
}

// Decode returns the value of a single call, or one value per call of a
// multicall. Successful multicall entries come wrapped in a one element array
// and are unwrapped; a failed entry is left as its fault struct.
func (p *XMLProcessor) Decode(ex *Exchange, body []byte) (any, error) {
	const op = "codec.XMLProcessor.Decode"
	if err := checkExchange(op, ex, ProtocolXML); err != nil {
		return nil, err
	}

	value, fault, err := xmlrpc.DecodeResponse(body)
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Protocol, err, "Invalid XML-RPC response")
	}
	if fault != nil {
		return nil, rpcerr.NewFault(op, fault.Code, fault.String)
	}
	if !ex.Multicall {
		return value, nil
	}

	entries, ok := value.([]any)
	if !ok {
		return nil, rpcerr.Errorf(op, rpcerr.Protocol, "multicall response is a %T, not an array", value)
	}
	for i, entry := range entries {
		if wrapped, ok := entry.([]any); ok && len(wrapped) == 1 {
			entries[i] = wrapped[0]
		}
	}
	return entries, nil
}
