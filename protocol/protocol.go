// Package protocol implements the comodojo encrypted envelope carried inside
// the HTTP body when a shared key is configured.
//
// The envelope is not part of XML-RPC or JSON-RPC. Both directions are ASCII
// text so they survive any HTTP stack:
//
//	request:  comodojo_encrypted_request-<base64(AES(payload))>
//	response: comodojo_encrypted_response<sep><base64(AES(payload))>
//	          └──────────── 27 ─────────┘└ 1 ┘└── from offset 28 ──┘
//
// The separator byte of a response is never inspected.
package protocol

import (
	"bytes"
	"encoding/base64"

	"rpcclient/rpcerr"
)

const (
	RequestMarker  = "comodojo_encrypted_request-"
	ResponseMarker = "comodojo_encrypted_response"

	// bodyOffset is where the base64 body of a response starts: the marker
	// plus one separator byte.
	bodyOffset = len(ResponseMarker) + 1
)

// MsgInconsistent is the message of every envelope error on the response side.
const MsgInconsistent = "Inconsistent encrypted response received"

// Wrap encrypts payload with key and returns the request envelope. With an
// empty key the payload is returned unchanged.
func Wrap(payload []byte, key string) ([]byte, error) {
	if key == "" {
		return payload, nil
	}
	sealed, err := NewCipher(key).Encrypt(payload)
	if err != nil {
		return nil, rpcerr.Wrap("protocol.Wrap", rpcerr.InvalidArgument, err, "cannot encrypt payload")
	}
	out := make([]byte, len(RequestMarker)+base64.StdEncoding.EncodedLen(len(sealed)))
	n := copy(out, RequestMarker)
	base64.StdEncoding.Encode(out[n:], sealed)
	return out, nil
}

// Unwrap checks the response envelope and decrypts it with key. With an empty
// key the payload is returned unchanged.
func Unwrap(payload []byte, key string) ([]byte, error) {
	const op = "protocol.Unwrap"
	if key == "" {
		return payload, nil
	}
	if !bytes.HasPrefix(payload, []byte(ResponseMarker)) {
		return nil, rpcerr.New(op, rpcerr.Protocol, MsgInconsistent)
	}

	var body []byte
	if len(payload) > bodyOffset {
		body = bytes.TrimSpace(payload[bodyOffset:])
	}
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(sealed, body)
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Protocol, err, MsgInconsistent)
	}
	plain, err := NewCipher(key).Decrypt(sealed[:n])
	if err != nil {
		return nil, rpcerr.Wrap(op, rpcerr.Protocol, err, MsgInconsistent)
	}
	return plain, nil
}
