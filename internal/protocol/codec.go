package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind distinguishes the three JSON-RPC message shapes.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
)

// Message is the decoded form of a single JSON-RPC payload. Exactly one of
// the pointer fields is set, matching Kind.
type Message struct {
	Kind         Kind
	Request      *Request
	Notification *Notification
	Response     *Response
}

// envelope captures every field a JSON-RPC payload may carry so the message
// shape can be classified before any typed decoding happens.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// DecodeMessage parses and classifies a single JSON-RPC payload. Malformed
// JSON yields a ParseError; a structurally valid payload that is not a valid
// request, response or notification yields an InvalidRequest. Both are
// returned as *Error values.
func DecodeMessage(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewError(ParseError, "Parse error", err.Error())
	}

	id, err := decodeID(env.ID)
	if err != nil {
		return nil, err
	}

	// Responses carry result or error and no method.
	if len(env.Method) == 0 {
		if len(env.Result) > 0 || env.Error != nil {
			var result any
			if len(env.Result) > 0 {
				if err := json.Unmarshal(env.Result, &result); err != nil {
					return nil, NewError(InvalidRequest, "Invalid result", err.Error())
				}
			}
			return &Message{
				Kind:     KindResponse,
				Response: &Response{JSONRPC: env.JSONRPC, ID: id, Result: result, Error: env.Error},
			}, nil
		}
		return nil, NewError(InvalidRequest, "Invalid Request", "missing method")
	}

	var method string
	if err := json.Unmarshal(env.Method, &method); err != nil {
		return nil, NewError(InvalidRequest, "Invalid Request", "method must be a string")
	}
	if method == "" {
		return nil, NewError(InvalidRequest, "Invalid Request", "method must not be empty")
	}

	if id == nil {
		var params any
		if len(env.Params) > 0 {
			if err := json.Unmarshal(env.Params, &params); err != nil {
				return nil, NewError(InvalidRequest, "Invalid Request", "malformed params")
			}
		}
		return &Message{
			Kind:         KindNotification,
			Notification: &Notification{JSONRPC: env.JSONRPC, Method: method, Params: params},
		}, nil
	}

	return &Message{
		Kind:    KindRequest,
		Request: &Request{JSONRPC: env.JSONRPC, ID: id, Method: method, Params: env.Params},
	}, nil
}

// DecodeRequest parses a payload that must be a request or notification,
// returning it in Request form (notifications come back with a nil ID).
func DecodeRequest(data []byte) (*Request, error) {
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	switch msg.Kind {
	case KindRequest:
		return msg.Request, nil
	case KindNotification:
		n := msg.Notification
		var params json.RawMessage
		if n.Params != nil {
			raw, err := json.Marshal(n.Params)
			if err != nil {
				return nil, NewError(InternalError, "Internal error", err.Error())
			}
			params = raw
		}
		return &Request{JSONRPC: n.JSONRPC, Method: n.Method, Params: params}, nil
	default:
		return nil, NewError(InvalidRequest, "Invalid Request", "expected a request")
	}
}

// SplitBatch parses the top level of a batch payload into its ordered raw
// entries. Each entry is decoded individually by the caller; one malformed
// entry must not abort the rest.
func SplitBatch(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, NewError(ParseError, "Parse error", err.Error())
	}
	return items, nil
}

// Encode serializes any well-formed protocol value. Failure here is a caller
// programming error, not a runtime contract.
func Encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: encoding %T: %v", v, err))
	}
	return data
}

// decodeID validates that an id is absent, null, a string or a number. Ids
// are opaque and never interpreted numerically; numbers are kept as
// json.Number so the exact digits are echoed back, even past float64
// precision.
func decodeID(raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var id any
	if err := dec.Decode(&id); err != nil {
		return nil, NewError(InvalidRequest, "Invalid Request", "malformed id")
	}
	switch id.(type) {
	case string, json.Number:
		return id, nil
	default:
		return nil, NewError(InvalidRequest, "Invalid Request", "id must be a string or integer")
	}
}
