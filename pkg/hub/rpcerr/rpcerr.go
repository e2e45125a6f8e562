// Package rpcerr translates the proxy's internal error taxonomy into
// JSON-RPC 2.0 error objects, and the reverse mapping of JSON-RPC method
// names to the standard "method not found" code.
package rpcerr

import (
	"encoding/json"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
)

// Standard JSON-RPC 2.0 reserved codes, plus the server-error range the
// proxy uses for its own classification.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeUpstreamUnavailable is a proxy-specific server-error code (in
	// the reserved -32000 to -32099 range) used when no healthy backend
	// could serve a request that resolved to a known capability.
	CodeUpstreamUnavailable = -32001
)

// Object is the JSON-RPC 2.0 error object shape.
type Object struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type reasonData struct {
	Reason string `json:"reason"`
}

// FromError maps a proxy error to a JSON-RPC error object, classifying by
// Kind and attaching a machine-readable reason in data.
func FromError(err error) Object {
	kind := huberrors.KindOf(err)
	code := CodeInternalError

	switch kind {
	case huberrors.KindNotFound:
		code = CodeMethodNotFound
	case huberrors.KindConfig:
		code = CodeInvalidRequest
	case huberrors.KindProtocol:
		// "internal error: backend protocol violation" per the taxonomy.
		code = CodeInternalError
	case huberrors.KindDeadline:
		code = CodeInternalError
	case huberrors.KindTransport:
		// A Transport failure that survived the router's one retry is
		// surfaced as "internal error" with data.reason="transport".
		code = CodeInternalError
	case huberrors.KindApplication:
		code = CodeInternalError
	}

	data, _ := json.Marshal(reasonData{Reason: string(kind)})
	return Object{
		Code:    code,
		Message: err.Error(),
		Data:    data,
	}
}

// MethodNotFound builds the standard "method not found" error object for
// a method with no owning backend in the capability index.
func MethodNotFound(method string) Object {
	data, _ := json.Marshal(reasonData{Reason: "no backend advertises " + method})
	return Object{Code: CodeMethodNotFound, Message: "method not found", Data: data}
}
