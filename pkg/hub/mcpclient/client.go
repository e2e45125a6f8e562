// Package mcpclient speaks MCP JSON-RPC 2.0 to a single backend. Two
// call shapes are served by one client: typed discovery calls
// (initialize, tools/list, resources/list, prompts/list) delegate to
// mark3labs/mcp-go's streamable-HTTP client, since the health monitor
// only needs the parsed result; verbatim forwarding calls (tools/call,
// resources/read, prompts/get) are issued as a hand-built JSON-RPC
// envelope so the router can preserve whatever result or error shape the
// backend returns, unparsed, for response-id rewriting.
package mcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	huberrors "github.com/mcp-hub/proxy/pkg/errors"
	"github.com/mcp-hub/proxy/pkg/hub"
)

// Client talks to exactly one backend's MCP endpoint.
type Client interface {
	// Initialize performs the MCP handshake and returns the raw
	// initialize result alongside the typed capability lists obtained
	// from the three subsequent list_* calls.
	Initialize(ctx context.Context, baseURL string) (hub.Capabilities, error)

	// Call forwards a single JSON-RPC method verbatim, returning the raw
	// result bytes on success or a structured JSON-RPC error object. The
	// id used on the wire is generated internally; callers rewrite the
	// id on the response they hand back to their own caller.
	Call(ctx context.Context, baseURL, method string, params json.RawMessage) (result json.RawMessage, rpcErr *RPCError, err error)

	// Notify forwards a notification (no id, no response expected).
	Notify(ctx context.Context, baseURL, method string, params json.RawMessage) error
}

// RPCError mirrors the JSON-RPC 2.0 error object so the router can
// forward it to its own caller unchanged.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type responseEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type httpClient struct {
	hc *http.Client
}

// New constructs a Client whose outbound HTTP connections are pooled with
// a bounded idle-connection cap per host, so a flapping backend cannot
// exhaust the proxy's file descriptors.
func New() Client {
	return &httpClient{
		hc: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
			},
		},
	}
}

func (c *httpClient) Initialize(ctx context.Context, baseURL string) (hub.Capabilities, error) {
	sdk, err := mcpsdk.NewStreamableHttpClient(baseURL)
	if err != nil {
		return hub.Capabilities{}, huberrors.Wrap(huberrors.KindTransport, "creating MCP client", err)
	}
	defer sdk.Close()

	if err := sdk.Start(ctx); err != nil {
		return hub.Capabilities{}, huberrors.Wrap(huberrors.KindTransport, "starting MCP transport", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mcp-hub-proxy", Version: "dev"}

	initResult, err := sdk.Initialize(ctx, initReq)
	if err != nil {
		return hub.Capabilities{}, huberrors.Wrap(huberrors.KindProtocol, "initialize failed", err)
	}

	raw, err := json.Marshal(initResult)
	if err != nil {
		raw = nil
	}

	caps := hub.Capabilities{Raw: raw}

	if toolsRes, err := sdk.ListTools(ctx, mcp.ListToolsRequest{}); err == nil {
		for _, t := range toolsRes.Tools {
			caps.Tools = append(caps.Tools, hub.Tool{Name: t.Name, Description: t.Description})
		}
	}
	if resRes, err := sdk.ListResources(ctx, mcp.ListResourcesRequest{}); err == nil {
		for _, r := range resRes.Resources {
			caps.Resources = append(caps.Resources, hub.Resource{
				URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MIMEType,
			})
		}
	}
	if promptsRes, err := sdk.ListPrompts(ctx, mcp.ListPromptsRequest{}); err == nil {
		for _, p := range promptsRes.Prompts {
			caps.Prompts = append(caps.Prompts, hub.Prompt{Name: p.Name, Description: p.Description})
		}
	}

	return caps, nil
}

func (c *httpClient) Call(ctx context.Context, baseURL, method string, params json.RawMessage) (json.RawMessage, *RPCError, error) {
	env := envelope{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, nil, huberrors.Wrap(huberrors.KindProtocol, "encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(baseURL), bytes.NewReader(body))
	if err != nil {
		return nil, nil, huberrors.Wrap(huberrors.KindTransport, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, huberrors.Wrap(huberrors.KindTransport, fmt.Sprintf("calling %s", method), err)
	}
	defer resp.Body.Close()

	var out responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, huberrors.Wrap(huberrors.KindProtocol, "decoding response envelope", err)
	}
	if out.JSONRPC != "2.0" {
		return nil, nil, huberrors.New(huberrors.KindProtocol, "response missing jsonrpc 2.0 envelope")
	}
	if out.Error != nil {
		return nil, out.Error, nil
	}
	return out.Result, nil, nil
}

func (c *httpClient) Notify(ctx context.Context, baseURL, method string, params json.RawMessage) error {
	env := envelope{JSONRPC: "2.0", Method: method, Params: params}
	body, err := json.Marshal(env)
	if err != nil {
		return huberrors.Wrap(huberrors.KindProtocol, "encoding notification", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(baseURL), bytes.NewReader(body))
	if err != nil {
		return huberrors.Wrap(huberrors.KindTransport, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return huberrors.Wrap(huberrors.KindTransport, "forwarding notification", err)
	}
	defer resp.Body.Close()
	return nil
}

func endpoint(baseURL string) string {
	return baseURL + "/mcp"
}

// CallWithDeadline derives a per-call deadline from the context's existing
// deadline minus the routing budget, returning a derived context and its
// cancel func. If the context has no deadline, fallback is used directly.
func CallWithDeadline(ctx context.Context, fallback time.Duration, routingBudget time.Duration) (context.Context, context.CancelFunc) {
	if dl, ok := ctx.Deadline(); ok {
		remaining := time.Until(dl) - routingBudget
		if remaining < 0 {
			remaining = 0
		}
		return context.WithTimeout(ctx, remaining)
	}
	return context.WithTimeout(ctx, fallback)
}
