// Package router is the single network face of the proxy: the MCP
// JSON-RPC endpoint and the management HTTP surface, built on chi.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcp-hub/proxy/pkg/hub"
	"github.com/mcp-hub/proxy/pkg/hub/aggregator"
	huberrors "github.com/mcp-hub/proxy/pkg/errors"
	"github.com/mcp-hub/proxy/pkg/hub/mcpclient"
	"github.com/mcp-hub/proxy/pkg/hub/metrics"
	"github.com/mcp-hub/proxy/pkg/hub/rpcerr"
	"github.com/mcp-hub/proxy/pkg/hub/status"
	"github.com/mcp-hub/proxy/pkg/logger"
)

// Registry is the subset of *registry.Registry the router needs.
type Registry interface {
	Snapshot() []hub.Backend
}

// Index is the subset of *aggregator.Index the router dispatches
// through.
type Index interface {
	Tool(name string) (aggregator.ToolEntry, bool)
	Resource(uri string) (aggregator.ResourceEntry, bool)
	Prompt(name string) (aggregator.PromptEntry, bool)
	Tools() []aggregator.ToolEntry
	Resources() []aggregator.ResourceEntry
	Prompts() []aggregator.PromptEntry
}

// IndexSource supplies the currently-published Index without ever
// blocking a writer (backed by aggregator.Publisher in production).
type IndexSource interface {
	Current() *aggregator.Index
}

// Config tunes the router's timeout and retry behavior.
type Config struct {
	RequestDeadline time.Duration
	RoutingBudget   time.Duration
}

// DefaultConfig returns the standard per-request deadline and routing
// budget.
func DefaultConfig() Config {
	return Config{RequestDeadline: 30 * time.Second, RoutingBudget: 100 * time.Millisecond}
}

// Router dispatches MCP JSON-RPC requests and serves the management
// surface.
type Router struct {
	registry Registry
	index    IndexSource
	client   mcpclient.Client
	cfg      Config
}

// New constructs a Router.
func New(reg Registry, index IndexSource, client mcpclient.Client, cfg Config) *Router {
	return &Router{registry: reg, index: index, client: client, cfg: cfg}
}

// Handler builds the chi mux exposing every route the router serves.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(rt.cfg.RequestDeadline))

	r.Post("/", rt.handleMCP)
	r.Get("/health", rt.handleHealth)
	r.Get("/servers", rt.handleServers)
	r.Get("/status", rt.handleStatus)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type incoming struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type outgoing struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcerr.Object  `json:"error,omitempty"`
}

func (rt *Router) handleMCP(w http.ResponseWriter, r *http.Request) {
	var req incoming
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeError(w, nil, rpcerr.Object{Code: rpcerr.CodeParseError, Message: "invalid JSON"})
		return
	}

	if strings.HasPrefix(req.Method, "notifications/") {
		rt.handleNotification(r.Context(), req)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.cfg.RequestDeadline)
	defer cancel()

	idx := rt.index.Current()

	switch req.Method {
	case "initialize":
		rt.writeResult(w, req.ID, synthesizeInitializeResult(idx))
	case "tools/list":
		rt.writeResult(w, req.ID, toolsListResult(idx))
	case "resources/list":
		rt.writeResult(w, req.ID, resourcesListResult(idx))
	case "prompts/list":
		rt.writeResult(w, req.ID, promptsListResult(idx))
	case "tools/call":
		rt.forwardByTool(ctx, w, req, idx)
	case "resources/read":
		rt.forwardByResource(ctx, w, req, idx)
	case "prompts/get":
		rt.forwardByPrompt(ctx, w, req, idx)
	default:
		rt.writeError(w, req.ID, rpcerr.MethodNotFound(req.Method))
	}
}

func (rt *Router) handleNotification(ctx context.Context, req incoming) {
	metrics.DroppedNotificationsTotal.WithLabelValues(req.Method).Inc()
	logger.Debugw("dropped notification: no routable target", "method", req.Method)
}

func (rt *Router) forwardByTool(ctx context.Context, w http.ResponseWriter, req incoming, idx Index) {
	var params struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(req.Params, &params)

	entry, ok := idx.Tool(params.Name)
	if !ok {
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcerr.CodeMethodNotFound, Message: "tool not found"})
		return
	}
	rt.forward(ctx, w, req, entry.Backend)
}

func (rt *Router) forwardByResource(ctx context.Context, w http.ResponseWriter, req incoming, idx Index) {
	var params struct {
		URI string `json:"uri"`
	}
	_ = json.Unmarshal(req.Params, &params)

	entry, ok := idx.Resource(params.URI)
	if !ok {
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcerr.CodeMethodNotFound, Message: "resource not found"})
		return
	}
	rt.forward(ctx, w, req, entry.Backend)
}

func (rt *Router) forwardByPrompt(ctx context.Context, w http.ResponseWriter, req incoming, idx Index) {
	var params struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(req.Params, &params)

	entry, ok := idx.Prompt(params.Name)
	if !ok {
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcerr.CodeMethodNotFound, Message: "prompt not found"})
		return
	}
	rt.forward(ctx, w, req, entry.Backend)
}

// forward resolves backendName to its base URL and issues the call, with
// at most one retry on a Transport failure. Application and Protocol
// failures are not retried.
func (rt *Router) forward(ctx context.Context, w http.ResponseWriter, req incoming, backendName string) {
	baseURL := rt.baseURLFor(backendName)
	if baseURL == "" {
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcerr.CodeUpstreamUnavailable, Message: "backend no longer available"})
		return
	}

	callCtx, cancel := mcpclient.CallWithDeadline(ctx, rt.cfg.RequestDeadline, rt.cfg.RoutingBudget)
	defer cancel()

	result, rpcErr, err := rt.client.Call(callCtx, baseURL, req.Method, req.Params)
	if err != nil && huberrors.KindOf(err) == huberrors.KindTransport {
		metrics.ErrorsTotal.WithLabelValues(string(huberrors.KindTransport)).Inc()
		result, rpcErr, err = rt.client.Call(callCtx, baseURL, req.Method, req.Params)
	}

	if ctx.Err() != nil {
		metrics.ErrorsTotal.WithLabelValues(string(huberrors.KindDeadline)).Inc()
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcerr.CodeInternalError, Message: "deadline exceeded",
			Data: mustJSON(map[string]string{"reason": "deadline exceeded"})})
		return
	}

	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(string(huberrors.KindOf(err))).Inc()
		rt.writeError(w, req.ID, rpcerr.FromError(err))
		return
	}
	if rpcErr != nil {
		metrics.ErrorsTotal.WithLabelValues(string(huberrors.KindApplication)).Inc()
		rt.writeError(w, req.ID, rpcerr.Object{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data})
		return
	}
	rt.writeResult(w, req.ID, result)
}

func (rt *Router) baseURLFor(name string) string {
	for _, b := range rt.registry.Snapshot() {
		if b.Name == name && b.IsHealthy() {
			return b.BaseURL
		}
	}
	return ""
}

func (rt *Router) writeResult(w http.ResponseWriter, id json.RawMessage, result json.RawMessage) {
	rt.writeJSON(w, outgoing{JSONRPC: "2.0", ID: id, Result: result})
}

func (rt *Router) writeError(w http.ResponseWriter, id json.RawMessage, obj rpcerr.Object) {
	rt.writeJSON(w, outgoing{JSONRPC: "2.0", ID: id, Error: &obj})
}

func (rt *Router) writeJSON(w http.ResponseWriter, v outgoing) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func synthesizeInitializeResult(idx Index) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"tools":     idx.Tools(),
		"resources": idx.Resources(),
		"prompts":   idx.Prompts(),
	})
	return data
}

func toolsListResult(idx Index) json.RawMessage {
	data, _ := json.Marshal(map[string]any{"tools": idx.Tools()})
	return data
}

func resourcesListResult(idx Index) json.RawMessage {
	data, _ := json.Marshal(map[string]any{"resources": idx.Resources()})
	return data
}

func promptsListResult(idx Index) json.RawMessage {
	data, _ := json.Marshal(map[string]any{"prompts": idx.Prompts()})
	return data
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := rt.registry.Snapshot()
	healthy := 0
	names := make([]string, 0, len(snapshot))
	for _, b := range snapshot {
		names = append(names, b.Name)
		if b.IsHealthy() {
			healthy++
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"servers":         len(snapshot),
		"healthy_servers": healthy,
		"server_list":     names,
	})
}

func (rt *Router) handleServers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"servers": rt.registry.Snapshot()})
}

func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	s := status.Build(rt.registry.Snapshot())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Text()))
}
