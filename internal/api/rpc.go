// Package api exposes the node's read-side JSON-RPC 2.0 surface, a small
// REST admin surface, and a websocket hub broadcasting sync progress —
// mounted together on one gin.Engine.
package api

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/pegnet/pegfollow/internal/asset"
	"github.com/pegnet/pegfollow/internal/chainadapter"
	"github.com/pegnet/pegfollow/internal/faults"
	"github.com/pegnet/pegfollow/internal/store"
)

// Standard JSON-RPC 2.0 error codes, plus the one application code this
// node defines.
const (
	errParseError       = -32700
	errInvalidRequest   = -32600
	errMethodNotFound   = -32601
	errInvalidParams    = -32602
	errInternal         = -32603
	errChainUnavailable = -32000
)

// errBadParams marks a request whose params failed to decode or validate.
var errBadParams = errors.New("api: bad rpc params")

func badParams(msg string) error {
	return &fault{msg: msg, category: errBadParams}
}

type fault struct {
	msg      string
	category error
}

func (f *fault) Error() string  { return f.msg }
func (f *fault) Unwrap() error  { return f.category }

// rpcRequest is a single JSON-RPC 2.0 call.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// rpcError is the {code, message} shape of a JSON-RPC error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse is the {id, result, error} shape every call returns.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Dispatcher serves the read-only RPC methods directly from the KV store
// and the chain adapter, never blocking on the driver's writer loop.
type Dispatcher struct {
	Store   store.KVStore
	Adapter chainadapter.Adapter
	Network asset.Constants
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(kv store.KVStore, adapter chainadapter.Adapter, network asset.Constants) *Dispatcher {
	return &Dispatcher{Store: kv, Adapter: adapter, Network: network}
}

// Handle dispatches req to the matching method and returns a fully-formed
// response, including on malformed params or an unknown method.
func (d *Dispatcher) Handle(ctx context.Context, req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	var result any
	var err error

	switch req.Method {
	case "get_sync_head":
		result, err = d.getSyncHead(ctx)
	case "get_winners_head":
		result, err = d.getWinnersHead(ctx)
	case "get_factoid_head":
		result, err = d.getFactoidHead(ctx)
	case "get_winners":
		result, err = d.getWinners(ctx, req.Params)
	case "get_latest_winners":
		result, err = d.getLatestWinners(ctx)
	case "get_rates":
		result, err = d.getRates(ctx, req.Params)
	case "get_balances":
		result, err = d.getBalances(ctx, req.Params)
	default:
		resp.Error = &rpcError{Code: errMethodNotFound, Message: "method not found"}
		return resp
	}

	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// toRPCError maps an internal fault category to the JSON-RPC error code
// the RPC surface promises callers.
func toRPCError(err error) *rpcError {
	switch {
	case errors.Is(err, faults.ChainUnavailable):
		return &rpcError{Code: errChainUnavailable, Message: "chain unavailable"}
	case errors.Is(err, errBadParams):
		return &rpcError{Code: errInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: errInternal, Message: "internal error"}
	}
}

func (d *Dispatcher) getSyncHead(ctx context.Context) (any, error) {
	raw, ok, err := d.Store.Get(ctx, store.KeySyncHead())
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading sync head", err)
	}
	if !ok {
		return map[string]any{"height": nil}, nil
	}
	return map[string]any{"height": binary.BigEndian.Uint32(raw)}, nil
}

func (d *Dispatcher) getWinnersHead(ctx context.Context) (any, error) {
	raw, ok, err := d.Store.Get(ctx, store.KeyWinnersHead())
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading winners head", err)
	}
	if !ok {
		return map[string]any{"height": nil}, nil
	}
	return map[string]any{"height": binary.BigEndian.Uint32(raw)}, nil
}

func (d *Dispatcher) getFactoidHead(ctx context.Context) (any, error) {
	raw, ok, err := d.Store.Get(ctx, store.KeyFactoidHead())
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading factoid head", err)
	}
	if !ok {
		return map[string]any{"height": nil}, nil
	}
	return map[string]any{"height": binary.BigEndian.Uint32(raw)}, nil
}

type heightParams struct {
	Height uint32 `json:"height"`
}

func (d *Dispatcher) getWinners(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var p heightParams
	if err := json.Unmarshal(rawParams, &p); err != nil {
		return nil, badParams("height parameter required")
	}
	return d.winnersAtHeight(ctx, p.Height)
}

func (d *Dispatcher) winnersAtHeight(ctx context.Context, height uint32) (any, error) {
	blob, ok, err := d.Store.Get(ctx, store.KeyWinners(height))
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading winners", err)
	}
	if !ok || len(blob) != 10*32 {
		return map[string]any{"winners": nil}, nil
	}

	hashes := make([]string, 10)
	for i := 0; i < 10; i++ {
		hashes[i] = hexEncode(blob[i*32 : (i+1)*32])
	}
	return map[string]any{"height": height, "winners": hashes}, nil
}

func (d *Dispatcher) getLatestWinners(ctx context.Context) (any, error) {
	head, ok, err := d.Store.Get(ctx, store.KeyWinnersHead())
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading winners head", err)
	}
	if !ok {
		return map[string]any{"winners": nil}, nil
	}
	return d.winnersAtHeight(ctx, binary.BigEndian.Uint32(head))
}

func (d *Dispatcher) getRates(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var p heightParams
	if err := json.Unmarshal(rawParams, &p); err != nil {
		return nil, badParams("height parameter required")
	}

	raw, ok, err := d.Store.Get(ctx, store.KeyRates(p.Height))
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading rates", err)
	}
	if !ok {
		return map[string]any{"rates": nil}, nil
	}

	var rates map[string]float64
	if err := json.Unmarshal(raw, &rates); err != nil {
		return nil, faults.Wrap(faults.StorageFault, "decoding rates", err)
	}
	return map[string]any{"height": p.Height, "rates": rates}, nil
}

type addressParams struct {
	Address string `json:"address"`
}

func (d *Dispatcher) getBalances(ctx context.Context, rawParams json.RawMessage) (any, error) {
	var p addressParams
	if err := json.Unmarshal(rawParams, &p); err != nil || !asset.IsValid(p.Address) {
		return nil, badParams("valid address parameter required")
	}
	fingerprint, err := asset.ParseAddress(p.Address)
	if err != nil {
		return nil, badParams("valid address parameter required")
	}

	raw, _, err := d.Store.Get(ctx, store.KeyBalances(fingerprint.Bytes()))
	if err != nil {
		return nil, faults.Wrap(faults.StorageFault, "reading balances", err)
	}
	balances := make(map[string]int64)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &balances)
	}

	formatted := make(map[string]string, len(balances))
	for ticker, amount := range balances {
		formatted[ticker] = humanize.Comma(amount)
	}

	nativeFCT, err := d.Adapter.FactoidBalance(ctx, p.Address)
	if err != nil {
		return nil, faults.Wrap(faults.ChainUnavailable, "fetching native balance", err)
	}

	return map[string]any{
		"address":       p.Address,
		"balances":      balances,
		"balancesHuman": formatted,
		"nativeFCT":     nativeFCT,
	}, nil
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xF]
	}
	return string(out)
}

// handleRPC is the gin handler mounted at POST /rpc.
func (d *Dispatcher) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: errParseError, Message: "failed to read body"}})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: errParseError, Message: "invalid JSON"}})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: errInvalidRequest, Message: "unsupported jsonrpc version"}})
		return
	}
	if req.Method == "" {
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: errInvalidRequest, Message: "method required"}})
		return
	}

	c.JSON(http.StatusOK, d.Handle(c.Request.Context(), req))
}
