// Copyright 2018 The klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package rpcserver binds scheduleTransaction and cancel to a fixed-size
// CPU worker pool behind a JSON-RPC 2.0 HTTP endpoint, routed with the
// teacher's own julienschmidt/httprouter and CORS-wrapped with the
// teacher's own rs/cors, the way every JSON-RPC surface in this lineage
// is exposed for browser wallet clients.
package rpcserver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/klaytn/tx-relay/common"
	"github.com/klaytn/tx-relay/log"
	"github.com/klaytn/tx-relay/metrics"
	"github.com/klaytn/tx-relay/relayerr"
	"github.com/klaytn/tx-relay/store"
	"github.com/klaytn/tx-relay/verifier"
)

// Route is one condition kind's verifier and store, wired together so
// the handler can dispatch scheduleTransaction by condition tag.
type Route struct {
	Verifier *verifier.Verifier
	Store    *store.Store
}

// Handler implements the two external JSON-RPC methods over a
// fixed-size worker pool, matching the agents/recv-channel shape of the
// teacher's work/worker.go, simplified to stateless CPU jobs.
type Handler struct {
	block Route
	time  Route

	jobs chan func()
	log  log.Logger
}

// New starts processingThreads workers and returns a ready Handler.
func New(block, time_ Route, processingThreads int) *Handler {
	if processingThreads <= 0 {
		processingThreads = 1
	}
	h := &Handler{
		block: block,
		time:  time_,
		jobs:  make(chan func(), processingThreads*4),
		log:   log.New("component", "rpcserver"),
	}
	for i := 0; i < processingThreads; i++ {
		go h.worker()
	}
	return h
}

func (h *Handler) worker() {
	for job := range h.jobs {
		job()
	}
}

// jsonrpcRequest is the subset of JSON-RPC 2.0 request framing this
// handler needs; a generic request router is assumed upstream of it.
type jsonrpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Router builds the CORS-wrapped httprouter handler for the relay's
// JSON-RPC and debug /metrics surfaces.
func (h *Handler) Router() http.Handler {
	r := httprouter.New()
	r.POST("/", h.serveJSONRPC)
	r.GET("/metrics", h.serveMetrics)

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodGet},
	}).Handler(r)
}

func (h *Handler) serveMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Snapshot())
}

func (h *Handler) serveJSONRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req jsonrpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error", "")
		return
	}

	switch req.Method {
	case "scheduleTransaction":
		h.handleSchedule(r.Context(), w, req)
	case "cancel":
		h.handleCancel(w, req)
	default:
		writeError(w, req.ID, -32601, "method not found", req.Method)
	}
}

type scheduleParams struct {
	Condition map[string]uint64 `json:"condition"`
	RLPHex    string            `json:"rlp_hex"`
}

func (h *Handler) handleSchedule(ctx context.Context, w http.ResponseWriter, req jsonrpcRequest) {
	var params scheduleParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeError(w, req.ID, -32602, "invalid params", err.Error())
			return
		}
	}

	route, condition, err := h.resolveCondition(params.Condition)
	if err != nil {
		writeError(w, req.ID, -32602, err.Error(), "")
		return
	}

	raw, err := hex.DecodeString(stripHexPrefix(params.RLPHex))
	if err != nil {
		writeError(w, req.ID, -32602, "invalid params", "rlp_hex is not valid hex")
		return
	}

	type result struct {
		id  common.TransactionID
		err error
	}
	done := make(chan result, 1)

	h.jobs <- func() {
		num, tx, err := route.Verifier.Verify(ctx, condition.Value, raw)
		if err != nil {
			metrics.TransactionsRejected.Inc(1)
			done <- result{err: err}
			return
		}
		if err := route.Store.Insert(num, tx); err != nil {
			done <- result{err: err}
			return
		}
		metrics.TransactionsScheduled.Inc(1)
		done <- result{id: common.TransactionID{Kind: condition.Kind, Value: condition.Value, Hash: tx.Hash}}
	}

	res := <-done
	if res.err != nil {
		writeRelayError(w, req.ID, res.err)
		return
	}
	writeResult(w, req.ID, hex.EncodeToString(res.id.Bytes()))
}

func (h *Handler) resolveCondition(raw map[string]uint64) (Route, common.Condition, error) {
	if len(raw) != 1 {
		return Route{}, common.Condition{}, relayerr.New(relayerr.KindInvalidTransaction, "condition must set exactly one of block or time")
	}
	if block, ok := raw["block"]; ok {
		return h.block, common.BlockCondition(common.BlockNumber(block)), nil
	}
	if t, ok := raw["time"]; ok {
		return h.time, common.TimeCondition(common.Timestamp(t)), nil
	}
	return Route{}, common.Condition{}, relayerr.New(relayerr.KindInvalidTransaction, "condition must set exactly one of block or time")
}

func (h *Handler) handleCancel(w http.ResponseWriter, req jsonrpcRequest) {
	var idHex string
	if err := json.Unmarshal(req.Params, &idHex); err != nil {
		writeError(w, req.ID, -32602, "invalid params", err.Error())
		return
	}

	raw, err := hex.DecodeString(stripHexPrefix(idHex))
	if err != nil {
		writeError(w, req.ID, -32602, "invalid params", "malformed id")
		return
	}

	id, err := common.ParseTransactionID(raw)
	if err != nil {
		writeError(w, req.ID, -32602, "invalid params", err.Error())
		return
	}

	route := h.block
	if id.Kind != common.ConditionBlock {
		route = h.time
	}

	removed, err := route.Store.Remove(id.Value, id.Hash)
	if err != nil {
		writeError(w, req.ID, -32603, "internal error", err.Error())
		return
	}
	if !removed {
		writeError(w, req.ID, -32602, "not found", "")
		return
	}
	metrics.TransactionsCancelled.Inc(1)
	writeResult(w, req.ID, "ok")
}

func stripHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, msg, data string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: msg, Data: data},
	})
}

// writeRelayError maps a relayerr.Kind to the JSON-RPC code spec.md §7
// calls for: every kind except Internal is invalid params (-32602) with
// a human message, and the wrapped cause (e.g. an upstream RPC error)
// in the data field when there is one; Internal is -32603.
func writeRelayError(w http.ResponseWriter, id json.RawMessage, err error) {
	kind := relayerr.KindOf(err)
	if kind.IsInternal() {
		writeError(w, id, -32603, "internal error", err.Error())
		return
	}
	data := ""
	if cause := errors.Unwrap(err); cause != nil {
		data = cause.Error()
	}
	writeError(w, id, -32602, err.Error(), data)
}
