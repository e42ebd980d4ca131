package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/darwin/internal/errors"
)

// rpcRequest is a JSON-RPC 2.0 request. Params may be an object or an array
// holding a single object.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type idParams struct {
	ID string `json:"id"`
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, errors.RPCParseError, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" || request.Method == "" {
		s.respondWithError(w, errors.RPCInvalidRequest, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "evolution.start":
		result, err = s.rpcStart(request.Params)
	case "evolution.status":
		result, err = s.rpcStatus(r.Context(), request.Params)
	case "evolution.cancel":
		result, err = s.rpcCancel(r.Context(), request.Params)
	case "evolution.list":
		result, err = s.listRuns(r.Context())
	case "evolution.problems":
		result = s.problemList()
	default:
		s.respondWithError(w, errors.RPCMethodNotFound, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, errors.CodeFor(err).RPCCode(), err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) rpcStart(raw json.RawMessage) (interface{}, error) {
	var req StartRequest
	if err := decodeParams(raw, &req); err != nil {
		return nil, err
	}
	return s.startRun(req)
}

func (s *Server) rpcStatus(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "run id is required")
	}
	return s.runStatus(ctx, p.ID)
}

func (s *Server) rpcCancel(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "run id is required")
	}
	if _, err := s.cancelRun(ctx, p.ID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "cancelling", "id": p.ID}, nil
}

// decodeParams unmarshals JSON-RPC params into v, unwrapping a one-element
// array.
func decodeParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New(errors.CodeInvalidArgument, "params are required")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return errors.Wrap(err, "invalid params").WithCode(errors.CodeInvalidArgument)
		}
		if len(list) != 1 {
			return errors.Errorf(errors.CodeInvalidArgument, "expected 1 param, got %d", len(list))
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Wrap(err, "invalid params").WithCode(errors.CodeInvalidArgument)
	}
	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
