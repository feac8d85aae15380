package rpc

import (
	"encoding/json"
	"net/http"

	"curio/core/events"
	"curio/core/types"
)

type adminSetFeeParams struct {
	Caller   string `json:"caller"`
	Bps      uint32 `json:"bps"`
	Treasury string `json:"treasury"`
}

type adminSetPaymentTokenParams struct {
	Caller  string `json:"caller"`
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

type adminSetPausedParams struct {
	Caller string `json:"caller"`
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type eventsRecentParams struct {
	Limit int `json:"limit"`
}

func (s *Server) handleAdminSetPlatformFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminSetFeeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	treasury, err := parseAddress(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetPlatformFee(caller, params.Bps, treasury); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleAdminSetPaymentToken(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminSetPaymentTokenParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetPaymentToken(caller, token, params.Enabled); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleAdminSetPaused(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminSetPausedParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if params.Module == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "module required")
		return
	}
	if err := s.node.SetPaused(caller, params.Module, params.Paused); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleEventsRecent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := eventsRecentParams{Limit: 50}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "at most one parameter object expected")
		return
	}
	if len(req.Params) == 1 {
		if err := json.Unmarshal(req.Params[0], &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	recent := s.node.Feed().Recent(params.Limit)
	out := make([]*types.Event, len(recent))
	for i, evt := range recent {
		out[i] = events.Flatten(evt)
	}
	writeResult(w, req.ID, out)
}
