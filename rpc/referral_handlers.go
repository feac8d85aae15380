package rpc

import (
	"net/http"
)

type referralBindParams struct {
	Caller   string `json:"caller"`
	Referrer string `json:"referrer"`
}

type referralGetParams struct {
	Account string `json:"account"`
}

type referralResult struct {
	Referrer string `json:"referrer,omitempty"`
	Bound    bool   `json:"bound"`
}

func (s *Server) handleReferralBind(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params referralBindParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	referrer, err := parseAddress(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.BindReferrer(caller, referrer); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleReferralGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params referralGetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	referrer, bound, err := s.node.ReferrerOf(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := referralResult{Bound: bound}
	if bound {
		result.Referrer = formatAddress(referrer)
	}
	writeResult(w, req.ID, result)
}
