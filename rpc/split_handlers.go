package rpc

import (
	"net/http"

	"curio/native/split"
)

type splitSetConfigParams struct {
	Caller          string   `json:"caller"`
	Collection      string   `json:"collection"`
	PoolBps         uint32   `json:"poolBps"`
	CashbackBps     uint32   `json:"cashbackBps"`
	Levels          []uint32 `json:"levels"`
	Treasury        string   `json:"treasury"`
	PayToken        string   `json:"payToken"`
	RecycleToBuyer  bool     `json:"recycleToBuyer"`
	RecycleToSeller bool     `json:"recycleToSeller"`
	RequireReferrer bool     `json:"requireReferrer"`
	Active          bool     `json:"active"`
}

type splitCollectionParams struct {
	Collection string `json:"collection"`
}

type splitConfigJSON struct {
	PoolBps         uint32   `json:"poolBps"`
	CashbackBps     uint32   `json:"cashbackBps"`
	Levels          []uint32 `json:"levels"`
	Treasury        string   `json:"treasury"`
	PayToken        string   `json:"payToken"`
	RecycleToBuyer  bool     `json:"recycleToBuyer"`
	RecycleToSeller bool     `json:"recycleToSeller"`
	RequireReferrer bool     `json:"requireReferrer"`
	Active          bool     `json:"active"`
}

func (s *Server) handleSplitSetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params splitSetConfigParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	treasury, err := parseAddress(params.Treasury)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payToken, err := parseAddress(params.PayToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	cfg := &split.Config{
		PoolBps:         params.PoolBps,
		CashbackBps:     params.CashbackBps,
		Treasury:        treasury,
		PayToken:        payToken,
		RecycleToBuyer:  params.RecycleToBuyer,
		RecycleToSeller: params.RecycleToSeller,
		RequireReferrer: params.RequireReferrer,
		Active:          params.Active,
	}
	if err := s.node.SetSplitConfig(caller, collection, cfg, params.Levels); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleSplitGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params splitCollectionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	cfg, levels, ok, err := s.node.SplitConfig(collection)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "split config not found", nil)
		return
	}
	writeResult(w, req.ID, &splitConfigJSON{
		PoolBps:         cfg.PoolBps,
		CashbackBps:     cfg.CashbackBps,
		Levels:          levels,
		Treasury:        formatAddress(cfg.Treasury),
		PayToken:        formatAddress(cfg.PayToken),
		RecycleToBuyer:  cfg.RecycleToBuyer,
		RecycleToSeller: cfg.RecycleToSeller,
		RequireReferrer: cfg.RequireReferrer,
		Active:          cfg.Active,
	})
}
