package rpc

import (
	"encoding/json"
	"net/http"
)

type marketCreateParams struct {
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	PayToken   string `json:"payToken"`
	Price      string `json:"price"`
	Duration   int64  `json:"duration"`
}

type marketCancelParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type marketCancelAsOwnerParams struct {
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	Caller     string `json:"caller"`
}

type marketBuyParams struct {
	ID       string `json:"id"`
	Caller   string `json:"caller"`
	Supplied string `json:"supplied"`
}

type marketIDParams struct {
	ID string `json:"id"`
}

type marketListParams struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type marketCollectionParams struct {
	Collection string `json:"collection"`
}

type marketListResult struct {
	Total uint64   `json:"total"`
	IDs   []string `json:"ids"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errExactlyOneParam
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleMarketCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payToken, err := parseAddress(params.PayToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.CreateListing(seller, collection, params.AssetID, payToken, price, params.Duration)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCancelParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseListingID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelListing(id, caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleMarketCancelAsOwner(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCancelAsOwnerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelListingAsOwner(collection, params.AssetID, caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketBuyParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseListingID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	supplied, err := parseAmount(params.Supplied)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	receipt, err := s.node.Buy(id, caller, supplied)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receiptToJSON(receipt))
}

func (s *Server) handleMarketGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseListingID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok, err := s.node.GetListing(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "listing not found", nil)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := marketListParams{Limit: 50}
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
	total, err := s.node.ActiveListingCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	ids, err := s.node.ActiveListings(params.Offset, params.Limit)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	encoded := make([]string, len(ids))
	for i, id := range ids {
		encoded[i] = formatID(id)
	}
	writeResult(w, req.ID, marketListResult{Total: total, IDs: encoded})
}

func (s *Server) handleMarketListByCollection(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketCollectionParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress(params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.node.ListingsByCollection(collection)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]*listingJSON, len(listings))
	for i, listing := range listings {
		out[i] = listingToJSON(listing)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleMarketIsValid(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params marketIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	id, err := parseListingID(params.ID)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	valid, err := s.node.ListingValid(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"valid": valid})
}
