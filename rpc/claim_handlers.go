package rpc

import (
	"math/big"
	"net/http"
)

type claimBalanceParams struct {
	Account string `json:"account"`
	Token   string `json:"token"`
}

type claimClaimParams struct {
	Caller      string `json:"caller"`
	Token       string `json:"token"`
	Destination string `json:"destination,omitempty"`
}

type claimMigrateParams struct {
	Caller string   `json:"caller"`
	Tokens []string `json:"tokens"`
}

type claimSetBeneficiaryParams struct {
	Caller      string `json:"caller"`
	Beneficiary string `json:"beneficiary"`
}

type claimAccountParams struct {
	Account string `json:"account"`
}

type claimAmountResult struct {
	Amount string `json:"amount"`
}

func (s *Server) handleClaimBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimBalanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	token, err := parseAddress(params.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.node.ClaimBalance(account, token)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimAmountResult{Amount: formatAmount(amount)})
}

func (s *Server) handleClaimClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimClaimParams
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
	var amount *big.Int
	if params.Destination != "" {
		destination, derr := parseAddress(params.Destination)
		if derr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", derr.Error())
			return
		}
		amount, err = s.node.ClaimTo(caller, token, destination)
	} else {
		amount, err = s.node.Claim(caller, token)
	}
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimAmountResult{Amount: formatAmount(amount)})
}

func (s *Server) handleClaimMigrate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimMigrateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	tokens := make([][20]byte, 0, len(params.Tokens))
	for _, entry := range params.Tokens {
		token, terr := parseAddress(entry)
		if terr != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", terr.Error())
			return
		}
		tokens = append(tokens, token)
	}
	if err := s.node.MigrateClaims(caller, tokens); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleClaimSetBeneficiary(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimSetBeneficiaryParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := parseAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetBeneficiary(caller, beneficiary); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, okResult{OK: true})
}

func (s *Server) handleClaimBeneficiary(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimAccountParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	beneficiary, err := s.node.BeneficiaryOf(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"beneficiary": formatAddress(beneficiary)})
}
