package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"curio/native/claim"
	nativecommon "curio/native/common"
	"curio/native/market"
	"curio/native/referral"
	"curio/native/split"
)

var errExactlyOneParam = errors.New("exactly one parameter object expected")

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseListingID(value string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid listing id %q", value)
	}
	if len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("listing id must be 32 bytes, got %d", len(raw))
	}
	var id [32]byte
	copy(id[:], raw)
	return id, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return ethcommon.Address(addr).Hex()
}

func formatID(id [32]byte) string {
	return "0x" + hex.EncodeToString(id[:])
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

// mapError translates engine sentinels to an RPC status and code so callers
// can distinguish caller mistakes from server faults.
func mapError(err error) (int, int) {
	switch {
	case errors.Is(err, market.ErrListingNotFound), errors.Is(err, market.ErrNoActivePointer):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, nativecommon.ErrUnauthorizedRole):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeConflict
	case errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, referral.ErrAlreadyBound),
		errors.Is(err, nativecommon.ErrReentrantCall):
		return http.StatusConflict, codeConflict
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrUnsupportedPayment),
		errors.Is(err, market.ErrNotOwner),
		errors.Is(err, market.ErrNotApproved),
		errors.Is(err, market.ErrNotActive),
		errors.Is(err, market.ErrNotSeller),
		errors.Is(err, market.ErrNotTokenOwner),
		errors.Is(err, market.ErrExpired),
		errors.Is(err, market.ErrSelfBuy),
		errors.Is(err, market.ErrSellerNotOwner),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrUnexpectedNative),
		errors.Is(err, market.ErrFeeBpsRange),
		errors.Is(err, split.ErrInvalidPool),
		errors.Is(err, split.ErrBpsOverflow),
		errors.Is(err, split.ErrInvalidTreasury),
		errors.Is(err, split.ErrNoLevels),
		errors.Is(err, claim.ErrNothingToClaim),
		errors.Is(err, claim.ErrInvalidDestination),
		errors.Is(err, claim.ErrInvalidBeneficiary),
		errors.Is(err, claim.ErrNoBeneficiary),
		errors.Is(err, referral.ErrInvalidReferrer),
		errors.Is(err, referral.ErrSelfReferral),
		errors.Is(err, referral.ErrCycle):
		return http.StatusBadRequest, codeInvalidParams
	default:
		return http.StatusInternalServerError, codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status, code := mapError(err)
	writeError(w, status, id, code, err.Error(), nil)
}

type okResult struct {
	OK bool `json:"ok"`
}

type listingJSON struct {
	ID         string `json:"id"`
	Seller     string `json:"seller"`
	Collection string `json:"collection"`
	AssetID    uint64 `json:"assetId"`
	PayToken   string `json:"payToken"`
	Price      string `json:"price"`
	Deadline   int64  `json:"deadline"`
	CreatedAt  int64  `json:"createdAt"`
	Active     bool   `json:"active"`
}

func listingToJSON(l *market.Listing) *listingJSON {
	if l == nil {
		return nil
	}
	return &listingJSON{
		ID:         formatID(l.ID),
		Seller:     formatAddress(l.Seller),
		Collection: formatAddress(l.Collection),
		AssetID:    l.AssetID,
		PayToken:   formatAddress(l.PayToken),
		Price:      formatAmount(l.Price),
		Deadline:   l.Deadline,
		CreatedAt:  l.CreatedAt,
		Active:     l.Active,
	}
}

type receiptJSON struct {
	ListingID   string `json:"listingId"`
	Collection  string `json:"collection"`
	AssetID     uint64 `json:"assetId"`
	Seller      string `json:"seller"`
	Buyer       string `json:"buyer"`
	PayToken    string `json:"payToken"`
	Price       string `json:"price"`
	PlatformFee string `json:"platformFee"`
	RoyaltyFee  string `json:"royaltyFee"`
	Pool        string `json:"pool"`
	Proceeds    string `json:"proceeds"`
}

func receiptToJSON(r *market.SaleReceipt) *receiptJSON {
	if r == nil {
		return nil
	}
	return &receiptJSON{
		ListingID:   formatID(r.ListingID),
		Collection:  formatAddress(r.Collection),
		AssetID:     r.AssetID,
		Seller:      formatAddress(r.Seller),
		Buyer:       formatAddress(r.Buyer),
		PayToken:    formatAddress(r.PayToken),
		Price:       formatAmount(r.Price),
		PlatformFee: formatAmount(r.PlatformFee),
		RoyaltyFee:  formatAmount(r.RoyaltyFee),
		Pool:        formatAmount(r.Pool),
		Proceeds:    formatAmount(r.Proceeds),
	}
}
