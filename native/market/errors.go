package market

import "errors"

var (
	ErrInvalidPrice        = errors.New("market: price must be positive")
	ErrInvalidDuration     = errors.New("market: duration must be positive")
	ErrUnsupportedPayment  = errors.New("market: payment token not enabled")
	ErrUnknownCollection   = errors.New("market: collection gateway not registered")
	ErrUnknownToken        = errors.New("market: token gateway not registered")
	ErrNotOwner            = errors.New("market: seller does not own asset")
	ErrNotApproved         = errors.New("market: marketplace not approved for asset")
	ErrAlreadyListed       = errors.New("market: asset already has an active listing")
	ErrListingNotFound     = errors.New("market: listing not found")
	ErrNotActive           = errors.New("market: listing not active")
	ErrNotSeller           = errors.New("market: caller is not the seller")
	ErrNotTokenOwner       = errors.New("market: caller does not own asset")
	ErrNoActivePointer     = errors.New("market: no active pointer for asset")
	ErrExpired             = errors.New("market: listing expired")
	ErrSelfBuy             = errors.New("market: seller cannot buy own listing")
	ErrSellerNotOwner      = errors.New("market: seller no longer owns asset")
	ErrInsufficientPayment = errors.New("market: insufficient native payment")
	ErrUnexpectedNative    = errors.New("market: unexpected native value on token rail")
	ErrTransferFailed      = errors.New("market: transfer failed")
	ErrFeesExceedPrice     = errors.New("market: fees exceed sale price")
	ErrFeeBpsRange         = errors.New("market: fee bps out of range")
)
