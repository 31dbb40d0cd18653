package api

import "github.com/0gfoundation/0g-coupon-ledger/internal/account"

// Actions named in the signed request of each authenticated route.
const (
	ActionAddCoupon         = "add_coupon"
	ActionAddCoupons        = "add_coupons"
	ActionBurnCoupons       = "burn_coupons"
	ActionPayback           = "payback_spare_funds"
	ActionSpareBalance      = "spare_balance"
	ActionTransferOwnership = "transfer_ownership"
)

// Amounts travel as decimal strings.

type AddCouponRequest struct {
	Coupon account.ID `json:"coupon"`
	Amount string     `json:"amount"`
}

// BatchRequest carries up to the ledger's batch capacity of slots; null
// entries are empty slots. Amount is ignored for burns.
type BatchRequest struct {
	Coupons []*account.ID `json:"coupons"`
	Amount  string        `json:"amount,omitempty"`
}

type TransferOwnershipRequest struct {
	NewOwner account.ID `json:"new_owner"`
}

type ActivateRequest struct {
	Receiver  account.ID `json:"receiver"`
	Signature string     `json:"signature"`
}

type CouponStatus struct {
	Coupon     account.ID `json:"coupon"`
	Redeemable bool       `json:"redeemable"`
	Amount     string     `json:"amount"`
}

type AmountResponse struct {
	Amount string `json:"amount"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type OwnerResponse struct {
	Owner  account.ID `json:"owner"`
	Ledger account.ID `json:"ledger"`
}

type BalanceResponse struct {
	Account account.ID `json:"account"`
	Balance string     `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
