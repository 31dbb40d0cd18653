// Package api exposes the coupon ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/auth"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

// Ledger is satisfied by *ledger.Ledger.
type Ledger interface {
	ID() account.ID
	AddCoupon(ctx context.Context, caller, coupon account.ID, amount *uint256.Int) (*uint256.Int, error)
	AddCoupons(ctx context.Context, caller account.ID, slots []*account.ID, amount *uint256.Int) (*ledger.BatchResult, error)
	BurnCoupons(ctx context.Context, caller account.ID, slots []*account.ID) (*ledger.BatchResult, error)
	ActivateCoupon(ctx context.Context, receiver, coupon account.ID, sig []byte) (bool, error)
	PaybackSpareFunds(ctx context.Context, caller account.ID) (bool, error)
	CheckCoupon(ctx context.Context, coupon account.ID) (bool, *uint256.Int, error)
	SpareBalance(ctx context.Context, caller account.ID) (*uint256.Int, error)
	TransferOwnership(ctx context.Context, caller, newOwner account.ID) (bool, error)
	Owner(ctx context.Context) (account.ID, error)
}

// Balances reads host balances for the balance route.
type Balances interface {
	Balance(ctx context.Context, acct account.ID) (*uint256.Int, error)
}

// EventLog lists recent ledger events.
type EventLog interface {
	Recent(ctx context.Context, n int) ([]ledger.Event, error)
}

type Handler struct {
	ledger   Ledger
	balances Balances
	events   EventLog
	log      *zap.Logger
}

func NewHandler(l Ledger, b Balances, events EventLog, log *zap.Logger) *Handler {
	return &Handler{ledger: l, balances: b, events: events, log: log}
}

// RegisterPublic mounts the routes anyone may call.
func (h *Handler) RegisterPublic(rg *gin.RouterGroup) {
	rg.GET("/coupons/:id", h.handleCheck)
	rg.POST("/coupons/:id/activate", h.handleActivate)
	rg.GET("/owner", h.handleOwner)
	rg.GET("/accounts/:id/balance", h.handleBalance)
	rg.GET("/journal", h.handleJournal)
}

// Register mounts the signed routes. auth.Middleware should already be applied
// to the group; the ledger enforces the owner check.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/coupons", h.handleAdd)
	rg.POST("/coupons/batch", h.handleAddBatch)
	rg.POST("/coupons/burn", h.handleBurn)
	rg.POST("/payback", h.handlePayback)
	rg.GET("/spare-balance", h.handleSpare)
	rg.POST("/owner", h.handleTransferOwner)
}

// ── Public ──────────────────────────────────────────────────────────────────

func (h *Handler) handleCheck(c *gin.Context) {
	coupon, ok := pathAccount(c)
	if !ok {
		return
	}
	redeemable, amount, err := h.ledger.CheckCoupon(c.Request.Context(), coupon)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CouponStatus{Coupon: coupon, Redeemable: redeemable, Amount: amount.Dec()})
}

func (h *Handler) handleActivate(c *gin.Context) {
	coupon, ok := pathAccount(c)
	if !ok {
		return
	}
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Receiver.IsZero() {
		badRequest(c, "receiver is required")
		return
	}
	// A signature that is not hex reaches the ledger as empty bytes so the
	// lookup checks still run first.
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		sig = nil
	}
	if _, err := h.ledger.ActivateCoupon(c.Request.Context(), req.Receiver, coupon, sig); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) handleOwner(c *gin.Context) {
	owner, err := h.ledger.Owner(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OwnerResponse{Owner: owner, Ledger: h.ledger.ID()})
}

func (h *Handler) handleBalance(c *gin.Context) {
	acct, ok := pathAccount(c)
	if !ok {
		return
	}
	bal, err := h.balances.Balance(c.Request.Context(), acct)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Account: acct, Balance: bal.Dec()})
}

func (h *Handler) handleJournal(c *gin.Context) {
	limit := defaultJournalLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxJournalLimit)
	}
	events, err := h.events.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ── Signed ──────────────────────────────────────────────────────────────────

func (h *Handler) handleAdd(c *gin.Context) {
	var req AddCouponRequest
	caller, ok := h.signed(c, ActionAddCoupon, &req)
	if !ok {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	got, err := h.ledger.AddCoupon(c.Request.Context(), caller, req.Coupon, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AmountResponse{Amount: got.Dec()})
}

func (h *Handler) handleAddBatch(c *gin.Context) {
	var req BatchRequest
	caller, ok := h.signed(c, ActionAddCoupons, &req)
	if !ok {
		return
	}
	amount, ok := parseAmount(c, req.Amount)
	if !ok {
		return
	}
	res, err := h.ledger.AddCoupons(c.Request.Context(), caller, req.Coupons, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) handleBurn(c *gin.Context) {
	var req BatchRequest
	caller, ok := h.signed(c, ActionBurnCoupons, &req)
	if !ok {
		return
	}
	res, err := h.ledger.BurnCoupons(c.Request.Context(), caller, req.Coupons)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) handlePayback(c *gin.Context) {
	caller, ok := h.signed(c, ActionPayback, nil)
	if !ok {
		return
	}
	if _, err := h.ledger.PaybackSpareFunds(c.Request.Context(), caller); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *Handler) handleSpare(c *gin.Context) {
	caller, ok := h.signed(c, ActionSpareBalance, nil)
	if !ok {
		return
	}
	spare, err := h.ledger.SpareBalance(c.Request.Context(), caller)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AmountResponse{Amount: spare.Dec()})
}

func (h *Handler) handleTransferOwner(c *gin.Context) {
	var req TransferOwnershipRequest
	caller, ok := h.signed(c, ActionTransferOwnership, &req)
	if !ok {
		return
	}
	if req.NewOwner.IsZero() {
		badRequest(c, "new_owner is required")
		return
	}
	if _, err := h.ledger.TransferOwnership(c.Request.Context(), caller, req.NewOwner); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// signed checks that the verified request names action and this ledger, then
// decodes its payload into dst. It returns the authenticated caller.
func (h *Handler) signed(c *gin.Context, action string, dst any) (account.ID, bool) {
	caller, ok := auth.Caller(c)
	req, ok2 := auth.Request(c)
	if !ok || !ok2 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthenticated"})
		return account.ID{}, false
	}
	if req.Action != action {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "signed action does not match route"})
		return account.ID{}, false
	}
	if target, err := account.Parse(req.ResourceID); err != nil || target != h.ledger.ID() {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "signed request is for another ledger"})
		return account.ID{}, false
	}
	if dst != nil {
		if err := json.Unmarshal(req.Payload, dst); err != nil {
			badRequest(c, "invalid payload")
			return account.ID{}, false
		}
	}
	return caller, true
}

func pathAccount(c *gin.Context) (account.ID, bool) {
	id, err := account.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid account id"})
		return account.ID{}, false
	}
	return id, true
}

func parseAmount(c *gin.Context, s string) (*uint256.Int, bool) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		badRequest(c, "invalid amount")
		return nil, false
	}
	return v, true
}
