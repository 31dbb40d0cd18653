// Package client is a Go client for the couponsd HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/api"
	"github.com/0gfoundation/0g-coupon-ledger/internal/auth"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

const requestTTL = 2 * time.Minute

var ErrNoKey = errors.New("client: signing key required")

var sentinels = map[string]error{
	"access_owner":          ledger.ErrAccessOwner,
	"insufficient_balance":  ledger.ErrInsufficientBalance,
	"invalid_coupon":        ledger.ErrInvalidCoupon,
	"invalid_signature":     ledger.ErrInvalidSignature,
	"verify_failed":         ledger.ErrVerifyFailed,
	"coupon_already_exists": ledger.ErrCouponAlreadyExists,
	"coupon_already_burned": ledger.ErrCouponAlreadyBurned,
	"coupon_not_found":      ledger.ErrCouponNotFound,
	"transfer_failed":       ledger.ErrTransferFailed,
	"batch_too_large":       ledger.ErrBatchTooLarge,
}

// APIError is a non-2xx response. It unwraps to the matching ledger error
// when the server sent a known code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("couponsd: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("couponsd: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return sentinels[e.Code] }

// Client talks to one couponsd instance. key signs owner requests and may be
// nil when only public routes are used.
type Client struct {
	baseURL string
	key     *couponsig.Keypair
	http    *http.Client

	mu     sync.Mutex
	ledger account.ID
}

func NewClient(baseURL string, key *couponsig.Keypair) *Client {
	return &Client{
		baseURL: baseURL,
		key:     key,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e api.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// signed sends an owner request whose payload travels in the signed message.
func (c *Client) signed(ctx context.Context, method, path, action string, payload, out any) error {
	if c.key == nil {
		return ErrNoKey
	}
	ledgerID, err := c.Ledger(ctx)
	if err != nil {
		return err
	}
	sr, err := auth.NewSignedRequest(action, ledgerID.String(), payload, requestTTL)
	if err != nil {
		return err
	}
	headers, err := sr.Headers(c.key)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, nil, headers, out)
}

// Ledger returns the ledger identity, fetching it once.
func (c *Client) Ledger(ctx context.Context) (account.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ledger.IsZero() {
		return c.ledger, nil
	}
	o, err := c.Owner(ctx)
	if err != nil {
		return account.ID{}, fmt.Errorf("resolve ledger id: %w", err)
	}
	c.ledger = o.Ledger
	return c.ledger, nil
}

// ── Public ──────────────────────────────────────────────────────────────────

func (c *Client) CheckCoupon(ctx context.Context, coupon account.ID) (*api.CouponStatus, error) {
	var s api.CouponStatus
	if err := c.do(ctx, http.MethodGet, "/api/coupons/"+coupon.String(), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ActivateCoupon(ctx context.Context, coupon, receiver account.ID, sig []byte) error {
	body := api.ActivateRequest{Receiver: receiver, Signature: hexutil.Encode(sig)}
	return c.do(ctx, http.MethodPost, "/api/coupons/"+coupon.String()+"/activate", body, nil, nil)
}

func (c *Client) Owner(ctx context.Context) (*api.OwnerResponse, error) {
	var o api.OwnerResponse
	if err := c.do(ctx, http.MethodGet, "/api/owner", nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Balance(ctx context.Context, acct account.ID) (*uint256.Int, error) {
	var b api.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+acct.String()+"/balance", nil, nil, &b); err != nil {
		return nil, err
	}
	return uint256.FromDecimal(b.Balance)
}

func (c *Client) Journal(ctx context.Context, limit int) ([]ledger.Event, error) {
	var events []ledger.Event
	if err := c.do(ctx, http.MethodGet, "/api/journal?limit="+strconv.Itoa(limit), nil, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ── Owner ───────────────────────────────────────────────────────────────────

func (c *Client) AddCoupon(ctx context.Context, coupon account.ID, amount *uint256.Int) (*uint256.Int, error) {
	var r api.AmountResponse
	payload := api.AddCouponRequest{Coupon: coupon, Amount: amount.Dec()}
	if err := c.signed(ctx, http.MethodPost, "/api/coupons", api.ActionAddCoupon, payload, &r); err != nil {
		return nil, err
	}
	return uint256.FromDecimal(r.Amount)
}

func (c *Client) AddCoupons(ctx context.Context, slots []*account.ID, amount *uint256.Int) (*ledger.BatchResult, error) {
	var r ledger.BatchResult
	payload := api.BatchRequest{Coupons: slots, Amount: amount.Dec()}
	if err := c.signed(ctx, http.MethodPost, "/api/coupons/batch", api.ActionAddCoupons, payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) BurnCoupons(ctx context.Context, slots []*account.ID) (*ledger.BatchResult, error) {
	var r ledger.BatchResult
	payload := api.BatchRequest{Coupons: slots}
	if err := c.signed(ctx, http.MethodPost, "/api/coupons/burn", api.ActionBurnCoupons, payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) PaybackSpareFunds(ctx context.Context) error {
	return c.signed(ctx, http.MethodPost, "/api/payback", api.ActionPayback, nil, nil)
}

func (c *Client) SpareBalance(ctx context.Context) (*uint256.Int, error) {
	var r api.AmountResponse
	if err := c.signed(ctx, http.MethodGet, "/api/spare-balance", api.ActionSpareBalance, nil, &r); err != nil {
		return nil, err
	}
	return uint256.FromDecimal(r.Amount)
}

func (c *Client) TransferOwnership(ctx context.Context, newOwner account.ID) error {
	payload := api.TransferOwnershipRequest{NewOwner: newOwner}
	return c.signed(ctx, http.MethodPost, "/api/owner", api.ActionTransferOwnership, payload, nil)
}
