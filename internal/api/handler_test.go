package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/auth"
	"github.com/0gfoundation/0g-coupon-ledger/internal/bank"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
	"github.com/0gfoundation/0g-coupon-ledger/internal/journal"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

func init() { gin.SetMode(gin.TestMode) }

var ledgerID = account.ID{0x1e, 0xd9}

// ── Test server ───────────────────────────────────────────────────────────────

type testEnv struct {
	engine *gin.Engine
	owner  *couponsig.Keypair
	bank   *bank.Memory
	ledger *ledger.Ledger
}

func newTestEnv(t *testing.T, funding uint64) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	owner := newKeypair(t)
	b := bank.NewMemory()
	b.SetBalance(ledgerID, uint256.NewInt(funding))
	j := journal.NewMemory(100)
	l, err := ledger.New(context.Background(), ledger.Config{ID: ledgerID, Owner: owner.Public}, kvstore.NewMemory(), b, j, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	h := NewHandler(l, b, j, zap.NewNop())
	r := gin.New()
	h.RegisterPublic(r.Group("/api"))
	h.Register(r.Group("/api", auth.Middleware(rdb, "test")))
	return &testEnv{engine: r, owner: owner, bank: b, ledger: l}
}

func newKeypair(t *testing.T) *couponsig.Keypair {
	t.Helper()
	kp, err := couponsig.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func signedHeaders(t *testing.T, kp *couponsig.Keypair, action string, payload any) map[string]string {
	t.Helper()
	sr, err := auth.NewSignedRequest(action, ledgerID.String(), payload, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	h, err := sr.Headers(kp)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (e *testEnv) addCoupon(t *testing.T, coupon account.ID, amount string) *httptest.ResponseRecorder {
	t.Helper()
	payload := AddCouponRequest{Coupon: coupon, Amount: amount}
	return e.do(t, http.MethodPost, "/api/coupons", nil, signedHeaders(t, e.owner, ActionAddCoupon, payload))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestAddCheckActivate(t *testing.T) {
	e := newTestEnv(t, 1000)
	coupon := newKeypair(t)
	receiver := newKeypair(t).Public

	w := e.addCoupon(t, coupon.Public, "500")
	expectStatus(t, w, http.StatusOK)
	if got := decode[AmountResponse](t, w); got.Amount != "500" {
		t.Fatalf("amount = %q", got.Amount)
	}

	w = e.do(t, http.MethodGet, "/api/coupons/"+coupon.Public.String(), nil, nil)
	expectStatus(t, w, http.StatusOK)
	status := decode[CouponStatus](t, w)
	if !status.Redeemable || status.Amount != "500" || status.Coupon != coupon.Public {
		t.Fatalf("status = %+v", status)
	}

	sig, err := coupon.SignRedemption(ledgerID, receiver)
	if err != nil {
		t.Fatal(err)
	}
	body := ActivateRequest{Receiver: receiver, Signature: hexutil.Encode(sig[:])}
	w = e.do(t, http.MethodPost, "/api/coupons/"+coupon.Public.Hex()+"/activate", body, nil)
	expectStatus(t, w, http.StatusOK)

	w = e.do(t, http.MethodGet, "/api/accounts/"+receiver.String()+"/balance", nil, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[BalanceResponse](t, w); got.Balance != "500" {
		t.Fatalf("receiver balance = %q", got.Balance)
	}

	w = e.do(t, http.MethodPost, "/api/coupons/"+coupon.Public.Hex()+"/activate", body, nil)
	expectStatus(t, w, http.StatusConflict)
	if got := decode[ErrorResponse](t, w); got.Code != "coupon_already_burned" {
		t.Fatalf("code = %q", got.Code)
	}

	w = e.do(t, http.MethodGet, "/api/journal?limit=10", nil, nil)
	expectStatus(t, w, http.StatusOK)
	events := decode[[]ledger.Event](t, w)
	if len(events) != 2 || events[1].Kind != ledger.EventCouponRedeemed {
		t.Fatalf("journal = %+v", events)
	}
}

func TestActivateErrorStatuses(t *testing.T) {
	e := newTestEnv(t, 1000)
	coupon := newKeypair(t)
	expectStatus(t, e.addCoupon(t, coupon.Public, "100"), http.StatusOK)
	receiver := newKeypair(t).Public

	other, _ := newKeypair(t).SignRedemption(ledgerID, receiver)

	tests := []struct {
		name   string
		coupon account.ID
		sig    string
		status int
		code   string
	}{
		{"unknown coupon", newKeypair(t).Public, "0x00", http.StatusNotFound, "coupon_not_found"},
		{"malformed signature", coupon.Public, "0x0102", http.StatusBadRequest, "invalid_signature"},
		{"non-hex signature", coupon.Public, "zz", http.StatusBadRequest, "invalid_signature"},
		{"wrong signer", coupon.Public, hexutil.Encode(other[:]), http.StatusUnauthorized, "verify_failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := ActivateRequest{Receiver: receiver, Signature: tc.sig}
			w := e.do(t, http.MethodPost, "/api/coupons/"+tc.coupon.String()+"/activate", body, nil)
			expectStatus(t, w, tc.status)
			if got := decode[ErrorResponse](t, w); got.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Code, tc.code)
			}
		})
	}
}

func TestActivateRequiresReceiver(t *testing.T) {
	e := newTestEnv(t, 1000)
	coupon := newKeypair(t)
	expectStatus(t, e.addCoupon(t, coupon.Public, "100"), http.StatusOK)
	sig, err := coupon.SignRedemption(ledgerID, account.ID{})
	if err != nil {
		t.Fatal(err)
	}
	path := "/api/coupons/" + coupon.Public.Hex() + "/activate"

	for name, body := range map[string]any{
		"missing": map[string]string{"signature": hexutil.Encode(sig[:])},
		"zero":    ActivateRequest{Receiver: account.ID{}, Signature: hexutil.Encode(sig[:])},
	} {
		w := e.do(t, http.MethodPost, path, body, nil)
		expectStatus(t, w, http.StatusBadRequest)
		if got := decode[ErrorResponse](t, w); got.Error != "receiver is required" {
			t.Fatalf("%s receiver: error = %q", name, got.Error)
		}
	}

	w := e.do(t, http.MethodGet, "/api/coupons/"+coupon.Public.Hex(), nil, nil)
	expectStatus(t, w, http.StatusOK)
	if status := decode[CouponStatus](t, w); !status.Redeemable {
		t.Fatal("coupon must stay redeemable")
	}
}

func TestBadPathID(t *testing.T) {
	e := newTestEnv(t, 0)
	w := e.do(t, http.MethodGet, "/api/coupons/nope", nil, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestAddCouponErrors(t *testing.T) {
	e := newTestEnv(t, 1000)
	coupon := newKeypair(t).Public

	expectStatus(t, e.addCoupon(t, coupon, "1001"), http.StatusConflict)
	expectStatus(t, e.addCoupon(t, coupon, "-5"), http.StatusBadRequest)
	expectStatus(t, e.addCoupon(t, coupon, "600"), http.StatusOK)

	w := e.addCoupon(t, coupon, "10")
	expectStatus(t, w, http.StatusConflict)
	if got := decode[ErrorResponse](t, w); got.Code != "coupon_already_exists" {
		t.Fatalf("code = %q", got.Code)
	}

	// Signed by someone other than the owner.
	payload := AddCouponRequest{Coupon: newKeypair(t).Public, Amount: "1"}
	w = e.do(t, http.MethodPost, "/api/coupons", nil, signedHeaders(t, newKeypair(t), ActionAddCoupon, payload))
	expectStatus(t, w, http.StatusForbidden)
	if got := decode[ErrorResponse](t, w); got.Code != "access_owner" {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestSignedRouteChecks(t *testing.T) {
	e := newTestEnv(t, 1000)
	payload := AddCouponRequest{Coupon: newKeypair(t).Public, Amount: "1"}

	w := e.do(t, http.MethodPost, "/api/coupons", nil, nil)
	expectStatus(t, w, http.StatusUnauthorized)

	// Action signed for a different route.
	w = e.do(t, http.MethodPost, "/api/coupons", nil, signedHeaders(t, e.owner, ActionBurnCoupons, payload))
	expectStatus(t, w, http.StatusForbidden)

	// Request signed for a different ledger.
	sr, _ := auth.NewSignedRequest(ActionAddCoupon, account.ID{0x77}.String(), payload, time.Minute)
	h, _ := sr.Headers(e.owner)
	w = e.do(t, http.MethodPost, "/api/coupons", nil, h)
	expectStatus(t, w, http.StatusForbidden)
}

func TestBatchRoutes(t *testing.T) {
	e := newTestEnv(t, 1000)
	a, b, c := newKeypair(t).Public, newKeypair(t).Public, newKeypair(t).Public

	add := BatchRequest{Coupons: []*account.ID{&a, nil, &b, &c}, Amount: "400"}
	w := e.do(t, http.MethodPost, "/api/coupons/batch", nil, signedHeaders(t, e.owner, ActionAddCoupons, add))
	expectStatus(t, w, http.StatusOK)
	res := decode[ledger.BatchResult](t, w)
	if len(res.Accepted) != 2 || res.Accepted[0] != a || res.Accepted[1] != b {
		t.Fatalf("accepted = %v", res.Accepted)
	}
	if len(res.Declined) != 1 || res.Declined[0] != c {
		t.Fatalf("declined = %v", res.Declined)
	}

	burn := BatchRequest{Coupons: []*account.ID{&b, &c}}
	w = e.do(t, http.MethodPost, "/api/coupons/burn", nil, signedHeaders(t, e.owner, ActionBurnCoupons, burn))
	expectStatus(t, w, http.StatusOK)
	res = decode[ledger.BatchResult](t, w)
	if len(res.Accepted) != 1 || res.Accepted[0] != b || len(res.Declined) != 1 {
		t.Fatalf("burn result = %+v", res)
	}

	tooMany := BatchRequest{Coupons: make([]*account.ID, 6), Amount: "1"}
	w = e.do(t, http.MethodPost, "/api/coupons/batch", nil, signedHeaders(t, e.owner, ActionAddCoupons, tooMany))
	expectStatus(t, w, http.StatusBadRequest)
	if got := decode[ErrorResponse](t, w); got.Code != "batch_too_large" {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestSpareAndPayback(t *testing.T) {
	e := newTestEnv(t, 1000)
	expectStatus(t, e.addCoupon(t, newKeypair(t).Public, "300"), http.StatusOK)

	w := e.do(t, http.MethodGet, "/api/spare-balance", nil, signedHeaders(t, e.owner, ActionSpareBalance, nil))
	expectStatus(t, w, http.StatusOK)
	if got := decode[AmountResponse](t, w); got.Amount != "700" {
		t.Fatalf("spare = %q", got.Amount)
	}

	w = e.do(t, http.MethodGet, "/api/spare-balance", nil, signedHeaders(t, newKeypair(t), ActionSpareBalance, nil))
	expectStatus(t, w, http.StatusOK)
	if got := decode[AmountResponse](t, w); got.Amount != "0" {
		t.Fatalf("stranger spare = %q", got.Amount)
	}

	w = e.do(t, http.MethodPost, "/api/payback", nil, signedHeaders(t, e.owner, ActionPayback, nil))
	expectStatus(t, w, http.StatusOK)

	bal, _ := e.bank.Balance(context.Background(), e.owner.Public)
	if bal.Uint64() != 700 {
		t.Fatalf("owner balance = %s", bal.Dec())
	}
}

func TestTransferOwner(t *testing.T) {
	e := newTestEnv(t, 0)
	next := newKeypair(t)

	w := e.do(t, http.MethodPost, "/api/owner", nil,
		signedHeaders(t, e.owner, ActionTransferOwnership, TransferOwnershipRequest{NewOwner: next.Public}))
	expectStatus(t, w, http.StatusOK)

	w = e.do(t, http.MethodGet, "/api/owner", nil, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[OwnerResponse](t, w)
	if got.Owner != next.Public || got.Ledger != ledgerID {
		t.Fatalf("owner = %+v", got)
	}

	w = e.do(t, http.MethodPost, "/api/owner", nil,
		signedHeaders(t, e.owner, ActionTransferOwnership, TransferOwnershipRequest{NewOwner: e.owner.Public}))
	expectStatus(t, w, http.StatusForbidden)
}

func TestJournalLimit(t *testing.T) {
	e := newTestEnv(t, 1000)
	for i := 0; i < 3; i++ {
		expectStatus(t, e.addCoupon(t, newKeypair(t).Public, "1"), http.StatusOK)
	}
	w := e.do(t, http.MethodGet, "/api/journal?limit=2", nil, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[[]ledger.Event](t, w); len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	w = e.do(t, http.MethodGet, "/api/journal?limit=abc", nil, nil)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	if StatusFor("transfer_failed") != http.StatusBadGateway {
		t.Fatal("transfer_failed should map to 502")
	}
	if StatusFor("internal") != http.StatusInternalServerError {
		t.Fatal("unknown codes should map to 500")
	}
}
