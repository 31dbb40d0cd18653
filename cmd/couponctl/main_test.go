package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/api"
	"github.com/0gfoundation/0g-coupon-ledger/internal/auth"
	"github.com/0gfoundation/0g-coupon-ledger/internal/bank"
	"github.com/0gfoundation/0g-coupon-ledger/internal/couponsig"
	"github.com/0gfoundation/0g-coupon-ledger/internal/journal"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
)

func init() { gin.SetMode(gin.TestMode) }

var ledgerID = account.ID{0x1e, 0xd9, 0x03}

type env struct {
	url   string
	owner *couponsig.Keypair
	bank  *bank.Memory
}

func newEnv(t *testing.T, funding uint64) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	owner := newKeypair(t)
	b := bank.NewMemory()
	b.SetBalance(ledgerID, uint256.NewInt(funding))
	j := journal.NewMemory(0)
	l, err := ledger.New(context.Background(), ledger.Config{ID: ledgerID, Owner: owner.Public}, kvstore.NewMemory(), b, j, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	h := api.NewHandler(l, b, j, zap.NewNop())
	r := gin.New()
	h.RegisterPublic(r.Group("/api"))
	h.Register(r.Group("/api", auth.Middleware(rdb, "test")))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &env{url: srv.URL, owner: owner, bank: b}
}

func newKeypair(t *testing.T) *couponsig.Keypair {
	t.Helper()
	kp, err := couponsig.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	return kp
}

// run executes couponctl against the env; withKey signs as the owner.
func (e *env) run(t *testing.T, withKey bool, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	argv := []string{"couponctl", "--url", e.url}
	if withKey {
		argv = append(argv, "--key", hexutil.Encode(e.owner.Secret[:]))
	}
	err := app.Run(append(argv, args...))
	return out.String(), err
}

func TestAddCheckActivate(t *testing.T) {
	e := newEnv(t, 1000)
	coupon := newKeypair(t)
	receiver := newKeypair(t).Public

	if _, err := e.run(t, true, "add", coupon.Public.String(), "400"); err != nil {
		t.Fatalf("add: %v", err)
	}

	out, err := e.run(t, false, "check", coupon.Public.Hex())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var st api.CouponStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if !st.Redeemable || st.Amount != "400" {
		t.Fatalf("status = %+v", st)
	}

	out, err = e.run(t, true, "spare")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "600" {
		t.Fatalf("spare = %q, want 600", out)
	}

	sig, err := coupon.SignRedemption(ledgerID, receiver)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.run(t, false, "activate",
		"--receiver", receiver.String(),
		"--signature", hexutil.Encode(sig[:]),
		coupon.Public.String()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	out, err = e.run(t, false, "balance", receiver.String())
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "400" {
		t.Fatalf("receiver balance = %q, want 400", out)
	}

	out, err = e.run(t, false, "journal", "--limit", "5")
	if err != nil {
		t.Fatal(err)
	}
	var events []ledger.Event
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode journal %q: %v", out, err)
	}
	if len(events) == 0 || events[len(events)-1].Kind != ledger.EventCouponRedeemed {
		t.Fatalf("journal = %+v", events)
	}
}

func TestBatchCommands(t *testing.T) {
	e := newEnv(t, 1000)
	a, b, c := newKeypair(t).Public, newKeypair(t).Public, newKeypair(t).Public

	out, err := e.run(t, true, "add-batch", "--amount", "500", a.String(), emptySlot, b.String(), c.String())
	if err != nil {
		t.Fatalf("add-batch: %v", err)
	}
	var res ledger.BatchResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(res.Accepted) != 2 || len(res.Declined) != 1 || res.Declined[0] != c {
		t.Fatalf("add-batch result = %+v", res)
	}

	out, err = e.run(t, true, "burn", a.String(), c.String())
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	res = ledger.BatchResult{}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Accepted) != 1 || res.Accepted[0] != a || len(res.Declined) != 1 {
		t.Fatalf("burn result = %+v", res)
	}
}

func TestOwnerCommands(t *testing.T) {
	e := newEnv(t, 100)
	next := newKeypair(t).Public

	out, err := e.run(t, false, "owner")
	if err != nil {
		t.Fatal(err)
	}
	var o api.OwnerResponse
	if err := json.Unmarshal([]byte(out), &o); err != nil {
		t.Fatal(err)
	}
	if o.Owner != e.owner.Public || o.Ledger != ledgerID {
		t.Fatalf("owner = %+v", o)
	}

	if _, err := e.run(t, true, "payback"); err != nil {
		t.Fatalf("payback: %v", err)
	}
	bal, _ := e.bank.Balance(context.Background(), e.owner.Public)
	if bal.Uint64() != 100 {
		t.Fatalf("owner balance = %s, want 100", bal.Dec())
	}

	if _, err := e.run(t, true, "transfer-owner", next.String()); err != nil {
		t.Fatalf("transfer-owner: %v", err)
	}
	if _, err := e.run(t, true, "payback"); err == nil {
		t.Fatal("old owner should be rejected after transfer")
	}
}

func TestSignedCommandNeedsKey(t *testing.T) {
	e := newEnv(t, 100)
	if _, err := e.run(t, false, "spare"); err == nil {
		t.Fatal("expected error without --key")
	}
}

func TestParseSlots(t *testing.T) {
	id := account.ID{0x07}
	slots, err := parseSlots([]string{emptySlot, id.Hex()})
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || slots[0] != nil || *slots[1] != id {
		t.Fatalf("slots = %v", slots)
	}
	if _, err := parseSlots(nil); err == nil {
		t.Fatal("expected error for no slots")
	}
	if _, err := parseSlots([]string{"nope"}); err == nil {
		t.Fatal("expected error for bad id")
	}
}
