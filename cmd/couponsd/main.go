package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0gfoundation/0g-coupon-ledger/internal/account"
	"github.com/0gfoundation/0g-coupon-ledger/internal/api"
	"github.com/0gfoundation/0g-coupon-ledger/internal/audit"
	"github.com/0gfoundation/0g-coupon-ledger/internal/auth"
	"github.com/0gfoundation/0g-coupon-ledger/internal/bank"
	"github.com/0gfoundation/0g-coupon-ledger/internal/config"
	"github.com/0gfoundation/0g-coupon-ledger/internal/journal"
	"github.com/0gfoundation/0g-coupon-ledger/internal/kvstore"
	"github.com/0gfoundation/0g-coupon-ledger/internal/ledger"
	"github.com/0gfoundation/0g-coupon-ledger/internal/metrics"
)

// fundedKeyFmt marks that initial funding was minted for a ledger account.
const fundedKeyFmt = "%s:bank:funded:%s"

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	ledgerID, _ := cfg.Ledger.Identity()
	ownerID, _ := cfg.Ledger.OwnerIdentity()
	funding, _ := cfg.Ledger.Funding()
	ns := cfg.Store.Namespace

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis ─────────────────────────────────────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Ledger store ──────────────────────────────────────────────────────────
	store, err := openStore(cfg.Store, rdb)
	if err != nil {
		log.Fatal("store open failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	// ── Bank (host balances) ──────────────────────────────────────────────────
	host := bank.NewRedis(rdb, ns)
	if err := fundOnce(ctx, rdb, host, ns, ledgerID, funding, log); err != nil {
		log.Fatal("initial funding failed", zap.Error(err))
	}

	// ── Metrics + journal ─────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	events := journal.NewRedis(rdb, ns, cfg.Journal.MaxLen)

	// ── Ledger ────────────────────────────────────────────────────────────────
	l, err := ledger.New(ctx, ledger.Config{
		ID:            ledgerID,
		Owner:         ownerID,
		BatchCapacity: cfg.Ledger.BatchCapacity,
	}, store, host, events, m, log)
	if err != nil {
		log.Fatal("ledger init failed", zap.Error(err))
	}

	// ── Goroutines ────────────────────────────────────────────────────────────
	go audit.Run(ctx, time.Duration(cfg.Audit.IntervalSec)*time.Second, l, m, log)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := newRouter(api.NewHandler(l, host, events, log), rdb, ns, reg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("ledger", ledgerID.String()),
			zap.String("store", cfg.Store.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func newRouter(h *api.Handler, rdb *redis.Client, ns string, reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	h.RegisterPublic(r.Group("/api"))
	h.Register(r.Group("/api", auth.Middleware(rdb, ns)))
	return r
}

func openStore(cfg config.StoreConfig, rdb *redis.Client) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		return kvstore.NewRedis(rdb, cfg.Namespace), nil
	case config.BackendLevelDB:
		return kvstore.OpenLevelDB(cfg.Path)
	case config.BackendMemory:
		return kvstore.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// fundOnce mints amount to the ledger account the first time it runs against
// a bank; later starts are no-ops.
func fundOnce(ctx context.Context, rdb *redis.Client, b *bank.Redis, ns string, ledgerID account.ID, amount *uint256.Int, log *zap.Logger) error {
	if amount.IsZero() {
		return nil
	}
	key := fmt.Sprintf(fundedKeyFmt, ns, ledgerID.Hex())
	first, err := rdb.SetNX(ctx, key, amount.Dec(), 0).Result()
	if err != nil {
		return fmt.Errorf("mark funding: %w", err)
	}
	if !first {
		return nil
	}
	if err := b.Mint(ctx, ledgerID, amount); err != nil {
		rdb.Del(ctx, key) //nolint:errcheck
		return fmt.Errorf("mint: %w", err)
	}
	log.Info("ledger funded", zap.String("ledger", ledgerID.String()), zap.String("amount", amount.Dec()))
	return nil
}
