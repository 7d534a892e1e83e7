// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package main

// @title hookmarket API
// @version 1.0
// @description Verifiable task marketplace coordination service.
// @host localhost:8080
// @BasePath /

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/oxzoid/hookmarket/internal/api"
	"github.com/oxzoid/hookmarket/internal/config"
	"github.com/oxzoid/hookmarket/internal/engine"
	"github.com/oxzoid/hookmarket/internal/eventbus"
	"github.com/oxzoid/hookmarket/internal/paychan"
	"github.com/oxzoid/hookmarket/internal/session"
	"github.com/oxzoid/hookmarket/internal/signing"
	"github.com/oxzoid/hookmarket/internal/store"
	"github.com/oxzoid/hookmarket/internal/sweeper"
	"github.com/oxzoid/hookmarket/internal/verifierclient"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(fmt.Sprintf("file:%s/hookmarket.db?_pragma=busy_timeout=5000", cfg.Server.DataDir))
	if err != nil {
		log.Fatal("store open failed", zap.Error(err))
	}
	defer st.Close() //nolint:errcheck

	bus, err := eventbus.New(cfg.Server.DataDir+"/events.jsonl", log)
	if err != nil {
		log.Fatal("eventbus open failed", zap.Error(err))
	}
	defer bus.Close() //nolint:errcheck

	adapter, err := newPaymentAdapter(cfg, log)
	if err != nil {
		log.Fatal("payment adapter init failed", zap.Error(err))
	}

	mgr := session.NewManager(adapter, st, bus, cfg.Challenge.MaxQuoteRewards, log)
	verifier := verifierclient.New(cfg.Verifier.URL)
	signer := signing.NewVerifier("hookmarket", "1", big.NewInt(cfg.Asset.ChainId), common.HexToAddress(cfg.Asset.ContractAddress))

	windows := engine.Windows{
		Bidding:   time.Duration(cfg.Windows.BiddingMs) * time.Millisecond,
		Delivery:  time.Duration(cfg.Windows.DeliveryMs) * time.Millisecond,
		Verify:    time.Duration(cfg.Windows.VerifyMs) * time.Millisecond,
		Challenge: time.Duration(cfg.Windows.ChallengeMs) * time.Millisecond,
		Patch:     time.Duration(cfg.Windows.PatchMs) * time.Millisecond,
	}
	eng := engine.New(st, mgr, verifier, signer, windows, cfg.Challenge.MilestoneSplits, bus, log)

	sweep := sweeper.New(eng, time.Duration(cfg.Challenge.SweepIntervalMs)*time.Millisecond, log)
	go sweep.Run(ctx)

	srv := api.NewServer(eng, st, bus, cfg, log)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		log.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// newPaymentAdapter selects the PaymentChannelAdapter per cfg.Asset.Mode,
// the way cfg.Mode steers an external client in
// 0gfoundation-0g-sandbox-billing/cmd/billing/main.go's chain.NewClient setup.
func newPaymentAdapter(cfg *config.Config, log *zap.Logger) (paychan.Adapter, error) {
	switch cfg.Asset.Mode {
	case "mock":
		return paychan.NewMock(), nil
	case "real":
		priv, err := crypto.HexToECDSA(stripHexPrefix(cfg.Asset.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("invalid asset private key: %w", err)
		}
		return paychan.NewReal(cfg.Asset.RPCURL, priv, log), nil
	default:
		return nil, fmt.Errorf("unknown asset mode %q", cfg.Asset.Mode)
	}
}

func stripHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
