package main

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

	"github.com/ethereum/go-ethereum/ethclient"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	fisher "github.com/socialpay/fisher"
	"github.com/socialpay/fisher/extensions/idempotency"
	fisherhttp "github.com/socialpay/fisher/http"
	"github.com/socialpay/fisher/internal/config"
	fishermcp "github.com/socialpay/fisher/mcp"
	evmsigners "github.com/socialpay/fisher/signers/evm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(start())
}

// start runs the service and returns the process exit code once every
// deferred cleanup has run.
func start() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fisher stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC: %w", err)
	}
	defer client.Close()

	signer, err := evmsigners.NewIntentSignerFromPrivateKey(cfg.ExecutorPrivateKey)
	if err != nil {
		return err
	}

	chainID := big.NewInt(cfg.ChainID)
	ledger, err := evmsigners.NewLedgerClient(client, cfg.Contract(), signer, chainID,
		evmsigners.WithReceiptTimeout(cfg.ReceiptTimeout),
		evmsigners.WithLedgerLogger(logger.Named("ledger")),
	)
	if err != nil {
		return err
	}
	if err := ledger.VerifyChainID(ctx); err != nil {
		return err
	}

	store := fisher.NewPendingStore(fisher.WithProposalTTL(cfg.ProposalTTL))
	orchestrator := fisher.NewPaymentOrchestrator(ledger, signer, store,
		fisher.WithPlatform(cfg.Platform),
		fisher.WithChainID(chainID),
		fisher.WithVerifyingContract(cfg.Contract()),
		fisher.WithDeadlineWindow(cfg.DeadlineWindowMinutes),
		fisher.WithLogger(logger.Named("orchestrator")),
	)

	logger.Info("fisher starting",
		zap.String("executor", signer.Address().Hex()),
		zap.String("contract", cfg.Contract().Hex()),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("platform", cfg.Platform),
	)

	service := idempotency.Wrap(orchestrator, idempotency.WithTTL(cfg.IdempotencyTTL))

	tools := fishermcp.NewServer(service,
		&mcpsdk.Implementation{Name: "socialpay-fisher", Version: "1.0.0"},
		fishermcp.WithLogger(logger.Named("mcp")),
	)

	g, ctx := errgroup.WithContext(ctx)

	httpOpts := []fisherhttp.Option{
		fisherhttp.WithLogger(logger.Named("http")),
		fisherhttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	if cfg.MCPStdio {
		g.Go(func() error {
			return tools.RunStdio(ctx)
		})
	} else {
		httpOpts = append(httpOpts, fisherhttp.WithMCPHandler(tools.SSEHandler()))
	}

	api := fisherhttp.NewServer(service, httpOpts...)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = level
	if cfg.MCPStdio {
		// stdout carries the MCP stream
		zapCfg.OutputPaths = []string{"stderr"}
	}
	return zapCfg.Build()
}
