package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/api"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/config"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/rpc"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/signals"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/state"
	"github.com/danielpatrickdp/city-adaptive/go-controller/internal/tracker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// #region main
func main() {
	configPath := flag.String("config", envOr("ADAPTIVE_CONFIG", "configs/config.yml"), "path to YAML config")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("controller stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := state.NewStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := tracker.New(store, tracker.Options{
		Update: cfg.Update,
		Policy: cfg.Policy,
		Logger: logger.Named("tracker"),
	})
	if err != nil {
		return err
	}

	inferrer := signals.Chain{signals.NewFSIInferrer(cfg.FSI), signals.NewRulesInferrer()}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(t, inferrer, logger.Named("api")), logger.Named("http"))
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := rpc.NewGRPCServer(rpc.NewServer(t, inferrer, logger.Named("rpc")))
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("adaptive controller ready",
		zap.String("db", cfg.Database.Path),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.String("grpc", cfg.Server.GRPCAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
// #endregion main

// #region helpers
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
