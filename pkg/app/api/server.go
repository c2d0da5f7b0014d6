// Package api implements app.Runner for the settlement switch server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/settlement-switch/pkg/app/http"
	"github.com/chainsafe/settlement-switch/pkg/auth"
	"github.com/chainsafe/settlement-switch/pkg/config"
	"github.com/chainsafe/settlement-switch/pkg/custody"
	"github.com/chainsafe/settlement-switch/pkg/db"
	"github.com/chainsafe/settlement-switch/pkg/eventbus"
	"github.com/chainsafe/settlement-switch/pkg/fees"
	"github.com/chainsafe/settlement-switch/pkg/pgutil"
	"github.com/chainsafe/settlement-switch/pkg/registry"
	"github.com/chainsafe/settlement-switch/pkg/router"
	"github.com/chainsafe/settlement-switch/pkg/settlement"
	switchservice "github.com/chainsafe/settlement-switch/pkg/settlement/service"
)

const defaultRequestTimeout = 60

// Server holds cfg to init the switch server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new switch server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("switch server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting settlement switch",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	dbBun, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return err
	}
	defer dbBun.Close()

	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	sw := buildSwitch(cfg, db.NewStore(dbBun), logger)
	jwtValidator := auth.NewJWTValidator(cfg.JWKS.URL, cfg.JWKS.Issuer, cfg.JWKS.Audience)

	return apphttp.ServeAndWait(ctx, s.setupRouter(sw, jwtValidator, logger), logger, &cfg.Server)
}

// buildSwitch assembles the switch and its collaborators from config.
func buildSwitch(cfg *config.Config, ledger settlement.Ledger, logger *zap.Logger) *settlement.Switch {
	bus := eventbus.NewMemoryBus(logger)

	reg := registry.New(registry.Config{
		HealthCheckInterval: cfg.Registry.HealthCheckInterval,
		FailureThresholdBps: cfg.Registry.FailureThresholdBps,
		MinVolumeForHealth:  cfg.Registry.MinVolumeForHealth,
		AutoDisable:         cfg.Registry.AutoDisable,
	}, bus, logger)

	topo := settlement.NewTopology(cfg.Chains)
	calc := router.New(reg, topo, cfg.Routing.TimePenaltyPerMinute(), cfg.Routing.RouteDeadline, logger)

	vault := custody.NewMemoryVault()
	feeEngine := fees.NewBpsEngine(cfg.Fees.FeeBps, common.HexToAddress(cfg.Fees.Collector), vault)

	return settlement.New(settlement.Config{
		CacheTTL:            cfg.Routing.CacheTTL,
		MinTransferInterval: cfg.Limits.MinTransferInterval,
		DailyLimit:          cfg.Limits.DailyLimit(),
		MaxSplitLegs:        cfg.Routing.MaxSplitLegs,
	}, reg, calc, ledger, vault, feeEngine, topo, bus, logger)
}

func (s *Server) setupRouter(sw *settlement.Switch, jwtValidator *auth.JWTValidator, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Second * defaultRequestTimeout))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Switch endpoints
	switchservice.RegisterRoutes(r, sw, jwtValidator, logger)

	return r
}
