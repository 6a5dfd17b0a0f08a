// Package server is the HTTP + WebSocket backend for the market frontend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/genmarket/internal/domain"
	"github.com/alanyoungcy/genmarket/internal/server/handler"
	"github.com/alanyoungcy/genmarket/internal/server/middleware"
	"github.com/alanyoungcy/genmarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Audit may be nil.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Account     *handler.AccountHandler
	Markets     *handler.MarketHandler
	Positions   *handler.PositionHandler
	Bets        *handler.BetHandler
	Tx          *handler.TxHandler
	Deployments *handler.DeploymentHandler
	Audit       *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// limiter may be nil, which disables rate limiting regardless of cfg.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	h := Routes(cfg, handlers, wsHub, limiter, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // tx wait endpoint
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Routes builds the routed, middleware-wrapped handler.
func Routes(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health, status and metrics (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Account slot.
	mux.HandleFunc("GET /api/account", handlers.Account.GetAccount)
	mux.HandleFunc("POST /api/account", handlers.Account.CreateAccount)
	mux.HandleFunc("DELETE /api/account", handlers.Account.RemoveAccount)

	// Markets.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets/trending", handlers.Markets.Trending)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Markets.PlaceBet)
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Markets.ResolveMarket)

	// Positions and balance.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/balance", handlers.Positions.GetBalance)
	mux.HandleFunc("POST /api/balance/withdraw", handlers.Positions.Withdraw)

	// Legacy bets and points.
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("POST /api/bets/{id}/resolve", handlers.Bets.ResolveBet)
	mux.HandleFunc("GET /api/points", handlers.Bets.Points)
	mux.HandleFunc("GET /api/points/{address}", handlers.Bets.PlayerPoints)

	// Transactions.
	mux.HandleFunc("GET /api/tx/events", handlers.Tx.Events)
	mux.HandleFunc("GET /api/tx/{hash}", handlers.Tx.GetTransaction)
	mux.HandleFunc("GET /api/tx/{hash}/wait", handlers.Tx.WaitTransaction)

	// Deployments.
	mux.HandleFunc("GET /api/deployments", handlers.Deployments.List)
	mux.HandleFunc("GET /api/deployments/latest", handlers.Deployments.Latest)

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Warn("ignoring trusted proxies", slog.String("error", err.Error()))
	}

	// Outermost first.
	chain := []middleware.Middleware{
		middleware.RequestID(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.Logging(logger, proxies, "/api/health", "/metrics"),
	}
	if limiter != nil && cfg.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(limiter, cfg.RateLimit, time.Minute, proxies, logger))
	}
	chain = append(chain, middleware.Auth(cfg.APIKey, "/api/health", "/api/status", "/metrics"))

	var h http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
