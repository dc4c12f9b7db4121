// Package rpc exposes the ledger engines over HTTP. Queries are open;
// mutations require the shared bearer secret when one is configured. Callers
// are identified by the address field in the request body, the secret only
// authenticates the transport.
package rpc

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"defiledger/native/common"
	"defiledger/native/lending"
	"defiledger/native/staking"
)

// ServerConfig wires the engines and transport settings into a Server.
type ServerConfig struct {
	Staking *staking.Engine
	Lending *lending.Engine
	// Oracle, when set, enables the price update endpoint.
	Oracle *lending.StaticOracle
	// Roles guards the oracle endpoint; engine-level operations carry their
	// own role checks.
	Roles common.RoleStore
	// AuthSecret is the shared bearer secret for mutating routes. Empty
	// disables transport auth.
	AuthSecret string
	Logger     *slog.Logger
}

type Server struct {
	staking *staking.Engine
	lending *lending.Engine
	oracle  *lending.StaticOracle
	roles   common.RoleStore
	secret  string
	logger  *slog.Logger
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		staking: cfg.Staking,
		lending: cfg.Lending,
		oracle:  cfg.Oracle,
		roles:   cfg.Roles,
		secret:  cfg.AuthSecret,
		logger:  logger,
	}
}

// Router assembles the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/staking", func(sr chi.Router) {
		sr.Get("/pools", s.handleStakingPools)
		sr.Get("/pools/{id}", s.handleStakingPool)
		sr.Get("/positions/{owner}", s.handleStakingPositions)
		sr.Get("/rewards/{owner}", s.handleStakingRewards)
		sr.Group(func(mr chi.Router) {
			mr.Use(s.requireAuth)
			mr.Post("/pools", s.handleCreatePool)
			mr.Post("/pools/{id}/toggle", s.handleTogglePool)
			mr.Post("/stake", s.handleStake)
			mr.Post("/unstake", s.handleUnstake)
			mr.Post("/claim", s.handleClaim)
		})
	})

	r.Route("/v1/lending", func(lr chi.Router) {
		lr.Get("/markets", s.handleMarkets)
		lr.Get("/markets/{token}", s.handleMarket)
		lr.Get("/accounts/{owner}", s.handleAccount)
		lr.Group(func(mr chi.Router) {
			mr.Use(s.requireAuth)
			mr.Post("/markets", s.handleListMarket)
			mr.Post("/markets/{token}/toggle", s.handleToggleMarket)
			mr.Post("/deposit", s.handleDeposit)
			mr.Post("/withdraw", s.handleWithdraw)
			mr.Post("/borrow", s.handleBorrow)
			mr.Post("/repay", s.handleRepay)
			mr.Post("/liquidate", s.handleLiquidate)
			mr.Post("/oracle/prices", s.handleSetPrice)
		})
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or missing bearer token", Kind: "authorization"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
