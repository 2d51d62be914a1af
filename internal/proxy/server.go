// internal/proxy/server.go
package proxy

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/config"
)

const (
	networkHeader = "x-solana-network"

	// No traffic for this long means the next request hits cold upstream
	// connections and gets extended timeouts.
	coldStartWindow = 5 * time.Minute

	readTimeoutBase = 45 * time.Second
	sendTimeoutBase = 60 * time.Second
)

// Allowed RPC methods. Anything else is rejected before touching upstream.
var allowedMethods = map[string]bool{
	"getBalance":                        true,
	"getAccountInfo":                    true,
	"getTokenAccountsByOwner":           true,
	"getProgramAccounts":                true,
	"getRecentBlockhash":                true,
	"getLatestBlockhash":                true,
	"getBlockHeight":                    true,
	"getTransaction":                    true,
	"getSignaturesForAddress":           true,
	"getTokenAccountBalance":            true,
	"confirmTransaction":                true,
	"getSignatureStatus":                true,
	"getSignatureStatuses":              true,
	"getMinimumBalanceForRentExemption": true,
	"getSlot":                           true,
	"getVersion":                        true,
	"getHealth":                         true,
	"getClusterNodes":                   true,
	"getEpochInfo":                      true,
	"getEpochSchedule":                  true,
	"getGenesisHash":                    true,
	"getIdentity":                       true,
	"getInflationGovernor":              true,
	"getInflationRate":                  true,
	"getInflationReward":                true,
	"getLargestAccounts":                true,
	"getLeaderSchedule":                 true,
	"getMultipleAccounts":               true,
	"getRecentPerformanceSamples":       true,
	"getStakeActivation":                true,
	"getStakeMinimumDelegation":         true,
	"getSupply":                         true,
	"getTokenLargestAccounts":           true,
	"getTokenSupply":                    true,
	"getVoteAccounts":                   true,
	"requestAirdrop":                    true,
	"simulateTransaction":               true,
	"sendTransaction":                   true,
}

func allowedMethodList() []string {
	out := make([]string, 0, len(allowedMethods))
	for m := range allowedMethods {
		out = append(out, m)
	}
	return out
}

// Server is the RPC fallback proxy: it validates the method against the
// allow-list, then tries each configured provider in priority order until
// one serves the request.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	clock   clockwork.Clock
	limiter *rateLimiter
	client  *http.Client

	mu       sync.Mutex
	warmed   bool
	lastSeen time.Time
}

func NewServer(cfg *config.Config, logger *zap.Logger, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	return &Server{
		cfg:     cfg,
		logger:  logger.Named("rpc-proxy"),
		clock:   clock,
		limiter: newRateLimiter(window, cfg.RateLimitMax),
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Router returns the HTTP routes the proxy serves.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/solana-rpc", s.handleRPC).Methods(http.MethodPost)
	return r
}

// Close stops background workers.
func (s *Server) Close() {
	s.limiter.stop()
}

type rpcCall struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var call rpcCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "invalid request body"})
		return
	}

	if !allowedMethods[call.Method] {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":          "Method not allowed",
			"allowedMethods": allowedMethodList(),
		})
		return
	}

	network := r.Header.Get(networkHeader)
	if network == "" {
		network = "mainnet-beta"
	}
	if network != "mainnet-beta" && network != "devnet" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Only mainnet-beta and devnet networks allowed for token creation",
		})
		return
	}

	if !s.limiter.allow(call.Method, callerIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"error": "Rate limit exceeded"})
		return
	}

	cold := s.observeTraffic()
	timeout := timeoutFor(call.Method, cold)
	if cold {
		s.logger.Info("Cold start detected, using extended timeouts",
			zap.String("method", call.Method),
			zap.Duration("timeout", timeout))
	}

	s.forward(w, r, call, network, timeout)
}

// observeTraffic records the request time and reports whether the process
// was cold (no traffic in the last 5 minutes).
func (s *Server) observeTraffic() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	cold := !s.warmed || now.Sub(s.lastSeen) > coldStartWindow
	s.warmed = true
	s.lastSeen = now
	return cold
}

func timeoutFor(method string, cold bool) time.Duration {
	base := readTimeoutBase
	if method == "sendTransaction" {
		base = sendTimeoutBase
	}
	if cold {
		base = base * 3 / 2
	}
	return base
}

func callerIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
