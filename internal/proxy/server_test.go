// internal/proxy/server_test.go
package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/config"
)

func newTestServer(t *testing.T, providers ...config.Provider) *Server {
	t.Helper()
	cfg := &config.Config{
		Network:            "devnet",
		Providers:          providers,
		RateLimitWindowSec: 60,
		RateLimitMax:       100,
	}
	s := NewServer(cfg, zap.NewNop(), clockwork.NewFakeClock())
	t.Cleanup(s.Close)
	return s
}

func doRPC(s *Server, method string, headers map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]interface{}{
		"method": method,
		"params": []interface{}{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/solana-rpc", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func enabledProvider(name, url string) config.Provider {
	return config.Provider{Name: name, URL: url, Enabled: true}
}

func TestRejectsUnknownMethod(t *testing.T) {
	var upstreamCalls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
	}))
	defer upstream.Close()

	s := newTestServer(t, enabledProvider("primary", upstream.URL))
	rec := doRPC(s, "shutdown", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := jsonBody(t, rec)
	assert.Equal(t, "Method not allowed", body["error"])
	assert.NotEmpty(t, body["allowedMethods"])
	assert.Equal(t, int64(0), upstreamCalls.Load(), "rejected method must never reach upstream")
}

func TestRejectsUnknownNetwork(t *testing.T) {
	s := newTestServer(t, enabledProvider("primary", "http://unused"))
	rec := doRPC(s, "getBalance", map[string]string{"x-solana-network": "testnet"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, jsonBody(t, rec)["error"], "mainnet-beta and devnet")
}

func TestFailoverOnProviderError(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":42}`))
	}))
	defer fallback.Close()

	s := newTestServer(t,
		enabledProvider("primary", primary.URL),
		enabledProvider("fallback", fallback.URL))

	rec := doRPC(s, "getBalance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":42}`, rec.Body.String())
}

func TestFailoverOnTransientRPCCode(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	defer fallback.Close()

	s := newTestServer(t,
		enabledProvider("primary", primary.URL),
		enabledProvider("fallback", fallback.URL))

	rec := doRPC(s, "getSlot", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":"ok"`)
}

func TestSemanticErrorReturnedVerbatim(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid param: wrong size"}}`))
	}))
	defer primary.Close()

	var fallbackCalls atomic.Int64
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls.Add(1)
	}))
	defer fallback.Close()

	s := newTestServer(t,
		enabledProvider("primary", primary.URL),
		enabledProvider("fallback", fallback.URL))

	rec := doRPC(s, "getBalance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid param")
	assert.Equal(t, int64(0), fallbackCalls.Load(),
		"a semantic RPC error must not fail over: every provider would answer the same")
}

func TestAllProvidersFailed(t *testing.T) {
	fail := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer fail.Close()

	s := newTestServer(t,
		enabledProvider("one", fail.URL),
		enabledProvider("two", fail.URL))

	rec := doRPC(s, "getBalance", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := jsonBody(t, rec)
	assert.Contains(t, body["error"], "all providers failed")
	assert.Equal(t, []interface{}{"one", "two"}, body["providersAttempted"])
}

func TestDisabledProvidersSkipped(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer live.Close()

	disabled := config.Provider{Name: "off", URL: "http://unreachable", Enabled: false}
	s := newTestServer(t, disabled, enabledProvider("live", live.URL))

	rec := doRPC(s, "getBalance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestForceFallbackSkipsPrimary(t *testing.T) {
	var primaryCalls atomic.Int64
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"primary"}`))
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"fallback"}`))
	}))
	defer fallback.Close()

	cfg := &config.Config{
		Network:            "devnet",
		ForceFallback:      true,
		Providers:          []config.Provider{enabledProvider("primary", primary.URL), enabledProvider("fallback", fallback.URL)},
		RateLimitWindowSec: 60,
		RateLimitMax:       100,
	}
	s := NewServer(cfg, zap.NewNop(), clockwork.NewFakeClock())
	defer s.Close()

	rec := doRPC(s, "getBalance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fallback")
	assert.Equal(t, int64(0), primaryCalls.Load())
}

func TestEndpointURLNetworkMap(t *testing.T) {
	helius := config.Provider{
		Name:       "helius",
		URL:        "https://{network}.helius-rpc.com/?api-key={api_key}",
		APIKey:     "secret",
		NetworkMap: map[string]string{"mainnet-beta": "mainnet"},
	}
	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=secret",
		endpointURL(helius, "mainnet-beta"))
	assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=secret",
		endpointURL(helius, "devnet"))

	// Without a map the cluster name substitutes verbatim; the public
	// endpoint really is api.mainnet-beta.solana.com.
	public := config.Provider{Name: "public", URL: "https://api.{network}.solana.com"}
	assert.Equal(t, "https://api.mainnet-beta.solana.com",
		endpointURL(public, "mainnet-beta"))
	assert.Equal(t, "https://api.devnet.solana.com",
		endpointURL(public, "devnet"))
}

func forwardRPC(s *Server, method string, timeout time.Duration) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/solana-rpc", nil)
	s.forward(rec, req, rpcCall{Method: method, Params: json.RawMessage(`[]`)}, "devnet", timeout)
	return rec
}

func TestTimeoutOnLastProviderReturns408(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and
		// cancels the request context; otherwise Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer slow.Close()

	s := newTestServer(t, enabledProvider("slow", slow.URL))
	rec := forwardRPC(s, "getBalance", 30*time.Millisecond)

	assert.Equal(t, http.StatusRequestTimeout, rec.Code)
	assert.Contains(t, jsonBody(t, rec)["error"], "timeout")
}

func TestTimeoutThenTransientErrorReturns502(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer slow.Close()

	transient := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"Node is behind"}}`))
	}))
	defer transient.Close()

	s := newTestServer(t,
		enabledProvider("slow", slow.URL),
		enabledProvider("transient", transient.URL))
	rec := forwardRPC(s, "getBalance", 30*time.Millisecond)

	// The last provider answered, so the earlier timeout does not describe
	// the outcome.
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := jsonBody(t, rec)
	assert.Contains(t, body["error"], "all providers failed")
	assert.Equal(t, []interface{}{"slow", "transient"}, body["providersAttempted"])
}

func TestRateLimiterConcurrentFirstHits(t *testing.T) {
	rl := newRateLimiter(time.Minute, 50)
	defer rl.stop()

	var (
		allowed atomic.Int64
		wg      sync.WaitGroup
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.allow("getBalance", "10.0.0.9") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), allowed.Load(), "every hit must land on one shared counter")
}

func TestRateLimitPerMethodAndIP(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1}`))
	}))
	defer upstream.Close()

	cfg := &config.Config{
		Network:            "devnet",
		Providers:          []config.Provider{enabledProvider("primary", upstream.URL)},
		RateLimitWindowSec: 60,
		RateLimitMax:       2,
	}
	s := NewServer(cfg, zap.NewNop(), clockwork.NewFakeClock())
	defer s.Close()

	headers := map[string]string{"X-Forwarded-For": "10.0.0.1"}
	assert.Equal(t, http.StatusOK, doRPC(s, "getBalance", headers).Code)
	assert.Equal(t, http.StatusOK, doRPC(s, "getBalance", headers).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRPC(s, "getBalance", headers).Code)

	// Budgets are independent per method and per caller.
	assert.Equal(t, http.StatusOK, doRPC(s, "getSlot", headers).Code)
	other := map[string]string{"X-Forwarded-For": "10.0.0.2"}
	assert.Equal(t, http.StatusOK, doRPC(s, "getBalance", other).Code)
}

func TestTimeoutFor(t *testing.T) {
	tests := []struct {
		method string
		cold   bool
		want   time.Duration
	}{
		{"getBalance", false, 45 * time.Second},
		{"getBalance", true, 67500 * time.Millisecond},
		{"sendTransaction", false, 60 * time.Second},
		{"sendTransaction", true, 90 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeoutFor(tt.method, tt.cold), "%s cold=%v", tt.method, tt.cold)
	}
}

func TestColdStartDetection(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := &config.Config{
		Network:            "devnet",
		RateLimitWindowSec: 60,
		RateLimitMax:       100,
	}
	s := NewServer(cfg, zap.NewNop(), clock)
	defer s.Close()

	assert.True(t, s.observeTraffic(), "first request after boot is cold")
	assert.False(t, s.observeTraffic(), "immediate follow-up is warm")

	clock.Advance(4 * time.Minute)
	assert.False(t, s.observeTraffic(), "within the window stays warm")

	clock.Advance(coldStartWindow + time.Second)
	assert.True(t, s.observeTraffic(), "idle beyond the window goes cold again")
}

func TestCallerIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "192.168.1.5:12345"
	assert.Equal(t, "192.168.1.5", callerIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", callerIP(req))
}
