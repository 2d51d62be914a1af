// internal/proxy/provider.go
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/config"
)

type upstreamEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type upstreamError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type upstreamResponse struct {
	raw   []byte
	Error *upstreamError `json:"error"`
}

// forward iterates the configured providers in priority order. Transient
// failures (HTTP errors, timeouts, rate-limit / internal RPC codes) fall
// over to the next provider; semantic RPC errors are returned immediately
// since every provider would answer the same.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, call rpcCall, network string, timeout time.Duration) {
	params := call.Params
	if len(params) == 0 {
		params = json.RawMessage("[]")
	}
	payload, err := json.Marshal(upstreamEnvelope{
		JSONRPC: "2.0",
		ID:      1,
		Method:  call.Method,
		Params:  params,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "failed to encode upstream request"})
		return
	}

	var (
		attempted []string
		lastErr   error
		timedOut  bool
	)
	skipFirst := s.cfg.ForceFallback

	for _, provider := range s.cfg.Providers {
		if !provider.Enabled {
			continue
		}
		if skipFirst {
			// Fallback-path testing override: treat the primary as failed.
			skipFirst = false
			attempted = append(attempted, provider.Name)
			lastErr = errors.New("provider skipped by force_fallback")
			continue
		}

		attempted = append(attempted, provider.Name)
		resp, err := s.callProvider(r.Context(), provider, network, payload, timeout)
		if err != nil {
			timedOut = errors.Is(err, context.DeadlineExceeded)
			lastErr = err
			s.logger.Warn("Provider failed, trying next",
				zap.String("provider", provider.Name),
				zap.String("method", call.Method),
				zap.Error(err))
			continue
		}

		if resp.Error != nil && transientRPCError(resp.Error) {
			// This provider answered, so an earlier timeout no longer
			// describes the final failure.
			timedOut = false
			lastErr = fmt.Errorf("transient RPC error %d: %s", resp.Error.Code, resp.Error.Message)
			s.logger.Warn("Provider returned transient RPC error, trying next",
				zap.String("provider", provider.Name),
				zap.Int("code", resp.Error.Code))
			continue
		}

		// Success, or a semantic error no other provider can fix. Either
		// way the upstream envelope goes back verbatim.
		s.logger.Info("Request served",
			zap.String("provider", provider.Name),
			zap.String("method", call.Method),
			zap.String("network", network))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.raw)
		return
	}

	if len(attempted) == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "RPC configuration error"})
		return
	}
	if timedOut {
		writeJSON(w, http.StatusRequestTimeout, map[string]interface{}{
			"error":              "RPC request timeout",
			"providersAttempted": attempted,
		})
		return
	}
	writeJSON(w, http.StatusBadGateway, map[string]interface{}{
		"error":              fmt.Sprintf("all providers failed: %v", lastErr),
		"providersAttempted": attempted,
	})
}

func (s *Server) callProvider(ctx context.Context, provider config.Provider, network string, payload []byte, timeout time.Duration) (*upstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL(provider, network), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &upstreamResponse{raw: raw}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("invalid upstream response: %w", err)
	}
	return out, nil
}

// endpointURL expands the provider's URL template with the network and API
// key, e.g. "https://{network}.helius-rpc.com/?api-key={api_key}". The
// network name is vendor-specific: the provider's network_map renames the
// cluster where the vendor's hostname scheme diverges from the canonical
// name, and the template sees the cluster verbatim otherwise.
func endpointURL(provider config.Provider, network string) string {
	if mapped, ok := provider.NetworkMap[network]; ok {
		network = mapped
	}
	return strings.NewReplacer(
		"{network}", network,
		"{api_key}", provider.APIKey,
	).Replace(provider.URL)
}

// transientRPCError reports whether a provider-level RPC error is worth
// retrying elsewhere: -32005 node unhealthy, -32016 temporarily
// unavailable, -32603 internal error, or rate limiting.
func transientRPCError(e *upstreamError) bool {
	switch e.Code {
	case -32005, -32016, -32603:
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "temporarily unavailable")
}
