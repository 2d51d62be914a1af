// internal/affiliate/client_test.go
package affiliate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testPayer     = solana.MustPublicKeyFromBase58("8347h8LeaVAUzyWES3Xj2Gd6QTpGrCayKBpuYvBW3PWD")
	testAffiliate = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func TestResolveWithReferrer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/affiliate/"+testPayer.String()+"/referral", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"affiliateWallet": map[string]string{"walletAddress": testAffiliate.String()},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, 0.2, zap.NewNop())
	split := c.Resolve(context.Background(), testPayer, 200_000_000)

	require.NotNil(t, split.Affiliate)
	assert.Equal(t, testAffiliate, *split.Affiliate)
	assert.Equal(t, uint64(40_000_000), split.Commission)
	assert.Equal(t, uint64(160_000_000), split.Receiver)
	assert.Equal(t, split.Total, split.Commission+split.Receiver)
}

func TestResolveFailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "no relationship",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"affiliateWallet": nil})
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
		{
			name: "invalid wallet address",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"affiliateWallet": map[string]string{"walletAddress": "not-a-key"},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			c := NewClient(server.URL, 0.2, zap.NewNop())
			split := c.Resolve(context.Background(), testPayer, 200_000_000)

			assert.Nil(t, split.Affiliate)
			assert.Equal(t, uint64(0), split.Commission)
			assert.Equal(t, uint64(200_000_000), split.Receiver)
		})
	}
}

func TestResolveFailsOpenOnUnreachableAPI(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 0.2, zap.NewNop())
	split := c.Resolve(context.Background(), testPayer, 200_000_000)
	assert.Nil(t, split.Affiliate)
	assert.Equal(t, uint64(200_000_000), split.Receiver)
}

func TestRecordEarnings(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/affiliate/"+testAffiliate.String()+"/earnings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0.2, zap.NewNop())
	c.RecordEarnings(context.Background(), testAffiliate, 40_000_000, "5sig", testPayer)

	assert.Equal(t, 0.04, got["amount"])
	assert.Equal(t, "5sig", got["transactionId"])
	assert.Equal(t, testPayer.String(), got["userWallet"])
	assert.NotEmpty(t, got["timestamp"])
}

func TestLink(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/affiliate/link", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer server.Close()

	c := NewClient(server.URL, 0.2, zap.NewNop())
	c.Link(context.Background(), testPayer, testAffiliate)

	assert.Equal(t, testPayer.String(), got["userWallet"])
	assert.Equal(t, testAffiliate.String(), got["affiliateWallet"])
}
