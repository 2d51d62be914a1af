// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
network: devnet
providers:
  - name: primary
    url: "https://api.devnet.solana.com"
    enabled: true
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "devnet", cfg.Network)
	assert.Equal(t, 0.2, cfg.CreationFeeSOL)
	assert.Equal(t, 0.2, cfg.CommissionRate)
	assert.Equal(t, "8347h8LeaVAUzyWES3Xj2Gd6QTpGrCayKBpuYvBW3PWD", cfg.FeeReceiver)
	assert.Equal(t, 60, cfg.ConfirmTimeoutSec)
	assert.Equal(t, 2, cfg.MaxFlowRetries)
	assert.Equal(t, 60, cfg.RateLimitWindowSec)
	assert.Equal(t, 30, cfg.RateLimitMax)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "primary", cfg.Providers[0].Name)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
network: mainnet-beta
creation_fee_sol: 0.5
commission_rate: 0.1
max_flow_retries: 1
providers:
  - name: helius
    url: "https://{network}.helius-rpc.com/?api-key={api_key}"
    api_key: secret
    enabled: true
  - name: backup
    url: "https://api.mainnet-beta.solana.com"
    enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "mainnet-beta", cfg.Network)
	assert.Equal(t, 0.5, cfg.CreationFeeSOL)
	assert.Equal(t, 0.1, cfg.CommissionRate)
	assert.Equal(t, 1, cfg.MaxFlowRetries)
	require.Len(t, cfg.Providers, 2)
	assert.True(t, cfg.Providers[0].Enabled)
	assert.False(t, cfg.Providers[1].Enabled)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown network",
			content: "network: testnet\n",
			wantErr: "network must be",
		},
		{
			name: "commission rate above one",
			content: minimalConfig + `
commission_rate: 1.5
`,
			wantErr: "commission_rate",
		},
		{
			name: "negative creation fee",
			content: minimalConfig + `
creation_fee_sol: -1
`,
			wantErr: "creation_fee_sol",
		},
		{
			name: "zero confirm timeout",
			content: minimalConfig + `
confirm_timeout_sec: 0
`,
			wantErr: "confirm_timeout_sec",
		},
		{
			name: "enabled provider without name",
			content: `
network: devnet
providers:
  - url: "https://api.devnet.solana.com"
    enabled: true
`,
			wantErr: "provider missing name",
		},
		{
			name: "enabled provider with bad URL",
			content: `
network: devnet
providers:
  - name: broken
    url: "ftp://not-rpc"
    enabled: true
`,
			wantErr: "invalid provider URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SOLMINT_PINATA_JWT", "env-jwt")
	t.Setenv("SOLMINT_WALLET_KEY", "env-wallet")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-jwt", cfg.PinataJWT)
	assert.Equal(t, "env-wallet", cfg.WalletKey)
}

func TestProviderURLTemplateValidation(t *testing.T) {
	// Template placeholders must not break URL validation.
	cfg, err := LoadConfig(writeConfig(t, `
network: devnet
providers:
  - name: helius
    url: "https://{network}.helius-rpc.com/?api-key={api_key}"
    api_key: k
    enabled: true
`))
	require.NoError(t, err)
	assert.Equal(t, "https://{network}.helius-rpc.com/?api-key={api_key}", cfg.Providers[0].URL)
}
