// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Provider describes one upstream RPC provider. Providers are tried in the
// order they appear in the config; disabled entries are skipped.
type Provider struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	APIKey  string `mapstructure:"api_key"`
	Enabled bool   `mapstructure:"enabled"`
	// NetworkMap renames a cluster in the URL template for vendors whose
	// hostnames differ from the canonical name, e.g. Helius uses "mainnet"
	// where the cluster is "mainnet-beta". Unmapped networks substitute
	// verbatim.
	NetworkMap map[string]string `mapstructure:"network_map"`
}

type Config struct {
	Network            string     `mapstructure:"network"`
	ListenAddr         string     `mapstructure:"listen_addr"`
	ProxyURL           string     `mapstructure:"proxy_url"`
	Providers          []Provider `mapstructure:"providers"`
	ForceFallback      bool       `mapstructure:"force_fallback"`
	FeeReceiver        string     `mapstructure:"fee_receiver"`
	CreationFeeSOL     float64    `mapstructure:"creation_fee_sol"`
	CommissionRate     float64    `mapstructure:"commission_rate"`
	AffiliateAPIURL    string     `mapstructure:"affiliate_api_url"`
	PinataJWT          string     `mapstructure:"pinata_jwt"`
	PinataGateway      string     `mapstructure:"pinata_gateway"`
	DefaultImageURI    string     `mapstructure:"default_image_uri"`
	WalletKey          string     `mapstructure:"wallet_key"`
	WalletPath         string     `mapstructure:"wallet_path"`
	ConfirmTimeoutSec  int        `mapstructure:"confirm_timeout_sec"`
	MaxFlowRetries     int        `mapstructure:"max_flow_retries"`
	RateLimitWindowSec int        `mapstructure:"rate_limit_window_sec"`
	RateLimitMax       int        `mapstructure:"rate_limit_max"`
	DebugLogging       bool       `mapstructure:"debug_logging"`
}

const (
	DefaultNetwork         = "devnet"
	DefaultListenAddr      = ":8080"
	DefaultCreationFeeSOL  = 0.2
	DefaultCommissionRate  = 0.2
	DefaultFeeReceiver     = "8347h8LeaVAUzyWES3Xj2Gd6QTpGrCayKBpuYvBW3PWD"
	DefaultConfirmTimeout  = 90
	DefaultMaxFlowRetries  = 2
	DefaultRateLimitWindow = 60
	DefaultRateLimitMax    = 30
	DefaultPinataGateway   = "https://ipfs.io"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"network":               DefaultNetwork,
		"listen_addr":           DefaultListenAddr,
		"creation_fee_sol":      DefaultCreationFeeSOL,
		"commission_rate":       DefaultCommissionRate,
		"fee_receiver":          DefaultFeeReceiver,
		"confirm_timeout_sec":   DefaultConfirmTimeout,
		"max_flow_retries":      DefaultMaxFlowRetries,
		"rate_limit_window_sec": DefaultRateLimitWindow,
		"rate_limit_max":        DefaultRateLimitMax,
		"pinata_gateway":        DefaultPinataGateway,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := loadEnvironmentVariables(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Network != "mainnet-beta" && cfg.Network != "devnet" {
		return errors.New("network must be mainnet-beta or devnet")
	}
	for _, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		if p.Name == "" {
			return errors.New("provider missing name")
		}
		if err := validateURLWithCache(expandProviderURL(p.URL), "http"); err != nil {
			return errors.New("invalid provider URL: " + p.Name)
		}
	}
	if cfg.ProxyURL != "" {
		if err := validateURLWithCache(cfg.ProxyURL, "http"); err != nil {
			return errors.New("invalid proxy_url")
		}
	}
	if cfg.AffiliateAPIURL != "" {
		if err := validateURLWithCache(cfg.AffiliateAPIURL, "http"); err != nil {
			return errors.New("invalid affiliate_api_url")
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.CreationFeeSOL < 0 {
		return errors.New("invalid creation_fee_sol")
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate > 1 {
		return errors.New("commission_rate must be within [0, 1]")
	}
	if cfg.ConfirmTimeoutSec <= 0 {
		return errors.New("invalid confirm_timeout_sec")
	}
	if cfg.MaxFlowRetries < 0 {
		return errors.New("invalid max_flow_retries")
	}
	if cfg.RateLimitWindowSec <= 0 || cfg.RateLimitMax <= 0 {
		return errors.New("invalid rate limit settings")
	}
	return nil
}

// expandProviderURL substitutes placeholders so URL templates like
// "https://{network}.helius-rpc.com/?api-key={api_key}" validate cleanly.
func expandProviderURL(raw string) string {
	return strings.NewReplacer("{network}", "devnet", "{api_key}", "x").Replace(raw)
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) error {
	v.AutomaticEnv()
	v.SetEnvPrefix("SOLMINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if envNetwork := v.GetString("NETWORK"); envNetwork != "" {
		cfg.Network = envNetwork
	}
	if envJWT := v.GetString("PINATA_JWT"); envJWT != "" {
		cfg.PinataJWT = envJWT
	}
	if envKey := v.GetString("WALLET_KEY"); envKey != "" {
		cfg.WalletKey = envKey
	}
	if envProxy := v.GetString("PROXY_URL"); envProxy != "" {
		cfg.ProxyURL = envProxy
	}
	return nil
}
