// ====================================
// File: cmd/mint/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/affiliate"
	"github.com/solmintlabs/solmint/internal/config"
	"github.com/solmintlabs/solmint/internal/logger"
	"github.com/solmintlabs/solmint/internal/minting"
	"github.com/solmintlabs/solmint/internal/solrpc"
	"github.com/solmintlabs/solmint/internal/token"
	"github.com/solmintlabs/solmint/internal/upload"
	"github.com/solmintlabs/solmint/internal/vanity"
	"github.com/solmintlabs/solmint/internal/wallet"
)

func main() {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config file")

		name        = flag.String("name", "", "token name (required)")
		symbol      = flag.String("symbol", "", "token symbol (required)")
		decimals    = flag.Uint("decimals", 9, "token decimals (0-9)")
		supply      = flag.Uint64("supply", 0, "initial supply in whole tokens")
		description = flag.String("description", "", "token description")

		website  = flag.String("website", "", "project website URL")
		telegram = flag.String("telegram", "", "telegram URL")
		twitter  = flag.String("x", "", "X (twitter) URL")
		image    = flag.String("image", "", "path to token image file")

		revokeMint   = flag.Bool("revoke-mint", false, "revoke mint authority after minting")
		revokeFreeze = flag.Bool("revoke-freeze", false, "revoke freeze authority")
		immutable    = flag.Bool("immutable", false, "make metadata immutable")

		vanityPattern = flag.String("vanity", "", "vanity address pattern (1-3 chars)")
		vanityType    = flag.String("vanity-type", "prefix", "vanity match position: prefix or suffix")

		ref = flag.String("ref", "", "affiliate wallet address to link this wallet to")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fatalf("Failed to initialize logger: %v", err)
	}
	defer log.Sync()

	req := &token.Request{
		Name:                  *name,
		Symbol:                *symbol,
		Decimals:              uint8(*decimals),
		Supply:                *supply,
		Description:           *description,
		WebsiteURL:            *website,
		TelegramURL:           *telegram,
		TwitterURL:            *twitter,
		RevokeMintAuthority:   *revokeMint,
		RevokeFreezeAuthority: *revokeFreeze,
		ImmutableMetadata:     *immutable,
	}
	if *vanityPattern != "" {
		req.VanityPattern = *vanityPattern
		if *vanityType == "suffix" {
			req.VanityKind = token.PatternSuffix
		} else {
			req.VanityKind = token.PatternPrefix
		}
	}
	if err := req.Validate(); err != nil {
		fatalf("Invalid request: %v", err)
	}

	w, err := loadWallet(cfg)
	if err != nil {
		fatalf("Failed to load wallet: %v", err)
	}
	log.Info("Wallet loaded", zap.String("address", w.PublicKey.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mintKey, err := generateMintKey(ctx, req, log.Logger)
	if err != nil {
		fatalf("Mint key generation failed: %v", err)
	}
	log.Info("Mint address selected", zap.String("mint", mintKey.PublicKey().String()))

	metadataURI, err := resolveMetadataURI(ctx, cfg, req, *image, log.Logger)
	if err != nil {
		fatalf("Metadata upload failed: %v", err)
	}

	rpc := solrpc.NewClient(cfg.ProxyURL, cfg.Network, log.Logger)

	var aff *affiliate.Client
	if cfg.AffiliateAPIURL != "" {
		aff = affiliate.NewClient(cfg.AffiliateAPIURL, cfg.CommissionRate, log.Logger)
		if *ref != "" {
			refKey, err := solana.PublicKeyFromBase58(*ref)
			if err != nil {
				fatalf("Invalid affiliate address: %v", err)
			}
			aff.Link(ctx, w.PublicKey, refKey)
		}
	}

	feeReceiver, err := solana.PublicKeyFromBase58(cfg.FeeReceiver)
	if err != nil {
		fatalf("Invalid fee receiver in config: %v", err)
	}

	svcCfg := minting.Config{
		FeeReceiver:    feeReceiver,
		CreationFee:    token.FeeLamports(cfg.CreationFeeSOL),
		MaxRetries:     cfg.MaxFlowRetries,
		Network:        cfg.Network,
		ConfirmCeiling: time.Duration(cfg.ConfirmTimeoutSec) * time.Second,
	}

	var resolver minting.AffiliateResolver
	if aff != nil {
		resolver = aff
	}
	svc := minting.NewService(rpc, w, w.PublicKey, resolver, svcCfg, log.Logger)

	result, err := svc.CreateToken(ctx, req, mintKey, metadataURI)
	if err != nil {
		fatalf("Token creation failed: %v", err)
	}

	fmt.Printf("\nToken created successfully\n")
	fmt.Printf("  Mint:      %s\n", result.Mint)
	fmt.Printf("  Signature: %s\n", result.Signature)
	fmt.Printf("  Explorer:  %s\n", result.ExplorerURL)
	if result.Fees.Affiliate != nil {
		fmt.Printf("  Affiliate commission: %d lamports to %s\n",
			result.Fees.Commission, result.Fees.Affiliate)
	}
}

func loadWallet(cfg *config.Config) (*wallet.Wallet, error) {
	if cfg.WalletKey != "" {
		return wallet.NewFromBase58(cfg.WalletKey)
	}
	if cfg.WalletPath != "" {
		return wallet.NewFromFile(cfg.WalletPath)
	}
	return nil, fmt.Errorf("no wallet configured: set wallet_key or wallet_path")
}

func generateMintKey(ctx context.Context, req *token.Request, log *zap.Logger) (solana.PrivateKey, error) {
	if req.VanityPattern == "" {
		return solana.NewRandomPrivateKey()
	}

	log.Info("Searching for vanity address",
		zap.String("pattern", req.VanityPattern))
	return vanity.Search(ctx, req.VanityPattern, req.VanityKind, &vanity.Options{
		OnProgress: func(p vanity.Progress) {
			log.Info("Vanity search progress",
				zap.Uint64("attempts", p.Attempts),
				zap.Duration("elapsed", p.Elapsed))
		},
	})
}

func resolveMetadataURI(ctx context.Context, cfg *config.Config, req *token.Request, imagePath string, log *zap.Logger) (string, error) {
	if cfg.PinataJWT == "" {
		log.Warn("No IPFS credentials configured, using default metadata URI")
		return cfg.DefaultImageURI, nil
	}
	client := upload.NewClient(cfg.PinataJWT, cfg.PinataGateway, log)
	return client.UploadTokenMetadata(ctx, req, imagePath, cfg.DefaultImageURI)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
