// internal/affiliate/client.go
package affiliate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/token"
)

const requestTimeout = 5 * time.Second

// Client talks to the affiliate bookkeeping API. Every call is fail-open:
// the affiliate program is a marketing layer on top of the core
// transaction, so a lookup failure must never block token creation.
type Client struct {
	baseURL string
	rate    float64
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, commissionRate float64, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		rate:    commissionRate,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger.Named("affiliate"),
	}
}

type referralWallet struct {
	WalletAddress string `json:"walletAddress"`
}

type referralResponse struct {
	AffiliateWallet *referralWallet `json:"affiliateWallet"`
}

// Resolve looks up the payer's referrer and computes the fee split. Absence
// of a relationship is a normal outcome; any failure degrades to a zero
// commission.
func (c *Client) Resolve(ctx context.Context, payer solana.PublicKey, totalFee uint64) token.FeeSplit {
	url := fmt.Sprintf("%s/affiliate/%s/referral", c.baseURL, payer.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return token.NewFeeSplit(totalFee, nil, 0)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Affiliate lookup failed, proceeding without commission", zap.Error(err))
		return token.NewFeeSplit(totalFee, nil, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return token.NewFeeSplit(totalFee, nil, 0)
	}

	var body referralResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("Invalid affiliate lookup response", zap.Error(err))
		return token.NewFeeSplit(totalFee, nil, 0)
	}
	if body.AffiliateWallet == nil {
		return token.NewFeeSplit(totalFee, nil, 0)
	}

	affiliateKey, err := solana.PublicKeyFromBase58(body.AffiliateWallet.WalletAddress)
	if err != nil {
		c.logger.Warn("Affiliate lookup returned invalid wallet address",
			zap.String("address", body.AffiliateWallet.WalletAddress))
		return token.NewFeeSplit(totalFee, nil, 0)
	}

	c.logger.Info("Affiliate relationship found",
		zap.String("payer", payer.String()),
		zap.String("affiliate", affiliateKey.String()))
	return token.NewFeeSplit(totalFee, &affiliateKey, c.rate)
}

// Link records a referral relationship, best-effort.
func (c *Client) Link(ctx context.Context, user, affiliate solana.PublicKey) {
	payload := map[string]string{
		"userWallet":      user.String(),
		"affiliateWallet": affiliate.String(),
	}
	if err := c.post(ctx, c.baseURL+"/affiliate/link", payload); err != nil {
		c.logger.Warn("Failed to create affiliate relationship", zap.Error(err))
	}
}

// RecordEarnings reports a paid commission after a confirmed transaction.
// Fire-and-forget: the on-chain transaction has already landed; a recording
// failure is logged and dropped.
func (c *Client) RecordEarnings(ctx context.Context, affiliate solana.PublicKey, lamports uint64, signature string, user solana.PublicKey) {
	payload := map[string]interface{}{
		"amount":        float64(lamports) / float64(solana.LAMPORTS_PER_SOL),
		"transactionId": signature,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"userWallet":    user.String(),
	}
	url := fmt.Sprintf("%s/affiliate/%s/earnings", c.baseURL, affiliate.String())
	if err := c.post(ctx, url, payload); err != nil {
		c.logger.Warn("Failed to record affiliate earnings",
			zap.String("signature", signature),
			zap.Error(err))
	}
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("affiliate API returned status %d", resp.StatusCode)
	}
	return nil
}
