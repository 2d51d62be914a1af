// internal/solrpc/client.go
package solrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const (
	networkHeader  = "x-solana-network"
	requestTimeout = 75 * time.Second

	// Preflight retry counts for the two send phases.
	sendRetriesPreflight = 3
	sendRetriesBypass    = 5
)

// Client is the typed facade the pipeline uses instead of talking to a node
// directly. Every call goes through the fallback proxy, which handles
// provider selection and failover.
type Client struct {
	proxyURL string
	network  string
	http     *http.Client
	logger   *zap.Logger
}

func NewClient(proxyURL, network string, logger *zap.Logger) *Client {
	return &Client{
		proxyURL: proxyURL,
		network:  network,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger.Named("rpc-client"),
	}
}

type rpcRequest struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

type rpcErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
}

type proxyErrorBody struct {
	Error              string   `json:"error"`
	ProvidersAttempted []string `json:"providersAttempted,omitempty"`
}

// Call forwards one RPC method through the proxy and decodes the result into
// out. Errors come back already classified.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(networkHeader, c.network)

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Class: ClassTransient, Method: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Class: ClassTransient, Method: method, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return c.proxyError(method, resp.StatusCode, raw)
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &Error{Class: ClassTransient, Method: method, Err: fmt.Errorf("invalid RPC response: %w", err)}
	}
	if envelope.Error != nil {
		return classify(method, envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return &Error{Class: ClassTransient, Method: method, Err: fmt.Errorf("invalid RPC result: %w", err)}
	}
	return nil
}

func (c *Client) proxyError(method string, status int, raw []byte) error {
	var body proxyErrorBody
	_ = json.Unmarshal(raw, &body)

	e := &Error{Class: ClassTransient, Method: method, Code: status, Message: body.Error}
	switch status {
	case http.StatusRequestTimeout:
		e.Err = ErrTimeout
	case http.StatusTooManyRequests:
		e.Err = ErrRateLimit
	case http.StatusBadGateway:
		e.Err = fmt.Errorf("%w (attempted: %v)", ErrProvidersExhausted, body.ProvidersAttempted)
	case http.StatusBadRequest:
		// Allow-list or network rejection; retrying cannot help.
		e.Class = ClassChainRejected
		e.Err = fmt.Errorf("proxy rejected request: %s", body.Error)
	default:
		e.Err = fmt.Errorf("proxy returned status %d: %s", status, body.Error)
	}
	return e
}

// valueResult is the {context, value} envelope most account queries use.
type valueResult[T any] struct {
	Value T `json:"value"`
}

type blockhashValue struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type simulationValue struct {
	Err  interface{} `json:"err"`
	Logs []string    `json:"logs"`
}

// SignatureStatus mirrors one entry of a getSignatureStatuses response.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// Confirmed reports whether the status has reached confirmed or finalized
// commitment without a chain error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// GetBalance returns the lamport balance of an account.
func (c *Client) GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var result valueResult[uint64]
	err := c.Call(ctx, "getBalance", []interface{}{account.String()}, &result)
	return result.Value, err
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an
// account of the given size.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error) {
	var lamports uint64
	err := c.Call(ctx, "getMinimumBalanceForRentExemption", []interface{}{space}, &lamports)
	return lamports, err
}

// GetLatestBlockhash returns a fresh blockhash and its last valid block
// height at confirmed commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	var result valueResult[blockhashValue]
	params := []interface{}{map[string]string{"commitment": "confirmed"}}
	if err := c.Call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return solana.Hash{}, 0, err
	}
	hash, err := solana.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, 0, &Error{Class: ClassTransient, Method: "getLatestBlockhash", Err: err}
	}
	return hash, result.Value.LastValidBlockHeight, nil
}

// SimulateTransaction dry-runs the transaction, which may still be unsigned.
// A non-nil simulation err is reported as chain-rejected, with program logs
// in the message.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) error {
	encoded, err := encodeForSimulation(tx)
	if err != nil {
		return err
	}
	var result valueResult[simulationValue]
	params := []interface{}{encoded, map[string]string{"encoding": "base64", "commitment": "confirmed"}}
	if err := c.Call(ctx, "simulateTransaction", params, &result); err != nil {
		return err
	}
	if result.Value.Err != nil {
		return &Error{
			Class:   ClassChainRejected,
			Method:  "simulateTransaction",
			Message: fmt.Sprintf("simulation error %v, logs: %v", result.Value.Err, result.Value.Logs),
		}
	}
	return nil
}

// SendTransaction submits the signed transaction with preflight simulation
// enabled. If the failure classifies as simulation-only, it resends exactly
// once with preflight skipped and a higher retry count; preflight can
// produce false negatives on transient state, e.g. a blockhash that is valid
// by send time but was momentarily stale at simulate time.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := c.send(ctx, encoded, false, sendRetriesPreflight)
	if err != nil && ClassOf(err) == ClassSimulationOnly {
		c.logger.Warn("Preflight-only failure, resending without simulation", zap.Error(err))
		return c.send(ctx, encoded, true, sendRetriesBypass)
	}
	return sig, err
}

func (c *Client) send(ctx context.Context, encodedTx string, skipPreflight bool, maxRetries int) (solana.Signature, error) {
	params := []interface{}{encodedTx, map[string]interface{}{
		"encoding":            "base64",
		"skipPreflight":       skipPreflight,
		"preflightCommitment": "confirmed",
		"maxRetries":          maxRetries,
	}}
	var sigStr string
	if err := c.Call(ctx, "sendTransaction", params, &sigStr); err != nil {
		return solana.Signature{}, err
	}
	sig, err := solana.SignatureFromBase58(sigStr)
	if err != nil {
		return solana.Signature{}, &Error{Class: ClassTransient, Method: "sendTransaction", Err: err}
	}
	return sig, nil
}

// GetSignatureStatuses returns the status slice for the given signatures;
// entries are nil while the chain has not observed the signature.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]*SignatureStatus, error) {
	sigStrs := make([]string, len(signatures))
	for i, s := range signatures {
		sigStrs[i] = s.String()
	}
	var result valueResult[[]*SignatureStatus]
	params := []interface{}{sigStrs, map[string]bool{"searchTransactionHistory": true}}
	if err := c.Call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// encodeForSimulation pads the signature list to the count the message header
// demands. The node sanitizes the decoded transaction and rejects one with
// fewer signatures than required, even for a dry run with sigVerify off.
func encodeForSimulation(tx *solana.Transaction) (string, error) {
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) >= required {
		return encodeTransaction(tx)
	}
	padded := *tx
	padded.Signatures = make([]solana.Signature, required)
	copy(padded.Signatures, tx.Signatures)
	return encodeTransaction(&padded)
}
