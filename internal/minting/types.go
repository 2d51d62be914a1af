// internal/minting/types.go
package minting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solmintlabs/solmint/internal/solrpc"
	"github.com/solmintlabs/solmint/internal/token"
)

// State is the orchestrator's position in one submission flow. Busy-ness is
// part of the state machine itself: any in-flight state rejects a new start
// synchronously, while idle and the terminal states admit one. Timed-out is
// visible between whole-flow retry attempts; an exhausted flow ends failed.
type State int32

const (
	StateIdle State = iota
	StateCheckingBalance
	StateSimulating
	StateAwaitingSignature
	StateSubmitting
	StateConfirming
	StateConfirmed
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCheckingBalance:
		return "checking-balance"
	case StateSimulating:
		return "simulating"
	case StateAwaitingSignature:
		return "awaiting-signature"
	case StateSubmitting:
		return "submitting"
	case StateConfirming:
		return "confirming"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

var (
	// ErrSubmissionInProgress rejects a second start while a flow is
	// outstanding, before any asynchronous work happens.
	ErrSubmissionInProgress = errors.New("a token creation is already in progress")

	ErrInsufficientBalance = errors.New("insufficient SOL balance")

	// ErrConfirmationTimeout means the elapsed-time ceiling passed without
	// the chain confirming or rejecting; the whole flow may retry with a
	// fresh blockhash.
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")

	// ErrPollingAborted means three consecutive polling-transport errors;
	// the endpoint may be unreachable, so polling stops early.
	ErrPollingAborted = errors.New("confirmation polling aborted after repeated transport errors")

	ErrSigningFailed = errors.New("transaction signing failed")
)

// ChainRejectionError is a terminal on-chain failure; the chain has already
// rejected the transaction, so the flow must not retry.
type ChainRejectionError struct {
	Signature solana.Signature
	Detail    string
}

func (e *ChainRejectionError) Error() string {
	return fmt.Sprintf("transaction rejected by chain: %s", e.Detail)
}

// RPC is the secure client surface the orchestrator drives. Satisfied by
// *solrpc.Client.
type RPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) error
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) ([]*solrpc.SignatureStatus, error)
}

// Signer is the wallet capability: sign the transaction with the payer key
// plus the mint keypair. Satisfied by *wallet.Wallet.
type Signer interface {
	Sign(tx *solana.Transaction, extra ...solana.PrivateKey) error
}

// Config tunes one Service instance.
type Config struct {
	FeeReceiver solana.PublicKey
	CreationFee uint64
	// FeeBuffer is the estimated network fee headroom on top of rent and
	// the creation fee during the balance check.
	FeeBuffer uint64
	// MaxRetries bounds whole-flow retries after confirmation timeouts.
	MaxRetries int
	// Network names the cluster for explorer links.
	Network string

	ConfirmCeiling  time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
}

// DefaultFeeBuffer matches the original product's headroom estimate.
const DefaultFeeBuffer = 5_000_000

// Result is the user-facing outcome of a confirmed creation.
type Result struct {
	Mint        solana.PublicKey
	Signature   solana.Signature
	ExplorerURL string
	Fees        token.FeeSplit
	Attempts    int
}
