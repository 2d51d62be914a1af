// internal/minting/service.go
package minting

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solmintlabs/solmint/internal/solrpc"
	"github.com/solmintlabs/solmint/internal/token"
)

// AffiliateResolver resolves fee splits and records earnings. Both calls are
// best-effort on the caller side: Resolve fails open to the no-affiliate
// split, RecordEarnings never surfaces an error.
type AffiliateResolver interface {
	Resolve(ctx context.Context, payer solana.PublicKey, totalFee uint64) token.FeeSplit
	RecordEarnings(ctx context.Context, affiliate solana.PublicKey, lamports uint64, signature string, user solana.PublicKey)
}

// Service drives one token creation at a time: balance check, build,
// simulate, sign, send, confirm. A second CreateToken while one is running
// fails fast with ErrSubmissionInProgress.
type Service struct {
	rpc       RPC
	signer    Signer
	payer     solana.PublicKey
	affiliate AffiliateResolver
	cfg       Config
	logger    *zap.Logger

	state atomic.Int32
}

func NewService(rpc RPC, signer Signer, payer solana.PublicKey, affiliate AffiliateResolver, cfg Config, logger *zap.Logger) *Service {
	if cfg.FeeBuffer == 0 {
		cfg.FeeBuffer = DefaultFeeBuffer
	}
	if cfg.ConfirmCeiling <= 0 {
		cfg.ConfirmCeiling = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.PollMaxInterval <= 0 {
		cfg.PollMaxInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rpc:       rpc,
		signer:    signer,
		payer:     payer,
		affiliate: affiliate,
		cfg:       cfg,
		logger:    logger.Named("minting"),
	}
}

// State reports the current flow state.
func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(st State) {
	s.state.Store(int32(st))
}

// CreateToken runs the full submission flow for one mint keypair. The mint
// private key co-signs the transaction because the flow creates the mint
// account itself. On confirmation timeout the whole flow retries with a
// fresh blockhash, up to cfg.MaxRetries extra attempts; chain rejections and
// simulation failures are terminal.
func (s *Service) CreateToken(ctx context.Context, req *token.Request, mintKey solana.PrivateKey, metadataURI string) (*Result, error) {
	if !s.begin() {
		return nil, ErrSubmissionInProgress
	}

	if err := req.Validate(); err != nil {
		s.setState(StateFailed)
		return nil, err
	}

	mint := mintKey.PublicKey()
	log := s.logger.With(
		zap.String("mint", mint.String()),
		zap.String("payer", s.payer.String()))

	fees := s.resolveFees(ctx, req)

	maxAttempts := 1 + s.cfg.MaxRetries
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Info("Retrying token creation with fresh blockhash",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts))
		}

		result, err := s.runOnce(ctx, req, mintKey, mint, metadataURI, fees, attempt, log)
		if err == nil {
			result.Attempts = attempt
			s.setState(StateConfirmed)
			s.recordEarnings(result, fees)
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrConfirmationTimeout) && attempt < maxAttempts {
			// Only a pending-forever transaction is worth a fresh attempt.
			s.setState(StateTimedOut)
			continue
		}
		break
	}
	s.setState(StateFailed)
	return nil, lastErr
}

// begin claims the flow if no submission is in flight. Terminal states left
// by an earlier flow do not block a new start.
func (s *Service) begin() bool {
	for {
		cur := State(s.state.Load())
		switch cur {
		case StateIdle, StateConfirmed, StateFailed, StateTimedOut:
			if s.state.CompareAndSwap(int32(cur), int32(StateCheckingBalance)) {
				return true
			}
		default:
			return false
		}
	}
}

// runOnce performs a single build-sign-send-confirm pass.
func (s *Service) runOnce(ctx context.Context, req *token.Request, mintKey solana.PrivateKey, mint solana.PublicKey, metadataURI string, fees token.FeeSplit, attempt int, log *zap.Logger) (*Result, error) {
	s.setState(StateCheckingBalance)

	rent, err := s.rpc.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return nil, fmt.Errorf("rent exemption lookup: %w", err)
	}

	balance, err := s.rpc.GetBalance(ctx, s.payer)
	if err != nil {
		return nil, fmt.Errorf("balance lookup: %w", err)
	}
	required := rent + fees.Total + s.cfg.FeeBuffer
	if balance < required {
		log.Warn("Balance below required amount",
			zap.Uint64("balance", balance),
			zap.Uint64("required", required))
		return nil, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, balance, required)
	}

	blockhash, lastValid, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("blockhash lookup: %w", err)
	}

	tx, err := token.Build(token.BuildParams{
		Payer:       s.payer,
		Mint:        mint,
		Request:     req,
		MetadataURI: metadataURI,
		Fees:        fees,
		FeeReceiver: s.cfg.FeeReceiver,
		Chain: token.ChainState{
			RentExemptMint:       rent,
			Blockhash:            blockhash,
			LastValidBlockHeight: lastValid,
		},
		Timestamp: time.Now(),
		Nonce:     uuid.NewString()[:8],
	})
	if err != nil {
		return nil, err
	}

	s.setState(StateSimulating)
	if err := s.rpc.SimulateTransaction(ctx, tx); err != nil {
		switch solrpc.ClassOf(err) {
		case solrpc.ClassChainRejected:
			return nil, fmt.Errorf("simulation rejected transaction: %w", err)
		default:
			// Transient or ambiguous simulation trouble is advisory; the
			// send path re-simulates via preflight anyway.
			log.Warn("Simulation inconclusive, proceeding to send", zap.Error(err))
		}
	}

	s.setState(StateAwaitingSignature)
	if err := s.signer.Sign(tx, mintKey); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	s.setState(StateSubmitting)
	sig, err := s.rpc.SendTransaction(ctx, tx)
	if err != nil {
		if solrpc.ClassOf(err) == solrpc.ClassAmbiguous {
			// "Already processed" usually means an earlier send of this
			// exact transaction landed. One status lookup settles it.
			if settled, ok := s.checkAlreadyProcessed(ctx, tx, log); ok {
				sig = settled
			} else {
				return nil, fmt.Errorf("send transaction: %w", err)
			}
		} else {
			return nil, fmt.Errorf("send transaction: %w", err)
		}
	} else {
		log.Info("Transaction submitted",
			zap.String("signature", sig.String()),
			zap.Int("attempt", attempt))

		s.setState(StateConfirming)
		if err := s.waitForConfirmation(ctx, sig); err != nil {
			return nil, err
		}
	}

	return &Result{
		Mint:        mint,
		Signature:   sig,
		ExplorerURL: s.explorerURL(mint),
		Fees:        fees,
	}, nil
}

// checkAlreadyProcessed resolves an ambiguous "already processed" send by
// looking up the transaction's own signature. A confirmed status means the
// duplicate send is a success in disguise.
func (s *Service) checkAlreadyProcessed(ctx context.Context, tx *solana.Transaction, log *zap.Logger) (solana.Signature, bool) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, false
	}
	sig := tx.Signatures[0]

	statuses, err := s.rpc.GetSignatureStatuses(ctx, sig)
	if err != nil || len(statuses) == 0 || statuses[0] == nil {
		// Lookup failed or the signature is unknown; the original send
		// error stands.
		return solana.Signature{}, false
	}
	st := statuses[0]
	if st.Err == nil && st.Confirmed() {
		log.Info("Duplicate send resolved as confirmed",
			zap.String("signature", sig.String()),
			zap.Uint64("slot", st.Slot))
		return sig, true
	}
	return solana.Signature{}, false
}

func (s *Service) resolveFees(ctx context.Context, req *token.Request) token.FeeSplit {
	if s.affiliate != nil {
		return s.affiliate.Resolve(ctx, s.payer, s.cfg.CreationFee)
	}
	return token.NewFeeSplit(s.cfg.CreationFee, nil, 0)
}

func (s *Service) recordEarnings(result *Result, fees token.FeeSplit) {
	if s.affiliate == nil || fees.Affiliate == nil || fees.Commission == 0 {
		return
	}
	// Reporting runs against a fresh context so a cancelled flow context
	// cannot lose an earned commission.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.affiliate.RecordEarnings(ctx, *fees.Affiliate, fees.Commission, result.Signature.String(), s.payer)
}

func (s *Service) explorerURL(mint solana.PublicKey) string {
	if s.cfg.Network == "" || s.cfg.Network == "mainnet-beta" {
		return fmt.Sprintf("https://explorer.solana.com/address/%s", mint)
	}
	return fmt.Sprintf("https://explorer.solana.com/address/%s?cluster=%s", mint, s.cfg.Network)
}
