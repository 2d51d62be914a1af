// internal/minting/monitor.go
package minting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

const maxConsecutiveTransportErrors = 3

// waitForConfirmation polls signature status with jittered exponential
// backoff until the transaction is confirmed, rejected on-chain, the ceiling
// elapses, or the endpoint proves unreachable.
func (s *Service) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.PollInterval
	b.MaxInterval = s.cfg.PollMaxInterval
	b.RandomizationFactor = 0.3
	b.Multiplier = 1.5
	b.MaxElapsedTime = s.cfg.ConfirmCeiling
	b.Reset()

	var (
		polls           int
		transportErrors int
	)

	op := func() error {
		polls++

		statuses, err := s.rpc.GetSignatureStatuses(ctx, sig)
		if err != nil {
			transportErrors++
			s.logger.Warn("Signature status lookup failed",
				zap.Int("poll", polls),
				zap.Int("consecutive_errors", transportErrors),
				zap.Error(err))
			if transportErrors >= maxConsecutiveTransportErrors {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrPollingAborted, err))
			}
			return err
		}
		transportErrors = 0

		if len(statuses) == 0 || statuses[0] == nil {
			// Not yet visible to the cluster; keep polling.
			return fmt.Errorf("transaction %s not yet processed", sig)
		}

		st := statuses[0]
		if st.Err != nil {
			return backoff.Permanent(&ChainRejectionError{
				Signature: sig,
				Detail:    fmt.Sprintf("%v", st.Err),
			})
		}
		if st.Confirmed() {
			s.logger.Info("Transaction confirmed",
				zap.String("signature", sig.String()),
				zap.Uint64("slot", st.Slot),
				zap.Int("polls", polls))
			return nil
		}
		return fmt.Errorf("transaction %s still %s", sig, st.ConfirmationStatus)
	}

	start := time.Now()
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err != nil {
		var rejection *ChainRejectionError
		switch {
		case errors.As(err, &rejection):
			return rejection
		case errors.Is(err, ErrPollingAborted):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			// Backoff gave up on elapsed time with the status still pending.
			s.logger.Warn("Confirmation window elapsed",
				zap.String("signature", sig.String()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Int("polls", polls))
			return ErrConfirmationTimeout
		}
	}
	return nil
}
