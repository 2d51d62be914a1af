// internal/vanity/vanity.go
package vanity

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/solmintlabs/solmint/internal/token"
)

// base58Alphabet is the character set a public key can contain. Patterns
// with characters outside it (0, O, I, l) would search forever.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// progressStride is how many attempts each worker makes between
// cancellation checks and progress reports.
const progressStride = 100

var (
	ErrEmptyPattern      = errors.New("vanity pattern is empty")
	ErrPatternTooLong    = fmt.Errorf("vanity pattern cannot exceed %d characters", token.MaxVanityPattern)
	ErrImpossiblePattern = errors.New("vanity pattern contains characters that never occur in addresses")
)

// Progress reports search effort at each stride boundary.
type Progress struct {
	Attempts uint64
	Elapsed  time.Duration
}

// Options tune the search. Zero values mean one worker per CPU and no
// progress reporting.
type Options struct {
	Workers    int
	OnProgress func(Progress)
}

// ValidatePattern rejects patterns before the search starts.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmptyPattern
	}
	if len(pattern) > token.MaxVanityPattern {
		return ErrPatternTooLong
	}
	for _, r := range pattern {
		if !strings.ContainsRune(base58Alphabet, r) {
			return ErrImpossiblePattern
		}
	}
	return nil
}

// Search brute-forces keypairs until the base58 public key matches the
// pattern at the requested end, the context is cancelled, or key generation
// fails. Expected attempts grow as 58^len(pattern); callers keep patterns
// short. The pattern match is case sensitive.
func Search(ctx context.Context, pattern string, kind token.PatternKind, opts *Options) (solana.PrivateKey, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if kind != token.PatternPrefix && kind != token.PatternSuffix {
		return nil, fmt.Errorf("invalid pattern kind %q", kind)
	}
	if opts == nil {
		opts = &Options{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		attempts   atomic.Uint64
		found      solana.PrivateKey
		foundOnce  sync.Once
		start      = time.Now()
		progressMu sync.Mutex
	)

	g, searchCtx := errgroup.WithContext(ctx)
	searchCtx, cancel := context.WithCancel(searchCtx)
	defer cancel()

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				for n := 0; n < progressStride; n++ {
					key, err := solana.NewRandomPrivateKey()
					if err != nil {
						return fmt.Errorf("keypair generation failed: %w", err)
					}
					if matches(key.PublicKey().String(), pattern, kind) {
						foundOnce.Do(func() {
							found = key
							cancel()
						})
						return nil
					}
				}

				total := attempts.Add(progressStride)
				if opts.OnProgress != nil {
					progressMu.Lock()
					opts.OnProgress(Progress{Attempts: total, Elapsed: time.Since(start)})
					progressMu.Unlock()
				}

				select {
				case <-searchCtx.Done():
					return searchCtx.Err()
				default:
				}
			}
		})
	}

	err := g.Wait()
	if found != nil {
		return found, nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}
	// No match and no worker error: the caller's context ended the search.
	return nil, ctx.Err()
}

func matches(address, pattern string, kind token.PatternKind) bool {
	if kind == token.PatternSuffix {
		return strings.HasSuffix(address, pattern)
	}
	return strings.HasPrefix(address, pattern)
}
