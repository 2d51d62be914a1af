// internal/token/request.go
package token

import (
	"errors"
	"fmt"
	"math"
	"regexp"
)

// Token creation limits.
const (
	MaxNameLength        = 32
	MaxSymbolLength      = 10
	MaxDecimals          = 9
	MaxInitialSupply     = 1_000_000_000_000
	MaxDescriptionLength = 1000
	MaxVanityPattern     = 3
)

var (
	ErrNameRequired   = errors.New("token name is required")
	ErrSymbolRequired = errors.New("token symbol is required")
	ErrSupplyOverflow = errors.New("initial supply overflows at the requested decimals")
)

var (
	symbolPattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)
	vanityPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// PatternKind selects which end of the base58 address a vanity pattern
// must match.
type PatternKind string

const (
	PatternPrefix PatternKind = "prefix"
	PatternSuffix PatternKind = "suffix"
)

// Request is the user's creation intent. Immutable once handed to the
// builder; one Request drives one submission flow.
type Request struct {
	Name        string
	Symbol      string
	Decimals    uint8
	Supply      uint64
	Description string

	WebsiteURL  string
	TelegramURL string
	TwitterURL  string

	RevokeMintAuthority   bool
	RevokeFreezeAuthority bool
	ImmutableMetadata     bool

	VanityPattern string
	VanityKind    PatternKind
}

// Validate rejects malformed requests before any network activity.
func (r *Request) Validate() error {
	if r.Name == "" {
		return ErrNameRequired
	}
	if len(r.Name) > MaxNameLength {
		return fmt.Errorf("token name must be at most %d characters", MaxNameLength)
	}
	if r.Symbol == "" {
		return ErrSymbolRequired
	}
	if len(r.Symbol) > MaxSymbolLength {
		return fmt.Errorf("token symbol must be at most %d characters", MaxSymbolLength)
	}
	if !symbolPattern.MatchString(r.Symbol) {
		return errors.New("token symbol can only contain letters, numbers, hyphens, and underscores")
	}
	if r.Decimals > MaxDecimals {
		return fmt.Errorf("decimals must be between 0 and %d", MaxDecimals)
	}
	if r.Supply > MaxInitialSupply {
		return fmt.Errorf("initial supply cannot exceed %d", MaxInitialSupply)
	}
	if len(r.Description) > MaxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	if _, err := r.RawSupply(); err != nil {
		return err
	}
	if r.VanityPattern != "" {
		if len(r.VanityPattern) > MaxVanityPattern {
			return fmt.Errorf("vanity pattern cannot exceed %d characters", MaxVanityPattern)
		}
		if !vanityPattern.MatchString(r.VanityPattern) {
			return errors.New("vanity pattern can only contain letters and numbers")
		}
		if r.VanityKind != PatternPrefix && r.VanityKind != PatternSuffix {
			return errors.New("vanity pattern kind must be prefix or suffix")
		}
	}
	return nil
}

// RawSupply scales the supply by 10^decimals into the on-chain amount,
// guarding against uint64 overflow.
func (r *Request) RawSupply() (uint64, error) {
	if r.Supply == 0 {
		return 0, nil
	}
	scale := uint64(math.Pow10(int(r.Decimals)))
	if r.Supply > math.MaxUint64/scale {
		return 0, ErrSupplyOverflow
	}
	return r.Supply * scale, nil
}
