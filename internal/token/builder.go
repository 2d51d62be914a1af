// internal/token/builder.go
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// maxTransactionSize is the network's hard ceiling on a serialized
// transaction (one IPv6 MTU packet).
const maxTransactionSize = 1232

// ErrTransactionTooLarge is returned when the assembled transaction would
// exceed the wire ceiling; it is detected locally, never submitted.
var ErrTransactionTooLarge = errors.New("transaction exceeds maximum serialized size")

// ChainState is the freshly fetched chain context one build consumes. A new
// build needs a new ChainState; blockhashes expire.
type ChainState struct {
	RentExemptMint       uint64
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// BuildParams carries everything the builder needs. The builder itself is
// pure: same params, same instruction list.
type BuildParams struct {
	Payer       solana.PublicKey
	Mint        solana.PublicKey
	Request     *Request
	MetadataURI string
	Fees        FeeSplit
	FeeReceiver solana.PublicKey
	Chain       ChainState

	// Memo uniqueness inputs, supplied by the caller so builds stay
	// deterministic under test.
	Timestamp time.Time
	Nonce     string
}

// BuildInstructions assembles the ordered instruction list. The order is
// fixed: each instruction depends on accounts created by an earlier one.
func BuildInstructions(p BuildParams) ([]solana.Instruction, error) {
	if err := p.Request.Validate(); err != nil {
		return nil, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(p.Payer, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated token account: %w", err)
	}
	metadataAddr, err := FindMetadataAddress(p.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive metadata address: %w", err)
	}

	instructions := []solana.Instruction{
		createAccountInstruction(p.Payer, p.Mint, p.Chain.RentExemptMint, MintAccountSize, solana.TokenProgramID),
	}

	if p.Fees.Affiliate != nil && p.Fees.Commission > 0 {
		instructions = append(instructions,
			transferInstruction(p.Payer, p.FeeReceiver, p.Fees.Receiver),
			transferInstruction(p.Payer, *p.Fees.Affiliate, p.Fees.Commission),
		)
	} else {
		instructions = append(instructions,
			transferInstruction(p.Payer, p.FeeReceiver, p.Fees.Total),
		)
	}

	instructions = append(instructions,
		initializeMintInstruction(p.Mint, p.Request.Decimals, p.Payer, p.Payer),
		createAssociatedTokenAccountInstruction(p.Payer, ata, p.Payer, p.Mint),
	)

	updateAuthority := p.Payer
	if p.Request.ImmutableMetadata {
		updateAuthority = BurnAddress
	}
	metadataIx, err := createMetadataInstruction(
		metadataAddr, p.Mint, p.Payer, p.Payer, updateAuthority,
		DataV2{
			Name:   p.Request.Name,
			Symbol: p.Request.Symbol,
			URI:    p.MetadataURI,
		},
		!p.Request.ImmutableMetadata,
	)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, metadataIx)

	rawSupply, err := p.Request.RawSupply()
	if err != nil {
		return nil, err
	}
	if rawSupply > 0 {
		instructions = append(instructions, mintToInstruction(p.Mint, ata, p.Payer, rawSupply))
	}
	if p.Request.RevokeMintAuthority {
		instructions = append(instructions, revokeAuthorityInstruction(p.Mint, p.Payer, AuthorityMintTokens))
	}
	if p.Request.RevokeFreezeAuthority {
		instructions = append(instructions, revokeAuthorityInstruction(p.Mint, p.Payer, AuthorityFreezeAccount))
	}

	instructions = append(instructions, memoInstruction(p.Payer, uniquenessMemo(p)))
	return instructions, nil
}

// Build assembles the transaction with the payer and fresh blockhash
// attached, failing fast if the serialized size would exceed the network
// ceiling.
func Build(p BuildParams) (*solana.Transaction, error) {
	instructions, err := BuildInstructions(p)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(
		instructions,
		p.Chain.Blockhash,
		solana.TransactionPayer(p.Payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	msgBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction message: %w", err)
	}
	// Compact signature count prefix plus one 64-byte signature per signer.
	size := 1 + 64*int(tx.Message.Header.NumRequiredSignatures) + len(msgBytes)
	if size > maxTransactionSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTransactionTooLarge, size, maxTransactionSize)
	}

	return tx, nil
}

// uniquenessMemo guarantees a distinct transaction signature even when all
// semantic instructions are identical to a prior attempt, preventing
// duplicate-signature rejection on retry.
func uniquenessMemo(p BuildParams) string {
	mintStr := p.Mint.String()
	payerStr := p.Payer.String()
	return fmt.Sprintf("solmint:%d:%s:%s:%s",
		p.Timestamp.UnixMilli(), p.Nonce, mintStr[:8], payerStr[:8])
}
