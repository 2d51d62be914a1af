// internal/token/programs.go
package token

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// Program addresses and account sizes used by the builder.
var (
	TokenMetadataProgramID   = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MemoProgramID            = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

	// BurnAddress is the well-known incinerator. Setting it as metadata
	// update authority at creation time makes the metadata immutable in the
	// same transaction.
	BurnAddress = solana.MustPublicKeyFromBase58("1nc1nerator11111111111111111111111111111111")
)

// MintAccountSize is the byte size of an SPL token mint account.
const MintAccountSize = 82

// SPL token program instruction tags.
const (
	tokenInstructionSetAuthority    = 6
	tokenInstructionMintTo          = 7
	tokenInstructionInitializeMint2 = 20
)

// System program instruction tags (u32 little-endian).
const (
	systemInstructionCreateAccount = 0
	systemInstructionTransfer      = 2
)

// SPL token authority types.
const (
	AuthorityMintTokens    = 0
	AuthorityFreezeAccount = 1
)

func createAccountInstruction(payer, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) solana.Instruction {
	data := make([]byte, 4, 4+8+8+32)
	binary.LittleEndian.PutUint32(data, systemInstructionCreateAccount)
	data = appendUint64(data, lamports)
	data = appendUint64(data, space)
	data = append(data, owner.Bytes()...)

	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: newAccount, IsSigner: true, IsWritable: true},
		},
		data,
	)
}

func transferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 4, 4+8)
	binary.LittleEndian.PutUint32(data, systemInstructionTransfer)
	data = appendUint64(data, lamports)

	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		data,
	)
}

func initializeMintInstruction(mint solana.PublicKey, decimals uint8, mintAuthority, freezeAuthority solana.PublicKey) solana.Instruction {
	// InitializeMint2: tag, decimals, mint authority, COption freeze authority.
	data := make([]byte, 0, 2+32+1+32)
	data = append(data, tokenInstructionInitializeMint2, decimals)
	data = append(data, mintAuthority.Bytes()...)
	data = append(data, 1)
	data = append(data, freezeAuthority.Bytes()...)

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
		},
		data,
	)
}

func createAssociatedTokenAccountInstruction(payer, associatedAddress, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		AssociatedTokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: associatedAddress, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		[]byte{},
	)
}

func mintToInstruction(mint, destination, authority solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 1, 1+8)
	data[0] = tokenInstructionMintTo
	data = appendUint64(data, amount)

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// revokeAuthorityInstruction sets the given authority to None. Revocation is
// permanent.
func revokeAuthorityInstruction(mint, currentAuthority solana.PublicKey, authorityType uint8) solana.Instruction {
	data := []byte{tokenInstructionSetAuthority, authorityType, 0}

	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: currentAuthority, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

func memoInstruction(payer solana.PublicKey, memo string) solana.Instruction {
	return solana.NewInstruction(
		MemoProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: false},
		},
		[]byte(memo),
	)
}

// FindMetadataAddress derives the metadata PDA for a mint.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("metadata"),
			TokenMetadataProgramID.Bytes(),
			mint.Bytes(),
		},
		TokenMetadataProgramID,
	)
	return addr, err
}

func appendUint64(data []byte, v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return append(data, buf...)
}
