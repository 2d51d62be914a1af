// internal/token/metadata.go
package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// CreateMetadataAccountV3 instruction discriminator in the Metaplex token
// metadata program.
const metadataInstructionCreateV3 = 33

// Creator mirrors the Metaplex creator record.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Collection mirrors the Metaplex collection reference.
type Collection struct {
	Verified bool
	Key      solana.PublicKey
}

// Uses mirrors the Metaplex uses record.
type Uses struct {
	UseMethod uint8
	Remaining uint64
	Total     uint64
}

// DataV2 is the on-chain metadata body. Option fields serialize as borsh
// Option via pointers.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             *[]Creator
	Collection           *Collection
	Uses                 *Uses
}

type collectionDetailsV1 struct {
	Variant uint8
	Size    uint64
}

type createMetadataAccountArgsV3 struct {
	Data              DataV2
	IsMutable         bool
	CollectionDetails *collectionDetailsV1
}

// createMetadataInstruction builds the CreateMetadataAccountV3 instruction.
// When immutable metadata is requested the update authority is the burn
// address and isMutable is false, fixed at creation time so no second
// transaction is needed.
func createMetadataInstruction(metadata, mint, mintAuthority, payer, updateAuthority solana.PublicKey, data DataV2, isMutable bool) (solana.Instruction, error) {
	args := createMetadataAccountArgsV3{
		Data:      data,
		IsMutable: isMutable,
	}
	serialized, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata args: %w", err)
	}

	payload := make([]byte, 0, 1+len(serialized))
	payload = append(payload, metadataInstructionCreateV3)
	payload = append(payload, serialized...)

	return solana.NewInstruction(
		TokenMetadataProgramID,
		[]*solana.AccountMeta{
			{PublicKey: metadata, IsSigner: false, IsWritable: true},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: mintAuthority, IsSigner: true, IsWritable: false},
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: updateAuthority, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		},
		payload,
	), nil
}
