// Package bubblegum provides instruction builders and the metadata
// codec for the mpl-bubblegum compressed NFT program.
package bubblegum

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"

	"github.com/metaplex-go/bubblegum/pkg/solana"
	"github.com/metaplex-go/bubblegum/pkg/solana/system"
)

// ProgramKey is the address of the mpl-bubblegum program.
//
// Current key: BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY
var ProgramKey = mustKey("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")

// CompressionProgramKey is the SPL account compression program that owns
// the concurrent merkle tree accounts.
//
// Current key: cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK
var CompressionProgramKey = mustKey("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")

// NoopProgramKey is the SPL noop program the compression program logs
// change events through.
//
// Current key: noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV
var NoopProgramKey = mustKey("noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV")

func mustKey(v string) ed25519.PublicKey {
	raw, err := base58.Decode(v)
	if err != nil {
		panic(err)
	}

	return raw
}

// Anchor instruction discriminators are the first 8 bytes of
// sha256("global:<method>").
func discriminator(method string) []byte {
	h := sha256.Sum256([]byte("global:" + method))
	return h[:8]
}

var (
	createTreeDiscriminator = discriminator("create_tree")
	mintV1Discriminator     = discriminator("mint_v1")
	transferDiscriminator   = discriminator("transfer")
)

// FindTreeConfigAddress derives the tree config PDA for a merkle tree.
func FindTreeConfigAddress(merkleTree ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(ProgramKey, merkleTree)
}

// MerkleTreeAccountSize returns the byte size of a concurrent merkle
// tree account (no canopy) for the given parameters. The layout is the
// v1 header followed by the tree body and the rightmost proof.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/account-compression/programs/account-compression/src/state/concurrent_merkle_tree_header.rs
func MerkleTreeAccountSize(maxDepth, maxBufferSize uint32) uint64 {
	const headerSize = 1 + 1 + 4 + 4 + 32 + 8 + 6

	changeLogSize := uint64(maxBufferSize) * uint64(40+32*maxDepth)
	rightmostProofSize := uint64(40 + 32*maxDepth)

	return headerSize + 24 + changeLogSize + rightmostProofSize
}

// AllocTree allocates the merkle tree account, owned by the compression
// program. It must be paired with CreateTree in the same transaction,
// and the merkle tree keypair must sign.
func AllocTree(payer, merkleTree ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	return system.CreateAccount(payer, merkleTree, CompressionProgramKey, lamports, size)
}

// CreateTree initializes the tree config for a new compressed NFT
// merkle tree.
func CreateTree(treeConfig, merkleTree, payer, treeCreator ed25519.PublicKey, maxDepth, maxBufferSize uint32) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` Tree config PDA, seeds = [merkle_tree]
	//   1. `[writable]` The merkle tree account
	//   2. `[signer]` Payer
	//   3. `[signer]` Tree creator
	//   4. `[]` SPL noop program
	//   5. `[]` SPL account compression program
	//   6. `[]` System program
	data := make([]byte, 0, 8+4+4+1)
	data = append(data, createTreeDiscriminator...)
	data = binary.LittleEndian.AppendUint32(data, maxDepth)
	data = binary.LittleEndian.AppendUint32(data, maxBufferSize)
	data = append(data, 0) // Option<public> = None

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(treeConfig, false),
		solana.NewAccountMeta(merkleTree, false),
		solana.NewAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(treeCreator, true),
		solana.NewReadonlyAccountMeta(NoopProgramKey, false),
		solana.NewReadonlyAccountMeta(CompressionProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	)
}

// MintV1 mints a compressed NFT into the tree. The tree delegate
// authorizes the mint; for trees without a separate delegate this is
// the tree creator.
func MintV1(treeConfig, leafOwner, leafDelegate, merkleTree, payer, treeDelegate ed25519.PublicKey, metadata Metadata) (solana.Instruction, error) {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` Tree config PDA
	//   1. `[]` Leaf owner
	//   2. `[]` Leaf delegate
	//   3. `[writable]` The merkle tree account
	//   4. `[signer]` Payer
	//   5. `[signer]` Tree delegate
	//   6. `[]` SPL noop program
	//   7. `[]` SPL account compression program
	//   8. `[]` System program
	metadataBytes, err := metadata.Marshal()
	if err != nil {
		return solana.Instruction{}, err
	}

	data := make([]byte, 0, 8+len(metadataBytes))
	data = append(data, mintV1Discriminator...)
	data = append(data, metadataBytes...)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(treeConfig, false),
		solana.NewReadonlyAccountMeta(leafOwner, false),
		solana.NewReadonlyAccountMeta(leafDelegate, false),
		solana.NewAccountMeta(merkleTree, false),
		solana.NewReadonlyAccountMeta(payer, true),
		solana.NewReadonlyAccountMeta(treeDelegate, true),
		solana.NewReadonlyAccountMeta(NoopProgramKey, false),
		solana.NewReadonlyAccountMeta(CompressionProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	), nil
}

// LeafProof authenticates the current state of a leaf. All values must
// be the leaf's real on chain values, typically served by an indexer;
// the program rejects zero filled placeholders.
type LeafProof struct {
	Root        [32]byte
	DataHash    [32]byte
	CreatorHash [32]byte
	Nonce       uint64
	Index       uint32

	// Proof is the merkle path from the leaf to the root, passed as
	// remaining accounts. May be shortened if the tree has a canopy.
	Proof []ed25519.PublicKey
}

// Transfer moves a leaf to a new owner. The current leaf owner
// authorizes the transfer and must sign the enclosing transaction.
func Transfer(treeConfig, leafOwner, leafDelegate, newLeafOwner, merkleTree ed25519.PublicKey, proof LeafProof) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[]` Tree config PDA
	//   1. `[signer]` Current leaf owner
	//   2. `[]` Leaf delegate
	//   3. `[]` New leaf owner
	//   4. `[writable]` The merkle tree account
	//   5. `[]` SPL noop program
	//   6. `[]` SPL account compression program
	//   7. `[]` System program
	//   8. ..8+N. `[]` Merkle proof path
	data := make([]byte, 0, 8+3*32+8+4)
	data = append(data, transferDiscriminator...)
	data = append(data, proof.Root[:]...)
	data = append(data, proof.DataHash[:]...)
	data = append(data, proof.CreatorHash[:]...)
	data = binary.LittleEndian.AppendUint64(data, proof.Nonce)
	data = binary.LittleEndian.AppendUint32(data, proof.Index)

	accounts := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(treeConfig, false),
		solana.NewReadonlyAccountMeta(leafOwner, true),
		solana.NewReadonlyAccountMeta(leafDelegate, false),
		solana.NewReadonlyAccountMeta(newLeafOwner, false),
		solana.NewAccountMeta(merkleTree, false),
		solana.NewReadonlyAccountMeta(NoopProgramKey, false),
		solana.NewReadonlyAccountMeta(CompressionProgramKey, false),
		solana.NewReadonlyAccountMeta(system.ProgramKey[:], false),
	}
	for _, p := range proof.Proof {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(p, false))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}
