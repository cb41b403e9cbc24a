package bubblegum

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaplex-go/bubblegum/pkg/solana/system"
)

func TestProgramKeys(t *testing.T) {
	assert.Equal(t, "BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY", base58.Encode(ProgramKey))
	assert.Equal(t, "cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK", base58.Encode(CompressionProgramKey))
	assert.Equal(t, "noopb9bkMVfRPU8AsbpTUg8AQkHtKwMYZiFUjNRtMmV", base58.Encode(NoopProgramKey))
}

func TestDiscriminators(t *testing.T) {
	for method, actual := range map[string][]byte{
		"create_tree": createTreeDiscriminator,
		"mint_v1":     mintV1Discriminator,
		"transfer":    transferDiscriminator,
	} {
		h := sha256.Sum256([]byte("global:" + method))
		require.Len(t, actual, 8)
		assert.Equal(t, h[:8], actual, method)
	}
}

func TestFindTreeConfigAddress(t *testing.T) {
	merkleTree := testKey(t)

	a, err := FindTreeConfigAddress(merkleTree)
	require.NoError(t, err)
	b, err := FindTreeConfigAddress(merkleTree)
	require.NoError(t, err)

	// Derivation is deterministic, and distinct from the tree itself.
	assert.EqualValues(t, a, b)
	assert.NotEqual(t, []byte(merkleTree), []byte(a))
}

func TestMerkleTreeAccountSize(t *testing.T) {
	// depth 14, buffer 64: 56 + 24 + 64*(40+32*14) + (40+32*14)
	assert.EqualValues(t, 56+24+64*488+488, MerkleTreeAccountSize(14, 64))

	// Minimal tree.
	assert.EqualValues(t, 56+24+8*(40+32*3)+(40+32*3), MerkleTreeAccountSize(3, 8))
}

func TestAllocTree(t *testing.T) {
	payer := testKey(t)
	merkleTree := testKey(t)

	ix := AllocTree(payer, merkleTree, 1000, 2000)

	assert.Equal(t, system.ProgramKey[:], []byte(ix.Program))
	require.Len(t, ix.Accounts, 2)

	// Both the funder and the new account sign a CreateAccount.
	for i, expected := range []ed25519.PublicKey{payer, merkleTree} {
		assert.Equal(t, expected, ix.Accounts[i].PublicKey)
		assert.True(t, ix.Accounts[i].IsSigner)
		assert.True(t, ix.Accounts[i].IsWritable)
	}

	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(ix.Data))
	assert.EqualValues(t, 1000, binary.LittleEndian.Uint64(ix.Data[4:]))
	assert.EqualValues(t, 2000, binary.LittleEndian.Uint64(ix.Data[12:]))
	assert.Equal(t, []byte(CompressionProgramKey), ix.Data[20:])
}

func TestCreateTree(t *testing.T) {
	merkleTree := testKey(t)
	payer := testKey(t)
	treeCreator := testKey(t)

	treeConfig, err := FindTreeConfigAddress(merkleTree)
	require.NoError(t, err)

	ix := CreateTree(treeConfig, merkleTree, payer, treeCreator, 14, 64)

	assert.Equal(t, ProgramKey, ix.Program)
	require.Len(t, ix.Accounts, 7)

	assert.Equal(t, treeConfig, ix.Accounts[0].PublicKey)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.False(t, ix.Accounts[0].IsSigner)

	assert.Equal(t, merkleTree, ix.Accounts[1].PublicKey)
	assert.True(t, ix.Accounts[1].IsWritable)

	assert.Equal(t, payer, ix.Accounts[2].PublicKey)
	assert.True(t, ix.Accounts[2].IsSigner)

	assert.Equal(t, treeCreator, ix.Accounts[3].PublicKey)
	assert.True(t, ix.Accounts[3].IsSigner)
	assert.False(t, ix.Accounts[3].IsWritable)

	assert.Equal(t, NoopProgramKey, ix.Accounts[4].PublicKey)
	assert.Equal(t, CompressionProgramKey, ix.Accounts[5].PublicKey)
	assert.Equal(t, system.ProgramKey[:], []byte(ix.Accounts[6].PublicKey))

	require.Len(t, ix.Data, 8+4+4+1)
	assert.Equal(t, createTreeDiscriminator, ix.Data[:8])
	assert.EqualValues(t, 14, binary.LittleEndian.Uint32(ix.Data[8:]))
	assert.EqualValues(t, 64, binary.LittleEndian.Uint32(ix.Data[12:]))
	assert.Equal(t, byte(0), ix.Data[16])
}

func TestMintV1(t *testing.T) {
	merkleTree := testKey(t)
	leafOwner := testKey(t)
	leafDelegate := testKey(t)
	payer := testKey(t)

	treeConfig, err := FindTreeConfigAddress(merkleTree)
	require.NoError(t, err)

	metadata := Metadata{
		Name:   "Test NFT",
		Symbol: "TNFT",
		URI:    "https://example.com/metadata.json",
	}

	ix, err := MintV1(treeConfig, leafOwner, leafDelegate, merkleTree, payer, payer, metadata)
	require.NoError(t, err)

	assert.Equal(t, ProgramKey, ix.Program)
	require.Len(t, ix.Accounts, 9)

	assert.Equal(t, treeConfig, ix.Accounts[0].PublicKey)
	assert.True(t, ix.Accounts[0].IsWritable)

	assert.Equal(t, leafOwner, ix.Accounts[1].PublicKey)
	assert.False(t, ix.Accounts[1].IsSigner)
	assert.False(t, ix.Accounts[1].IsWritable)

	assert.Equal(t, leafDelegate, ix.Accounts[2].PublicKey)

	assert.Equal(t, merkleTree, ix.Accounts[3].PublicKey)
	assert.True(t, ix.Accounts[3].IsWritable)

	// The payer doubles as the tree delegate; both slots sign.
	assert.Equal(t, payer, ix.Accounts[4].PublicKey)
	assert.True(t, ix.Accounts[4].IsSigner)
	assert.Equal(t, payer, ix.Accounts[5].PublicKey)
	assert.True(t, ix.Accounts[5].IsSigner)

	assert.Equal(t, NoopProgramKey, ix.Accounts[6].PublicKey)
	assert.Equal(t, CompressionProgramKey, ix.Accounts[7].PublicKey)
	assert.Equal(t, system.ProgramKey[:], []byte(ix.Accounts[8].PublicKey))

	metadataBytes, err := metadata.Marshal()
	require.NoError(t, err)
	assert.Equal(t, mintV1Discriminator, ix.Data[:8])
	assert.Equal(t, metadataBytes, ix.Data[8:])
}

func TestMintV1_InvalidMetadata(t *testing.T) {
	key := testKey(t)

	_, err := MintV1(key, key, key, key, key, key, Metadata{
		Name: string(make([]byte, maxNameLength+1)),
	})
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestTransfer(t *testing.T) {
	merkleTree := testKey(t)
	leafOwner := testKey(t)
	newLeafOwner := testKey(t)

	treeConfig, err := FindTreeConfigAddress(merkleTree)
	require.NoError(t, err)

	proof := LeafProof{
		Nonce: 42,
		Index: 42,
		Proof: []ed25519.PublicKey{testKey(t), testKey(t)},
	}
	copy(proof.Root[:], testKey(t))
	copy(proof.DataHash[:], testKey(t))
	copy(proof.CreatorHash[:], testKey(t))

	ix := Transfer(treeConfig, leafOwner, leafOwner, newLeafOwner, merkleTree, proof)

	assert.Equal(t, ProgramKey, ix.Program)
	require.Len(t, ix.Accounts, 8+len(proof.Proof))

	assert.Equal(t, treeConfig, ix.Accounts[0].PublicKey)
	assert.False(t, ix.Accounts[0].IsWritable)

	assert.Equal(t, leafOwner, ix.Accounts[1].PublicKey)
	assert.True(t, ix.Accounts[1].IsSigner)

	assert.Equal(t, leafOwner, ix.Accounts[2].PublicKey)
	assert.Equal(t, newLeafOwner, ix.Accounts[3].PublicKey)
	assert.False(t, ix.Accounts[3].IsSigner)

	assert.Equal(t, merkleTree, ix.Accounts[4].PublicKey)
	assert.True(t, ix.Accounts[4].IsWritable)

	assert.Equal(t, NoopProgramKey, ix.Accounts[5].PublicKey)
	assert.Equal(t, CompressionProgramKey, ix.Accounts[6].PublicKey)
	assert.Equal(t, system.ProgramKey[:], []byte(ix.Accounts[7].PublicKey))

	for i, node := range proof.Proof {
		meta := ix.Accounts[8+i]
		assert.Equal(t, node, meta.PublicKey)
		assert.False(t, meta.IsSigner)
		assert.False(t, meta.IsWritable)
	}

	require.Len(t, ix.Data, 8+3*32+8+4)
	assert.Equal(t, transferDiscriminator, ix.Data[:8])
	assert.Equal(t, proof.Root[:], ix.Data[8:40])
	assert.Equal(t, proof.DataHash[:], ix.Data[40:72])
	assert.Equal(t, proof.CreatorHash[:], ix.Data[72:104])
	assert.EqualValues(t, 42, binary.LittleEndian.Uint64(ix.Data[104:]))
	assert.EqualValues(t, 42, binary.LittleEndian.Uint32(ix.Data[112:]))
}

func testKey(t *testing.T) ed25519.PublicKey {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub
}
