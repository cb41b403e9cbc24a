// Package cnft exposes the three compressed NFT operations: creating a
// merkle tree, minting a leaf, and transferring one.
//
// Every operation is synchronous and self contained: it decodes its own
// ephemeral key material from caller supplied strings, performs at most
// a handful of RPC round trips, and returns the confirmed transaction
// signature. Nothing is shared across invocations, so callers may run
// arbitrarily many operations concurrently.
package cnft

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/metaplex-go/bubblegum/pkg/bubblegum"
	"github.com/metaplex-go/bubblegum/pkg/solana"
)

type prepared struct {
	payer        ed25519.PublicKey
	instructions []solana.Instruction
	signers      []ed25519.PrivateKey
}

// CreateTreeResult carries the confirmed signature along with the
// generated tree addresses the caller needs for subsequent mints.
type CreateTreeResult struct {
	Signature  string
	Tree       string
	TreeConfig string
}

// CreateTree allocates a new concurrent merkle tree and initializes its
// tree config. The merkle tree keypair is generated here and discarded
// after signing; its public half is returned as the tree address.
//
// The payer, the tree creator, and the tree keypair all sign.
func CreateTree(endpoint, payerPubkey, treeCreatorPubkey string, maxDepth, maxBufferSize uint32, payerSecret, treeCreatorSecret string) (*CreateTreeResult, error) {
	payer, err := solana.ParsePublicKey(payerPubkey)
	if err != nil {
		return nil, err
	}
	treeCreator, err := solana.ParsePublicKey(treeCreatorPubkey)
	if err != nil {
		return nil, err
	}
	payerKP, err := solana.ParseKeyPair(payerSecret)
	if err != nil {
		return nil, err
	}
	treeCreatorKP, err := solana.ParseKeyPair(treeCreatorSecret)
	if err != nil {
		return nil, err
	}

	treeKP, err := solana.NewKeyPair()
	if err != nil {
		return nil, errors.Wrapf(bubblegum.ErrSerialization, "failed to generate tree keypair: %v", err)
	}

	sc := solana.New(endpoint)
	size := bubblegum.MerkleTreeAccountSize(maxDepth, maxBufferSize)
	lamports, err := sc.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		return nil, wrapRPC(err)
	}

	p, err := prepareCreateTree(payer, treeCreator, treeKP.Public(), maxDepth, maxBufferSize, lamports, size,
		payerKP.Private(), treeCreatorKP.Private(), treeKP.Private())
	if err != nil {
		return nil, err
	}

	sig, err := signAndSubmit(sc, p)
	if err != nil {
		return nil, err
	}

	treeConfig, err := bubblegum.FindTreeConfigAddress(treeKP.Public())
	if err != nil {
		return nil, errors.Wrapf(bubblegum.ErrSerialization, "failed to derive tree config: %v", err)
	}

	return &CreateTreeResult{
		Signature:  sig,
		Tree:       base58.Encode(treeKP.Public()),
		TreeConfig: base58.Encode(treeConfig),
	}, nil
}

func prepareCreateTree(payer, treeCreator, merkleTree ed25519.PublicKey, maxDepth, maxBufferSize uint32, lamports, size uint64, signers ...ed25519.PrivateKey) (prepared, error) {
	treeConfig, err := bubblegum.FindTreeConfigAddress(merkleTree)
	if err != nil {
		return prepared{}, errors.Wrapf(bubblegum.ErrSerialization, "failed to derive tree config: %v", err)
	}

	return prepared{
		payer: payer,
		instructions: []solana.Instruction{
			bubblegum.AllocTree(payer, merkleTree, lamports, size),
			bubblegum.CreateTree(treeConfig, merkleTree, payer, treeCreator, maxDepth, maxBufferSize),
		},
		signers: signers,
	}, nil
}

// Mint mints a compressed NFT into an existing tree. The payer acts as
// the tree delegate and is the only required signer; leafOwnerSecret is
// accepted for host compatibility and validated, but the leaf owner has
// no signer slot in this instruction.
func Mint(endpoint, treePubkey, leafOwnerPubkey, leafDelegatePubkey, metadataBase64, payerSecret, leafOwnerSecret string) (string, error) {
	tree, err := solana.ParsePublicKey(treePubkey)
	if err != nil {
		return "", err
	}
	leafOwner, err := solana.ParsePublicKey(leafOwnerPubkey)
	if err != nil {
		return "", err
	}

	leafDelegate := leafOwner
	if leafDelegatePubkey != "" {
		if leafDelegate, err = solana.ParsePublicKey(leafDelegatePubkey); err != nil {
			return "", err
		}
	}

	payerKP, err := solana.ParseKeyPair(payerSecret)
	if err != nil {
		return "", err
	}
	if leafOwnerSecret != "" {
		if _, err := solana.ParseKeyPair(leafOwnerSecret); err != nil {
			return "", err
		}
	}

	metadata, err := bubblegum.DeserializeMetadata(metadataBase64)
	if err != nil {
		return "", err
	}

	p, err := prepareMint(tree, leafOwner, leafDelegate, payerKP, *metadata)
	if err != nil {
		return "", err
	}

	return signAndSubmit(solana.New(endpoint), p)
}

func prepareMint(tree, leafOwner, leafDelegate ed25519.PublicKey, payerKP solana.KeyPair, metadata bubblegum.Metadata) (prepared, error) {
	treeConfig, err := bubblegum.FindTreeConfigAddress(tree)
	if err != nil {
		return prepared{}, errors.Wrapf(bubblegum.ErrSerialization, "failed to derive tree config: %v", err)
	}

	instruction, err := bubblegum.MintV1(treeConfig, leafOwner, leafDelegate, tree, payerKP.Public(), payerKP.Public(), metadata)
	if err != nil {
		return prepared{}, err
	}

	return prepared{
		payer:        payerKP.Public(),
		instructions: []solana.Instruction{instruction},
		signers:      []ed25519.PrivateKey{payerKP.Private()},
	}, nil
}

// TransferProof carries the leaf's current on chain state. All values
// must come from an indexer or tree traversal service; the program
// rejects placeholder zeros, so none of these are defaulted.
type TransferProof struct {
	Root        string
	DataHash    string
	CreatorHash string
	Nonce       uint64
	Proof       []string
}

// Transfer moves a leaf to a new owner. The current owner authorizes
// the transfer and co-signs with the payer.
func Transfer(endpoint, treePubkey, leafOwnerPubkey, newOwnerPubkey string, leafIndex uint32, proof TransferProof, payerSecret, leafOwnerSecret string) (string, error) {
	tree, err := solana.ParsePublicKey(treePubkey)
	if err != nil {
		return "", err
	}
	leafOwner, err := solana.ParsePublicKey(leafOwnerPubkey)
	if err != nil {
		return "", err
	}
	newOwner, err := solana.ParsePublicKey(newOwnerPubkey)
	if err != nil {
		return "", err
	}

	payerKP, err := solana.ParseKeyPair(payerSecret)
	if err != nil {
		return "", err
	}
	leafOwnerKP, err := solana.ParseKeyPair(leafOwnerSecret)
	if err != nil {
		return "", err
	}

	leafProof, err := parseLeafProof(leafIndex, proof)
	if err != nil {
		return "", err
	}

	p, err := prepareTransfer(tree, leafOwner, newOwner, leafProof, payerKP, leafOwnerKP)
	if err != nil {
		return "", err
	}

	return signAndSubmit(solana.New(endpoint), p)
}

func prepareTransfer(tree, leafOwner, newOwner ed25519.PublicKey, proof bubblegum.LeafProof, payerKP, leafOwnerKP solana.KeyPair) (prepared, error) {
	treeConfig, err := bubblegum.FindTreeConfigAddress(tree)
	if err != nil {
		return prepared{}, errors.Wrapf(bubblegum.ErrSerialization, "failed to derive tree config: %v", err)
	}

	instruction := bubblegum.Transfer(treeConfig, leafOwner, leafOwner, newOwner, tree, proof)

	return prepared{
		payer:        payerKP.Public(),
		instructions: []solana.Instruction{instruction},
		signers:      []ed25519.PrivateKey{payerKP.Private(), leafOwnerKP.Private()},
	}, nil
}

func parseLeafProof(leafIndex uint32, proof TransferProof) (bubblegum.LeafProof, error) {
	p := bubblegum.LeafProof{
		Nonce: proof.Nonce,
		Index: leafIndex,
	}

	for _, v := range []struct {
		dst  *[32]byte
		text string
	}{
		{&p.Root, proof.Root},
		{&p.DataHash, proof.DataHash},
		{&p.CreatorHash, proof.CreatorHash},
	} {
		raw, err := solana.ParsePublicKey(v.text)
		if err != nil {
			return bubblegum.LeafProof{}, err
		}
		copy(v.dst[:], raw)
	}

	for _, v := range proof.Proof {
		node, err := solana.ParsePublicKey(v)
		if err != nil {
			return bubblegum.LeafProof{}, err
		}
		p.Proof = append(p.Proof, node)
	}

	return p, nil
}

// SerializeMetadata converts a JSON metadata document into the base64
// encoded borsh record consumed by Mint.
func SerializeMetadata(metadataJSON string) (string, error) {
	return bubblegum.SerializeMetadata(metadataJSON)
}

// signAndSubmit assembles, signs, submits and waits for confirmation.
//
// The blockhash is fetched only once the instruction list is final and
// immediately before signing; a stale hash is rejected on chain, so the
// ordering here is a correctness constraint rather than an optimization.
func signAndSubmit(sc solana.Client, p prepared) (string, error) {
	txn := solana.NewTransaction(p.payer, p.instructions...)

	blockhash, err := sc.GetLatestBlockhash()
	if err != nil {
		return "", wrapRPC(err)
	}
	txn.SetBlockhash(blockhash)

	if err := txn.Sign(p.signers...); err != nil {
		return "", errors.Wrapf(bubblegum.ErrSerialization, "failed to sign transaction: %v", err)
	}

	sig, err := sc.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return "", wrapRPC(err)
	}

	if _, err := sc.GetSignatureStatus(sig, solana.CommitmentConfirmed); err != nil {
		return "", wrapRPC(err)
	}

	logrus.StandardLogger().WithFields(logrus.Fields{
		"type":      "cnft",
		"signature": base58.Encode(sig[:]),
	}).Debug("transaction confirmed")

	return base58.Encode(sig[:]), nil
}

// wrapRPC tags network boundary failures while preserving instruction
// level errors for classification.
func wrapRPC(err error) error {
	var instructionErr *solana.InstructionError
	if errors.As(err, &instructionErr) {
		return err
	}

	var txErr *solana.TransactionError
	if errors.As(err, &txErr) && txErr.InstructionError() != nil {
		return txErr.InstructionError()
	}

	return errors.Wrap(ErrRPC, err.Error())
}
