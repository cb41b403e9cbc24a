// Package system provides the subset of the system program needed to
// allocate accounts owned by other programs.
package system

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/metaplex-go/bubblegum/pkg/solana"
)

// ProgramKey is the system program, the all-zero key.
var ProgramKey [ed25519.PublicKeySize]byte

const commandCreateAccount uint32 = 0

// CreateAccount allocates a rent exempt account owned by the provided
// program.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,  // lamports to transfer to the new account
	//   space: u64,     // bytes of memory to allocate
	//   owner: Pubkey,  // program that will own the new account
	// }
	data := make([]byte, 4+2*8+ed25519.PublicKeySize)
	binary.LittleEndian.PutUint32(data, commandCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[4+8:], size)
	copy(data[4+2*8:], owner)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}
