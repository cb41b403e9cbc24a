package cnft

import (
	"github.com/pkg/errors"

	"github.com/metaplex-go/bubblegum/pkg/bubblegum"
	"github.com/metaplex-go/bubblegum/pkg/solana"
)

// ErrRPC tags failures that originated at the ledger endpoint or on the
// transport to it. The endpoint's own message is preserved in the chain.
var ErrRPC = errors.New("rpc failure")

// Code classifies an operation failure for hosts. This replaces the
// substring matching older integrations performed on raw RPC messages;
// the verbatim message still travels in the error chain.
type Code string

const (
	CodeInvalidPubkey      Code = "InvalidPubkey"
	CodeInvalidKeypair     Code = "InvalidKeypair"
	CodeInvalidMetadata    Code = "InvalidMetadata"
	CodeSerializationError Code = "SerializationError"
	CodeInstructionError   Code = "InstructionError"
	CodeRpcError           Code = "RpcError"
)

// ErrorCode maps an error returned by any operation in this package to
// its taxonomy code.
func ErrorCode(err error) Code {
	switch {
	case errors.Is(err, solana.ErrInvalidPublicKey):
		return CodeInvalidPubkey
	case errors.Is(err, solana.ErrInvalidKeyPair):
		return CodeInvalidKeypair
	case errors.Is(err, bubblegum.ErrInvalidMetadata):
		return CodeInvalidMetadata
	case errors.Is(err, bubblegum.ErrSerialization):
		return CodeSerializationError
	}

	var instructionErr *solana.InstructionError
	if errors.As(err, &instructionErr) {
		return CodeInstructionError
	}

	// Everything else escaped from the network boundary.
	return CodeRpcError
}
