package consensus

import (
	"github.com/ethereum/go-ethereum/common"
)

// FeeRecipientAddress returns the header's fee recipient in go-ethereum's
// checksum-printable Address form, for logging and for JSON interchange with
// execution-layer tooling that already speaks this format.
func (h *ExecutionPayloadHeader) FeeRecipientAddress() common.Address {
	return common.Address(h.FeeRecipient)
}

// BlockHashValue returns the header's block hash as a go-ethereum Hash.
func (h *ExecutionPayloadHeader) BlockHashValue() common.Hash {
	return common.Hash(h.BlockHash)
}

// ParentHashValue returns the header's parent hash as a go-ethereum Hash.
func (h *ExecutionPayloadHeader) ParentHashValue() common.Hash {
	return common.Hash(h.ParentHash)
}

// FeeRecipientAddress returns the payload's fee recipient in go-ethereum's
// Address form.
func (p *ExecutionPayload) FeeRecipientAddress() common.Address {
	return common.Address(p.FeeRecipient)
}

// BlockHashValue returns the payload's block hash as a go-ethereum Hash.
func (p *ExecutionPayload) BlockHashValue() common.Hash {
	return common.Hash(p.BlockHash)
}
