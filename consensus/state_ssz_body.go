package consensus

import (
	"github.com/ethclient/deneb-beacon/ssz"
)

// This file completes the per-field SSZ Merkleization of BeaconBlockBody
// that blockBodyHashTreeRoot (state_transition.go) composes into the block
// header's body_root, following the same Container/List pattern state_ssz.go
// uses for BeaconState's own fields.

func signedBeaconBlockHeaderHashTreeRoot(h *SignedBeaconBlockHeader) [32]byte {
	msgRoot, _ := h.Message.HashTreeRoot()
	return ssz.HashTreeRootContainer([][32]byte{
		msgRoot,
		ssz.HashTreeRootByteList(h.Signature[:], 96),
	})
}

func proposerSlashingHashTreeRoot(ps *ProposerSlashing) [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{
		signedBeaconBlockHeaderHashTreeRoot(&ps.SignedHeader1),
		signedBeaconBlockHeaderHashTreeRoot(&ps.SignedHeader2),
	})
}

func proposerSlashingsHashTreeRoot(slashings []ProposerSlashing, limit uint64) [32]byte {
	roots := make([][32]byte, len(slashings))
	for i := range slashings {
		roots[i] = proposerSlashingHashTreeRoot(&slashings[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func indexedAttestationHashTreeRoot(ia *IndexedAttestation, maxIndices uint64) [32]byte {
	indexRoots := make([][32]byte, len(ia.AttestingIndices))
	for i, idx := range ia.AttestingIndices {
		indexRoots[i] = ssz.HashTreeRootUint64(uint64(idx))
	}
	indicesRoot := ssz.HashTreeRootList(indexRoots, int(maxIndices))
	dataRoot, _ := ia.Data.HashTreeRoot()
	return ssz.HashTreeRootContainer([][32]byte{
		indicesRoot,
		dataRoot,
		ssz.HashTreeRootByteList(ia.Signature[:], 96),
	})
}

func attesterSlashingHashTreeRoot(as *AttesterSlashing, maxIndices uint64) [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{
		indexedAttestationHashTreeRoot(&as.Attestation1, maxIndices),
		indexedAttestationHashTreeRoot(&as.Attestation2, maxIndices),
	})
}

func attesterSlashingsHashTreeRoot(slashings []AttesterSlashing, limit, maxIndices uint64) [32]byte {
	roots := make([][32]byte, len(slashings))
	for i := range slashings {
		roots[i] = attesterSlashingHashTreeRoot(&slashings[i], maxIndices)
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func attestationHashTreeRoot(a *Attestation, maxValidatorsPerCommittee uint64) [32]byte {
	bits := make([]bool, a.AggregationBits.Len())
	for i := range bits {
		bits[i] = a.AggregationBits.Get(i)
	}
	bitsRoot := ssz.HashTreeRootBitlist(bits, int(maxValidatorsPerCommittee))
	dataRoot, _ := a.Data.HashTreeRoot()
	return ssz.HashTreeRootContainer([][32]byte{
		bitsRoot,
		dataRoot,
		ssz.HashTreeRootByteList(a.Signature[:], 96),
	})
}

func attestationsHashTreeRoot(attestations []Attestation, limit, maxValidatorsPerCommittee uint64) [32]byte {
	roots := make([][32]byte, len(attestations))
	for i := range attestations {
		roots[i] = attestationHashTreeRoot(&attestations[i], maxValidatorsPerCommittee)
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func depositHashTreeRoot(d *Deposit) [32]byte {
	proofRoots := make([][32]byte, len(d.Proof))
	copy(proofRoots, d.Proof)
	proofRoot := ssz.HashTreeRootVector(proofRoots)
	return ssz.HashTreeRootContainer([][32]byte{
		proofRoot,
		depositDataHashTreeRoot(d),
	})
}

func depositsHashTreeRoot(deposits []Deposit, limit uint64) [32]byte {
	roots := make([][32]byte, len(deposits))
	for i := range deposits {
		roots[i] = depositHashTreeRoot(&deposits[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func signedVoluntaryExitHashTreeRoot(sve *SignedVoluntaryExit) [32]byte {
	msgRoot := ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootUint64(uint64(sve.Message.Epoch)),
		ssz.HashTreeRootUint64(uint64(sve.Message.ValidatorIndex)),
	})
	return ssz.HashTreeRootContainer([][32]byte{
		msgRoot,
		ssz.HashTreeRootByteList(sve.Signature[:], 96),
	})
}

func voluntaryExitsHashTreeRoot(exits []SignedVoluntaryExit, limit uint64) [32]byte {
	roots := make([][32]byte, len(exits))
	for i := range exits {
		roots[i] = signedVoluntaryExitHashTreeRoot(&exits[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func signedBLSToExecutionChangeHashTreeRoot(sc *SignedBLSToExecutionChange) [32]byte {
	msgRoot := ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootUint64(uint64(sc.Message.ValidatorIndex)),
		ssz.HashTreeRootByteList(sc.Message.FromBLSPubkey[:], 48),
		ssz.HashTreeRootAddress(sc.Message.ToExecutionAddress),
	})
	return ssz.HashTreeRootContainer([][32]byte{
		msgRoot,
		ssz.HashTreeRootByteList(sc.Signature[:], 96),
	})
}

func blsToExecutionChangesHashTreeRoot(changes []SignedBLSToExecutionChange, limit uint64) [32]byte {
	roots := make([][32]byte, len(changes))
	for i := range changes {
		roots[i] = signedBLSToExecutionChangeHashTreeRoot(&changes[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func syncAggregateHashTreeRoot(sa *SyncAggregate) [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootBitvector(sa.SyncCommitteeBits),
		ssz.HashTreeRootByteList(sa.SyncCommitteeSignature[:], 96),
	})
}

func blobKzgCommitmentsHashTreeRoot(commitments [][48]byte, limit uint64) [32]byte {
	roots := make([][32]byte, len(commitments))
	for i, c := range commitments {
		roots[i] = ssz.HashTreeRootBytes48(c)
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func executionPayloadHashTreeRoot(p *ExecutionPayload, maxWithdrawalsPerPayload uint64) [32]byte {
	txRoot := Root(transactionsHashTreeRoot(p.Transactions))
	wdRoot := Root(withdrawalsHashTreeRoot(p.Withdrawals, maxWithdrawalsPerPayload))
	header := HeaderFromPayload(p, txRoot, wdRoot)
	return executionPayloadHeaderHashTreeRoot(&header)
}
