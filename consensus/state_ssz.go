package consensus

import (
	"crypto/sha256"

	"github.com/ethclient/deneb-beacon/ssz"
)

// validatorRootCache memoizes validatorHashTreeRoot by the validator's own
// serialized bytes: most validators in a registry of tens of thousands sit
// untouched across an epoch transition (only effective_balance/slashed/exit
// fields ever change), so re-hashing all eight fields of every validator on
// every call to BeaconState.HashTreeRoot dominates the cost of computing
// the registry's subtree root. 1<<16 entries comfortably covers a mainnet-
// sized validator set without unbounded growth.
var validatorRootCache = ssz.NewMerkleCache(1 << 16)

// validatorHashTreeRoot computes tree_hash_root(Validator).
func validatorHashTreeRoot(v *Validator) [32]byte {
	key := sha256.Sum256(marshalValidatorForCacheKey(v))
	if root, ok := validatorRootCache.GetHash(key); ok {
		return root
	}

	pubkeyRoot := ssz.HashTreeRootByteList(v.Pubkey[:], 48)
	root := ssz.HashTreeRootContainer([][32]byte{
		pubkeyRoot,
		[32]byte(v.WithdrawalCredentials),
		ssz.HashTreeRootUint64(uint64(v.EffectiveBalance)),
		ssz.HashTreeRootBool(v.Slashed),
		ssz.HashTreeRootUint64(uint64(v.ActivationEligibilityEpoch)),
		ssz.HashTreeRootUint64(uint64(v.ActivationEpoch)),
		ssz.HashTreeRootUint64(uint64(v.ExitEpoch)),
		ssz.HashTreeRootUint64(uint64(v.WithdrawableEpoch)),
	})
	validatorRootCache.PutHash(key, root)
	return root
}

// marshalValidatorForCacheKey serializes a Validator's fields (same field
// order as validatorHashTreeRoot) into a flat byte slice suitable only as a
// cache-key input, not as a wire format.
func marshalValidatorForCacheKey(v *Validator) []byte {
	buf := make([]byte, 0, 48+32+8+1+8+8+8+8)
	buf = append(buf, v.Pubkey[:]...)
	buf = append(buf, v.WithdrawalCredentials[:]...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.EffectiveBalance))...)
	if v.Slashed {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, ssz.MarshalUint64(uint64(v.ActivationEligibilityEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.ActivationEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.ExitEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.WithdrawableEpoch))...)
	return buf
}

func validatorsHashTreeRoot(validators []*Validator, limit uint64) [32]byte {
	roots := make([][32]byte, len(validators))
	for i, v := range validators {
		roots[i] = validatorHashTreeRoot(v)
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func balancesHashTreeRoot(balances []Gwei, limit uint64) [32]byte {
	serialized := make([]byte, len(balances)*8)
	for i, b := range balances {
		le := uint64ToLE(uint64(b))
		copy(serialized[i*8:], le[:])
	}
	return ssz.HashTreeRootBasicList(serialized, len(balances), 8, int(limit))
}

func rootsVectorHashTreeRoot(roots []Root) [32]byte {
	chunks := make([][32]byte, len(roots))
	for i, r := range roots {
		chunks[i] = [32]byte(r)
	}
	return ssz.HashTreeRootVector(chunks)
}

func historicalRootsHashTreeRoot(roots []Root, limit uint64) [32]byte {
	chunks := make([][32]byte, len(roots))
	for i, r := range roots {
		chunks[i] = [32]byte(r)
	}
	return ssz.HashTreeRootList(chunks, int(limit))
}

func eth1DataHashTreeRoot(e *Eth1Data) [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{
		[32]byte(e.DepositRoot),
		ssz.HashTreeRootUint64(e.DepositCount),
		[32]byte(e.BlockHash),
	})
}

func eth1DataVotesHashTreeRoot(votes []Eth1Data, limit uint64) [32]byte {
	roots := make([][32]byte, len(votes))
	for i := range votes {
		roots[i] = eth1DataHashTreeRoot(&votes[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func slashingsHashTreeRoot(slashings []Gwei) [32]byte {
	serialized := make([]byte, len(slashings)*8)
	for i, g := range slashings {
		le := uint64ToLE(uint64(g))
		copy(serialized[i*8:], le[:])
	}
	return ssz.HashTreeRootBasicVector(serialized)
}

func participationHashTreeRoot(flags []ParticipationFlags) [32]byte {
	serialized := make([]byte, len(flags))
	for i, f := range flags {
		serialized[i] = byte(f)
	}
	return ssz.HashTreeRootByteList(serialized, len(flags))
}

func justificationBitsHashTreeRoot(bits [4]bool) [32]byte {
	return ssz.HashTreeRootBitvector(bits[:])
}

func inactivityScoresHashTreeRoot(scores []uint64, limit uint64) [32]byte {
	serialized := make([]byte, len(scores)*8)
	for i, s := range scores {
		le := uint64ToLE(s)
		copy(serialized[i*8:], le[:])
	}
	return ssz.HashTreeRootBasicList(serialized, len(scores), 8, int(limit))
}

// transactionsHashTreeRoot computes the opaque-byte-list-of-lists root for
// an execution payload's transactions, using the Deneb mainnet limits
// (MAX_TRANSACTIONS_PER_PAYLOAD / MAX_BYTES_PER_TRANSACTION).
func transactionsHashTreeRoot(transactions [][]byte) [32]byte {
	const maxTransactionsPerPayload = 1 << 20
	const maxBytesPerTransaction = 1 << 30
	roots := make([][32]byte, len(transactions))
	for i, tx := range transactions {
		roots[i] = ssz.HashTreeRootByteList(tx, maxBytesPerTransaction)
	}
	return ssz.HashTreeRootList(roots, maxTransactionsPerPayload)
}

func withdrawalHashTreeRoot(w *Withdrawal) [32]byte {
	var addrChunk [32]byte
	copy(addrChunk[:20], w.Address[:])
	return ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootUint64(w.Index),
		ssz.HashTreeRootUint64(uint64(w.ValidatorIndex)),
		addrChunk,
		ssz.HashTreeRootUint64(uint64(w.Amount)),
	})
}

func withdrawalsHashTreeRoot(withdrawals []Withdrawal, limit uint64) [32]byte {
	roots := make([][32]byte, len(withdrawals))
	for i := range withdrawals {
		roots[i] = withdrawalHashTreeRoot(&withdrawals[i])
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func syncCommitteeHashTreeRoot(sc *SyncCommittee, size int) [32]byte {
	pkRoots := make([][32]byte, size)
	for i := 0; i < size; i++ {
		if i < len(sc.Pubkeys) {
			pkRoots[i] = ssz.HashTreeRootByteList(sc.Pubkeys[i][:], 48)
		} else {
			pkRoots[i] = ssz.HashTreeRootByteList(nil, 48)
		}
	}
	pubkeysRoot := ssz.HashTreeRootVector(pkRoots)
	aggRoot := ssz.HashTreeRootByteList(sc.AggregatePubkey[:], 48)
	return ssz.HashTreeRootContainer([][32]byte{pubkeysRoot, aggRoot})
}

func executionPayloadHeaderHashTreeRoot(h *ExecutionPayloadHeader) [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{
		[32]byte(h.ParentHash),
		ssz.HashTreeRootByteList(h.FeeRecipient[:], 20),
		[32]byte(h.StateRoot),
		[32]byte(h.ReceiptsRoot),
		ssz.HashTreeRootByteList(h.LogsBloom[:], 256),
		[32]byte(h.PrevRandao),
		ssz.HashTreeRootUint64(h.BlockNumber),
		ssz.HashTreeRootUint64(h.GasLimit),
		ssz.HashTreeRootUint64(h.GasUsed),
		ssz.HashTreeRootUint64(h.Timestamp),
		ssz.HashTreeRootByteList(h.ExtraData, 32),
		[32]byte(h.BaseFeePerGas),
		[32]byte(h.BlockHash),
		[32]byte(h.TransactionsRoot),
		[32]byte(h.WithdrawalsRoot),
		ssz.HashTreeRootUint64(h.BlobGasUsed),
		ssz.HashTreeRootUint64(h.ExcessBlobGas),
	})
}

func historicalSummariesHashTreeRoot(summaries []HistoricalSummary, limit uint64) [32]byte {
	roots := make([][32]byte, len(summaries))
	for i, hs := range summaries {
		roots[i] = ssz.HashTreeRootContainer([][32]byte{
			[32]byte(hs.BlockSummaryRoot), [32]byte(hs.StateSummaryRoot),
		})
	}
	return ssz.HashTreeRootList(roots, int(limit))
}

func forkHashTreeRoot(f *Fork) [32]byte {
	var prev, cur [32]byte
	copy(prev[:4], f.PreviousVersion[:])
	copy(cur[:4], f.CurrentVersion[:])
	return ssz.HashTreeRootContainer([][32]byte{prev, cur, ssz.HashTreeRootUint64(uint64(f.Epoch))})
}

// HashTreeRoot computes the Merkle tree-hash root of the entire BeaconState
// (§4.1), composing each field's sub-root in container field order.
func (s *BeaconState) HashTreeRoot() ([32]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	headerRoot, _ := s.LatestBlockHeader.HashTreeRoot()
	forkRoot := forkHashTreeRoot(&s.Fork)

	prevJustRoot, _ := s.PreviousJustifiedCheckpoint.HashTreeRoot()
	curJustRoot, _ := s.CurrentJustifiedCheckpoint.HashTreeRoot()
	finalRoot, _ := s.FinalizedCheckpoint.HashTreeRoot()

	currentSC := s.CurrentSyncCommittee
	if currentSC == nil {
		currentSC = &SyncCommittee{}
	}
	nextSC := s.NextSyncCommittee
	if nextSC == nil {
		nextSC = &SyncCommittee{}
	}

	fields := [][32]byte{
		ssz.HashTreeRootUint64(s.GenesisTime),
		[32]byte(s.GenesisValidatorsRoot),
		ssz.HashTreeRootUint64(uint64(s.Slot)),
		forkRoot,
		headerRoot,
		rootsVectorHashTreeRoot(s.BlockRoots),
		rootsVectorHashTreeRoot(s.StateRoots),
		historicalRootsHashTreeRoot(s.HistoricalRoots, s.Config.SlotsPerHistoricalRoot),
		eth1DataHashTreeRoot(&s.Eth1Data),
		eth1DataVotesHashTreeRoot(s.Eth1DataVotes, 64*s.Config.SlotsPerEpoch),
		ssz.HashTreeRootUint64(s.Eth1DepositIndex),
		validatorsHashTreeRoot(s.Validators, s.Config.ValidatorRegistryLimit),
		balancesHashTreeRoot(s.Balances, s.Config.ValidatorRegistryLimit),
		rootsVectorHashTreeRoot(s.RandaoMixes),
		slashingsHashTreeRoot(s.Slashings),
		participationHashTreeRoot(s.PreviousEpochParticipation),
		participationHashTreeRoot(s.CurrentEpochParticipation),
		justificationBitsHashTreeRoot(s.JustificationBits),
		prevJustRoot,
		curJustRoot,
		finalRoot,
		inactivityScoresHashTreeRoot(s.InactivityScores, s.Config.ValidatorRegistryLimit),
		syncCommitteeHashTreeRoot(currentSC, int(s.Config.SyncCommitteeSize)),
		syncCommitteeHashTreeRoot(nextSC, int(s.Config.SyncCommitteeSize)),
		executionPayloadHeaderHashTreeRoot(&s.LatestExecutionPayloadHeader),
		ssz.HashTreeRootUint64(s.NextWithdrawalIndex),
		ssz.HashTreeRootUint64(uint64(s.NextWithdrawalValidatorIndex)),
		historicalSummariesHashTreeRoot(s.HistoricalSummaries, s.Config.SlotsPerHistoricalRoot),
	}
	return ssz.HashTreeRootContainer(fields), nil
}
