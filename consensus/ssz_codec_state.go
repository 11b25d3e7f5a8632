package consensus

import (
	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/ssz"
)

// BeaconState's encoding mirrors the field order HashTreeRoot walks in
// state_ssz.go exactly: a decode-then-rehash round trip must reproduce the
// original tree-hash root, so any reordering here would silently break §8's
// codec-round-trip property even though both files would still compile.

func marshalRoots(roots []Root) []byte {
	buf := make([]byte, len(roots)*32)
	for i, r := range roots {
		copy(buf[i*32:], r[:])
	}
	return buf
}

func unmarshalRoots(data []byte, n int) ([]Root, error) {
	if len(data) != n*32 {
		return nil, ssz.ErrSize
	}
	roots := make([]Root, n)
	for i := range roots {
		copy(roots[i][:], data[i*32:(i+1)*32])
	}
	return roots, nil
}

func marshalGweiVector(values []Gwei) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		copy(buf[i*8:], ssz.MarshalUint64(uint64(v)))
	}
	return buf
}

func unmarshalGweiVector(data []byte, n int) ([]Gwei, error) {
	if len(data) != n*8 {
		return nil, ssz.ErrSize
	}
	values := make([]Gwei, n)
	for i := range values {
		v, err := ssz.UnmarshalUint64(data[i*8 : (i+1)*8])
		if err != nil {
			return nil, err
		}
		values[i] = Gwei(v)
	}
	return values, nil
}

func marshalParticipation(flags []ParticipationFlags) []byte {
	buf := make([]byte, len(flags))
	for i, f := range flags {
		buf[i] = byte(f)
	}
	return buf
}

func unmarshalParticipation(data []byte) []ParticipationFlags {
	flags := make([]ParticipationFlags, len(data))
	for i, b := range data {
		flags[i] = ParticipationFlags(b)
	}
	return flags
}

func marshalInactivityScores(scores []uint64) []byte {
	buf := make([]byte, len(scores)*8)
	for i, s := range scores {
		copy(buf[i*8:], ssz.MarshalUint64(s))
	}
	return buf
}

func unmarshalInactivityScores(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, ssz.ErrSize
	}
	scores := make([]uint64, len(data)/8)
	for i := range scores {
		v, err := ssz.UnmarshalUint64(data[i*8 : (i+1)*8])
		if err != nil {
			return nil, err
		}
		scores[i] = v
	}
	return scores, nil
}

func marshalEth1DataVotes(votes []Eth1Data) ([]byte, error) {
	elements := make([][]byte, len(votes))
	for i := range votes {
		b, err := votes[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalList(elements), nil
}

func marshalValidators(validators []*Validator) ([]byte, error) {
	elements := make([][]byte, len(validators))
	for i, v := range validators {
		b, err := v.MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalList(elements), nil
}

func marshalHistoricalSummaries(summaries []HistoricalSummary) []byte {
	elements := make([][]byte, len(summaries))
	for i := range summaries {
		b, _ := summaries[i].MarshalSSZ()
		elements[i] = b
	}
	return ssz.MarshalList(elements)
}

// MarshalSSZ encodes the full BeaconState in HashTreeRoot's field order.
func (s *BeaconState) MarshalSSZ() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	forkBytes, err := s.Fork.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	headerBytes, err := s.LatestBlockHeader.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	eth1DataBytes, err := s.Eth1Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	eth1VotesBytes, err := marshalEth1DataVotes(s.Eth1DataVotes)
	if err != nil {
		return nil, err
	}
	validatorsBytes, err := marshalValidators(s.Validators)
	if err != nil {
		return nil, err
	}
	prevJustBytes, err := s.PreviousJustifiedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	curJustBytes, err := s.CurrentJustifiedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	finalBytes, err := s.FinalizedCheckpoint.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	currentSC := s.CurrentSyncCommittee
	if currentSC == nil {
		currentSC = &SyncCommittee{}
	}
	nextSC := s.NextSyncCommittee
	if nextSC == nil {
		nextSC = &SyncCommittee{}
	}
	currentSCBytes, err := currentSC.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	nextSCBytes, err := nextSC.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	payloadHeaderBytes, err := s.LatestExecutionPayloadHeader.MarshalSSZ()
	if err != nil {
		return nil, err
	}

	fixedParts := [][]byte{
		ssz.MarshalUint64(s.GenesisTime),
		s.GenesisValidatorsRoot[:],
		ssz.MarshalUint64(uint64(s.Slot)),
		forkBytes,
		headerBytes,
		marshalRoots(s.BlockRoots),
		marshalRoots(s.StateRoots),
		nil, // HistoricalRoots
		eth1DataBytes,
		nil, // Eth1DataVotes
		ssz.MarshalUint64(s.Eth1DepositIndex),
		nil, // Validators
		nil, // Balances
		marshalRoots(s.RandaoMixes),
		marshalGweiVector(s.Slashings),
		nil, // PreviousEpochParticipation
		nil, // CurrentEpochParticipation
		ssz.MarshalBitvector(s.JustificationBits[:]),
		prevJustBytes,
		curJustBytes,
		finalBytes,
		nil, // InactivityScores
		currentSCBytes,
		nextSCBytes,
		nil, // LatestExecutionPayloadHeader
		ssz.MarshalUint64(s.NextWithdrawalIndex),
		ssz.MarshalUint64(uint64(s.NextWithdrawalValidatorIndex)),
		nil, // HistoricalSummaries
	}
	variableParts := [][]byte{
		marshalRoots(s.HistoricalRoots),
		eth1VotesBytes,
		validatorsBytes,
		marshalGweiVector(s.Balances),
		marshalParticipation(s.PreviousEpochParticipation),
		marshalParticipation(s.CurrentEpochParticipation),
		marshalInactivityScores(s.InactivityScores),
		payloadHeaderBytes,
		marshalHistoricalSummaries(s.HistoricalSummaries),
	}
	variableIndices := []int{7, 9, 11, 12, 15, 16, 21, 24, 27}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, variableIndices), nil
}

// UnmarshalSSZ decodes a BeaconState. cfg fixes the ring-buffer lengths
// (BlockRoots, StateRoots, RandaoMixes, Slashings) and the sync committee
// size, none of which are self-describing in the wire encoding.
func (s *BeaconState) UnmarshalSSZ(data []byte, cfg params.Config) error {
	scSize := int(cfg.SyncCommitteeSize)*48 + 48
	fixedSizes := []int{
		8, 32, 8, 16, 112,
		int(cfg.SlotsPerHistoricalRoot) * 32,
		int(cfg.SlotsPerHistoricalRoot) * 32,
		0,
		72,
		0,
		8,
		0, 0,
		int(cfg.EpochsPerHistoricalVector) * 32,
		int(cfg.EpochsPerSlashingsVector) * 8,
		0, 0,
		1,
		40, 40, 40,
		0,
		scSize, scSize,
		0,
		8, 8,
		0,
	}
	fields, err := ssz.UnmarshalVariableContainer(data, 28, fixedSizes)
	if err != nil {
		return err
	}

	genesisTime, err := ssz.UnmarshalUint64(fields[0])
	if err != nil {
		return err
	}
	slot, err := ssz.UnmarshalUint64(fields[2])
	if err != nil {
		return err
	}
	var fork Fork
	if err := fork.UnmarshalSSZ(fields[3]); err != nil {
		return err
	}
	var header BeaconBlockHeader
	if err := header.UnmarshalSSZ(fields[4]); err != nil {
		return err
	}
	blockRoots, err := unmarshalRoots(fields[5], int(cfg.SlotsPerHistoricalRoot))
	if err != nil {
		return err
	}
	stateRoots, err := unmarshalRoots(fields[6], int(cfg.SlotsPerHistoricalRoot))
	if err != nil {
		return err
	}
	if len(fields[7])%32 != 0 {
		return ssz.ErrSize
	}
	historicalRoots, err := unmarshalRoots(fields[7], len(fields[7])/32)
	if err != nil {
		return err
	}
	var eth1Data Eth1Data
	if err := eth1Data.UnmarshalSSZ(fields[8]); err != nil {
		return err
	}
	eth1VoteItems, err := ssz.UnmarshalList(fields[9], 72)
	if err != nil {
		return err
	}
	eth1Votes := make([]Eth1Data, len(eth1VoteItems))
	for i := range eth1VoteItems {
		if err := eth1Votes[i].UnmarshalSSZ(eth1VoteItems[i]); err != nil {
			return err
		}
	}
	eth1DepositIndex, err := ssz.UnmarshalUint64(fields[10])
	if err != nil {
		return err
	}
	validatorItems, err := ssz.UnmarshalList(fields[11], 121)
	if err != nil {
		return err
	}
	validators := make([]*Validator, len(validatorItems))
	for i := range validatorItems {
		v := &Validator{}
		if err := v.UnmarshalSSZ(validatorItems[i]); err != nil {
			return err
		}
		validators[i] = v
	}
	balances, err := unmarshalGweiVector(fields[12], len(fields[12])/8)
	if err != nil {
		return err
	}
	randaoMixes, err := unmarshalRoots(fields[13], int(cfg.EpochsPerHistoricalVector))
	if err != nil {
		return err
	}
	slashings, err := unmarshalGweiVector(fields[14], int(cfg.EpochsPerSlashingsVector))
	if err != nil {
		return err
	}
	prevParticipation := unmarshalParticipation(fields[15])
	curParticipation := unmarshalParticipation(fields[16])
	justBits, err := ssz.UnmarshalBitvector(fields[17], 4)
	if err != nil {
		return err
	}
	var justArr [4]bool
	copy(justArr[:], justBits)
	var prevJust, curJust, finalized Checkpoint
	if err := prevJust.UnmarshalSSZ(fields[18]); err != nil {
		return err
	}
	if err := curJust.UnmarshalSSZ(fields[19]); err != nil {
		return err
	}
	if err := finalized.UnmarshalSSZ(fields[20]); err != nil {
		return err
	}
	inactivityScores, err := unmarshalInactivityScores(fields[21])
	if err != nil {
		return err
	}
	currentSC := &SyncCommittee{}
	if err := currentSC.UnmarshalSSZ(fields[22], cfg.SyncCommitteeSize); err != nil {
		return err
	}
	nextSC := &SyncCommittee{}
	if err := nextSC.UnmarshalSSZ(fields[23], cfg.SyncCommitteeSize); err != nil {
		return err
	}
	var payloadHeader ExecutionPayloadHeader
	if err := payloadHeader.UnmarshalSSZ(fields[24]); err != nil {
		return err
	}
	nextWithdrawalIndex, err := ssz.UnmarshalUint64(fields[25])
	if err != nil {
		return err
	}
	nextWithdrawalValidatorIndex, err := ssz.UnmarshalUint64(fields[26])
	if err != nil {
		return err
	}
	if len(fields[27])%64 != 0 {
		return ssz.ErrSize
	}
	summaryItems, err := ssz.UnmarshalList(fields[27], 64)
	if err != nil {
		return err
	}
	summaries := make([]HistoricalSummary, len(summaryItems))
	for i := range summaryItems {
		if err := summaries[i].UnmarshalSSZ(summaryItems[i]); err != nil {
			return err
		}
	}

	s.Config = cfg
	s.GenesisTime = genesisTime
	copy(s.GenesisValidatorsRoot[:], fields[1])
	s.Slot = Slot(slot)
	s.Fork = fork
	s.LatestBlockHeader = header
	s.BlockRoots = blockRoots
	s.StateRoots = stateRoots
	s.HistoricalRoots = historicalRoots
	s.Eth1Data = eth1Data
	s.Eth1DataVotes = eth1Votes
	s.Eth1DepositIndex = eth1DepositIndex
	s.Validators = validators
	s.Balances = balances
	s.RandaoMixes = randaoMixes
	s.Slashings = slashings
	s.PreviousEpochParticipation = prevParticipation
	s.CurrentEpochParticipation = curParticipation
	s.JustificationBits = justArr
	s.PreviousJustifiedCheckpoint = prevJust
	s.CurrentJustifiedCheckpoint = curJust
	s.FinalizedCheckpoint = finalized
	s.InactivityScores = inactivityScores
	s.CurrentSyncCommittee = currentSC
	s.NextSyncCommittee = nextSC
	s.LatestExecutionPayloadHeader = payloadHeader
	s.NextWithdrawalIndex = nextWithdrawalIndex
	s.NextWithdrawalValidatorIndex = ValidatorIndex(nextWithdrawalValidatorIndex)
	s.HistoricalSummaries = summaries
	return nil
}
