package consensus

import (
	"errors"
	"sort"
	"sync"

	"github.com/ethclient/deneb-beacon/consensus/params"
)

// BeaconState errors.
var (
	ErrStateNilState      = errors.New("consensus: nil beacon state")
	ErrStateSlotTooOld    = errors.New("consensus: requested slot behind the state's retained window")
	ErrStateSlotInFuture  = errors.New("consensus: requested slot is not strictly behind current slot")
	ErrStateUnknownIndex  = errors.New("consensus: validator index out of range")
)

// BeaconState is the full Deneb state (§3). It is owned exclusively by its
// holder; mutation happens only through the state-transition functions in
// this package. A sync.RWMutex guards concurrent read access the way the
// teacher's BeaconStateV2/FullBeaconState types do, even though the
// state-transition function itself is single-threaded per §5 — callers may
// hold read snapshots for RPC while a writer advances the canonical copy.
type BeaconState struct {
	mu sync.RWMutex

	Config params.Config

	GenesisTime           uint64
	GenesisValidatorsRoot Root
	Slot                  Slot
	Fork                  Fork

	LatestBlockHeader BeaconBlockHeader
	BlockRoots        []Root // ring buffer, length SlotsPerHistoricalRoot
	StateRoots        []Root // ring buffer, length SlotsPerHistoricalRoot
	HistoricalRoots   []Root // frozen pre-Capella roots

	Eth1Data         Eth1Data
	Eth1DataVotes    []Eth1Data
	Eth1DepositIndex uint64

	Validators []*Validator
	Balances   []Gwei

	RandaoMixes []Root // ring buffer, length EpochsPerHistoricalVector

	Slashings []Gwei // ring buffer, length EpochsPerSlashingsVector

	PreviousEpochParticipation []ParticipationFlags
	CurrentEpochParticipation  []ParticipationFlags

	JustificationBits [4]bool
	PreviousJustifiedCheckpoint Checkpoint
	CurrentJustifiedCheckpoint  Checkpoint
	FinalizedCheckpoint         Checkpoint

	InactivityScores []uint64

	CurrentSyncCommittee *SyncCommittee
	NextSyncCommittee    *SyncCommittee

	LatestExecutionPayloadHeader ExecutionPayloadHeader

	NextWithdrawalIndex          uint64
	NextWithdrawalValidatorIndex ValidatorIndex

	HistoricalSummaries []HistoricalSummary
}

// NewBeaconState allocates the ring buffers for a fresh genesis state.
func NewBeaconState(cfg params.Config) *BeaconState {
	return &BeaconState{
		Config:      cfg,
		BlockRoots:  make([]Root, cfg.SlotsPerHistoricalRoot),
		StateRoots:  make([]Root, cfg.SlotsPerHistoricalRoot),
		RandaoMixes: make([]Root, cfg.EpochsPerHistoricalVector),
		Slashings:   make([]Gwei, cfg.EpochsPerSlashingsVector),
	}
}

// GetCurrentEpoch returns compute_epoch_at_slot(state.slot).
func (s *BeaconState) GetCurrentEpoch() Epoch {
	return EpochAtSlot(s.Config, s.Slot)
}

// GetPreviousEpoch returns the previous epoch, clamped at genesis so it
// never underflows (current epoch stays GenesisEpoch at slot 0).
func (s *BeaconState) GetPreviousEpoch() Epoch {
	cur := s.GetCurrentEpoch()
	if cur == Epoch(s.Config.GenesisEpoch) {
		return cur
	}
	return cur - 1
}

// GetBlockRootAtSlot returns the block root at the requested slot; the slot
// must be within the last SlotsPerHistoricalRoot slots and strictly behind
// the current slot.
func (s *BeaconState) GetBlockRootAtSlot(slot Slot) (Root, error) {
	if slot >= s.Slot {
		return Root{}, ErrStateSlotInFuture
	}
	if uint64(s.Slot)-uint64(slot) > s.Config.SlotsPerHistoricalRoot {
		return Root{}, ErrStateSlotTooOld
	}
	return s.BlockRoots[uint64(slot)%s.Config.SlotsPerHistoricalRoot], nil
}

// GetBlockRoot returns the block root at the first slot of the given epoch.
func (s *BeaconState) GetBlockRoot(epoch Epoch) (Root, error) {
	return s.GetBlockRootAtSlot(StartSlotAtEpoch(s.Config, epoch))
}

// GetRandaoMix returns the RANDAO mix recorded for epoch.
func (s *BeaconState) GetRandaoMix(epoch Epoch) Root {
	return s.RandaoMixes[uint64(epoch)%s.Config.EpochsPerHistoricalVector]
}

// GetActiveValidatorIndices returns the sorted indices of validators active
// at the given epoch.
func (s *BeaconState) GetActiveValidatorIndices(epoch Epoch) []ValidatorIndex {
	out := make([]ValidatorIndex, 0, len(s.Validators))
	for i, v := range s.Validators {
		if IsActiveValidator(v, epoch) {
			out = append(out, ValidatorIndex(i))
		}
	}
	return out
}

// GetValidatorChurnLimit returns the epoch-transition exit-queue churn limit:
// max(MIN_PER_EPOCH_CHURN_LIMIT, active_count / CHURN_LIMIT_QUOTIENT).
func (s *BeaconState) GetValidatorChurnLimit(epoch Epoch) uint64 {
	active := uint64(len(s.GetActiveValidatorIndices(epoch)))
	limit := active / s.Config.ChurnLimitQuotient
	if limit < s.Config.MinPerEpochChurnLimit {
		limit = s.Config.MinPerEpochChurnLimit
	}
	return limit
}

// GetSeed derives the per-epoch, per-domain shuffling seed:
// sha256(domain_type || epoch || mix(epoch + EPOCHS_PER_HISTORICAL_VECTOR -
// MIN_SEED_LOOKAHEAD - 1)).
func (s *BeaconState) GetSeed(epoch Epoch, domainType [4]byte) [32]byte {
	mixEpoch := Epoch(uint64(epoch) + s.Config.EpochsPerHistoricalVector - s.Config.MinSeedLookahead - 1)
	mix := s.GetRandaoMix(mixEpoch)

	var buf [44]byte
	copy(buf[:4], domainType[:])
	epochBytes := uint64ToLE(uint64(epoch))
	copy(buf[4:12], epochBytes[:])
	copy(buf[12:], mix[:])
	return hashBytes(buf[:])
}

func uint64ToLE(v uint64) [8]byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// GetCommitteeCountPerSlot returns the number of committees for every slot
// in the given epoch.
func (s *BeaconState) GetCommitteeCountPerSlot(epoch Epoch) uint64 {
	active := uint64(len(s.GetActiveValidatorIndices(epoch)))
	return ComputeCommitteeCountPerSlot(s.Config, active)
}

// GetBeaconCommittee returns the beacon committee for the given slot and
// committee index.
func (s *BeaconState) GetBeaconCommittee(slot Slot, committeeIndex CommitteeIndex) ([]ValidatorIndex, error) {
	epoch := EpochAtSlot(s.Config, slot)
	committeesPerSlot := s.GetCommitteeCountPerSlot(epoch)
	indices := s.GetActiveValidatorIndices(epoch)
	seed := s.GetSeed(epoch, s.Config.DomainBeaconAttester)

	slotOffset := uint64(slot) % s.Config.SlotsPerEpoch
	idx := slotOffset*committeesPerSlot + uint64(committeeIndex)
	count := s.Config.SlotsPerEpoch * committeesPerSlot
	return ComputeCommittee(s.Config, indices, seed, idx, count)
}

// GetBeaconProposerIndex returns the elected proposer for state.Slot.
func (s *BeaconState) GetBeaconProposerIndex() (ValidatorIndex, error) {
	epoch := s.GetCurrentEpoch()
	seed := s.GetSeed(epoch, s.Config.DomainBeaconProposer)

	var buf [40]byte
	copy(buf[:32], seed[:])
	slotBytes := uint64ToLE(uint64(s.Slot))
	copy(buf[32:], slotBytes[:])
	proposerSeed := hashBytes(buf[:])

	indices := s.GetActiveValidatorIndices(epoch)
	return ComputeProposerIndex(s.Config, indices, func(vi ValidatorIndex) Gwei {
		return s.Validators[vi].EffectiveBalance
	}, proposerSeed)
}

// GetTotalBalance sums effective balances of the given indices, never
// returning less than EFFECTIVE_BALANCE_INCREMENT (avoids division by zero
// downstream).
func (s *BeaconState) GetTotalBalance(indices []ValidatorIndex) Gwei {
	var total uint64
	for _, idx := range indices {
		total += uint64(s.Validators[idx].EffectiveBalance)
	}
	if total < s.Config.EffectiveBalanceIncrement {
		total = s.Config.EffectiveBalanceIncrement
	}
	return Gwei(total)
}

// GetTotalActiveBalance sums effective balances of validators active in the
// current epoch.
func (s *BeaconState) GetTotalActiveBalance() Gwei {
	return s.GetTotalBalance(s.GetActiveValidatorIndices(s.GetCurrentEpoch()))
}

// GetDomain selects the fork version active for epoch (or the state's
// current fork if epoch is nil-equivalent zero-value sentinel handling is
// left to the caller) and derives the domain.
func (s *BeaconState) GetDomain(domainType [4]byte, epoch Epoch) Domain {
	currentEpoch := s.GetCurrentEpoch()
	version := s.Fork.CurrentVersion
	if epoch < s.Fork.Epoch {
		version = s.Fork.PreviousVersion
	}
	_ = currentEpoch
	return ComputeDomain(domainType, version, s.GenesisValidatorsRoot)
}

// GetAttestingIndices resolves an attestation's aggregation bitfield against
// its committee into a sorted list of validator indices.
func (s *BeaconState) GetAttestingIndices(data *AttestationData, aggregationBits []bool) ([]ValidatorIndex, error) {
	committee, err := s.GetBeaconCommittee(data.Slot, data.CommitteeIndex)
	if err != nil {
		return nil, err
	}
	out := make([]ValidatorIndex, 0, len(committee))
	for i, member := range committee {
		if i < len(aggregationBits) && aggregationBits[i] {
			out = append(out, member)
		}
	}
	return out, nil
}

// GetIndexedAttestation converts an Attestation into its IndexedAttestation
// form with sorted, deduplicated attesting indices.
func (s *BeaconState) GetIndexedAttestation(att *Attestation) (*IndexedAttestation, error) {
	bits := make([]bool, att.AggregationBits.Len())
	for i := range bits {
		bits[i] = att.AggregationBits.Get(i)
	}
	indices, err := s.GetAttestingIndices(&att.Data, bits)
	if err != nil {
		return nil, err
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return &IndexedAttestation{
		AttestingIndices: indices,
		Data:             att.Data,
		Signature:        att.Signature,
	}, nil
}
