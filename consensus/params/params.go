// Package params holds the Deneb-fork configuration constants consumed by
// the state-transition engine and fork-choice store. Values are mainnet
// defaults; QuickConfig trims them for fast-moving test chains.
package params

import "errors"

// Config groups every tunable constant the consensus engine depends on.
// A single Config value is threaded through BeaconState and Store so tests
// can swap in a minimal-preset chain without touching package-level state.
type Config struct {
	SlotsPerEpoch               uint64
	SecondsPerSlot              uint64
	MinSeedLookahead            uint64
	MaxSeedLookahead            uint64
	EpochsPerHistoricalVector   uint64
	EpochsPerSlashingsVector    uint64
	SlotsPerHistoricalRoot      uint64
	ShuffleRoundCount           uint64
	TargetCommitteeSize         uint64
	MaxCommitteesPerSlot        uint64
	MaxValidatorsPerCommittee   uint64
	MinPerEpochChurnLimit       uint64
	ChurnLimitQuotient          uint64
	MaxEffectiveBalance         uint64
	EffectiveBalanceIncrement   uint64
	HysteresisQuotient          uint64
	HysteresisDownwardMultiplier uint64
	HysteresisUpwardMultiplier  uint64
	EjectionBalance             uint64
	MinDepositAmount            uint64
	MinSlashingPenaltyQuotient  uint64
	WhistleblowerRewardQuotient uint64
	ProposerWeight              uint64
	WeightDenominator           uint64
	TimelySourceWeight          uint64
	TimelyTargetWeight          uint64
	TimelyHeadWeight            uint64
	SyncRewardWeight            uint64
	MinAttestationInclusionDelay uint64
	MinValidatorWithdrawabilityDelay uint64
	ShardCommitteePeriod        uint64
	FarFutureEpoch              uint64
	GenesisEpoch                uint64
	MaxRandomByte               uint64
	DepositContractTreeDepth    uint64
	MaxDeposits                 uint64
	MaxAttestations             uint64
	MaxAttesterSlashings        uint64
	MaxProposerSlashings        uint64
	MaxVoluntaryExits           uint64
	MaxBlsToExecutionChanges    uint64
	MaxWithdrawalsPerPayload    uint64
	MaxValidatorsPerWithdrawalsSweep uint64
	SyncCommitteeSize           uint64
	EpochsPerSyncCommitteePeriod uint64
	ValidatorRegistryLimit      uint64
	InactivityScoreBias         uint64
	InactivityScoreRecoveryRate uint64
	ProposerScoreBoost          uint64 // percent
	ReorgHeadWeightThreshold    uint64 // percent
	ReorgParentWeightThreshold  uint64 // percent
	ReorgMaxEpochsSinceFinalization uint64
	IntervalsPerSlot            uint64
	MaxBlobCommitmentsPerBlock  uint64

	BaseRewardFactor                 uint64
	MinEpochsToInactivityPenalty     uint64
	InactivityPenaltyQuotient        uint64
	ProportionalSlashingMultiplier   uint64
	EpochsPerEth1VotingPeriod        uint64

	GenesisForkVersion   [4]byte
	AltairForkVersion    [4]byte
	BellatrixForkVersion [4]byte
	CapellaForkVersion   [4]byte
	DenebForkVersion     [4]byte

	DomainBeaconProposer      [4]byte
	DomainBeaconAttester      [4]byte
	DomainRandao              [4]byte
	DomainDeposit             [4]byte
	DomainVoluntaryExit       [4]byte
	DomainSelectionProof      [4]byte
	DomainAggregateAndProof   [4]byte
	DomainSyncCommittee       [4]byte
	DomainApplicationMask     [4]byte
	DomainBlsToExecutionChange [4]byte

	BlsWithdrawalPrefix   byte
	Eth1AddressWithdrawalPrefix byte
}

// ErrUnknownPreset is the error value for an unrecognised preset name. No
// function in this package returns it; Mainnet and QuickConfig are selected
// by calling them directly.
var ErrUnknownPreset = errors.New("params: unknown preset")

// Mainnet returns the canonical Deneb mainnet configuration.
func Mainnet() Config {
	return Config{
		SlotsPerEpoch:                32,
		SecondsPerSlot:               12,
		MinSeedLookahead:             1,
		MaxSeedLookahead:             4,
		EpochsPerHistoricalVector:    65536,
		EpochsPerSlashingsVector:     8192,
		SlotsPerHistoricalRoot:       8192,
		ShuffleRoundCount:            90,
		TargetCommitteeSize:          128,
		MaxCommitteesPerSlot:         64,
		MaxValidatorsPerCommittee:    2048,
		MinPerEpochChurnLimit:        4,
		ChurnLimitQuotient:           65536,
		MaxEffectiveBalance:          32_000_000_000,
		EffectiveBalanceIncrement:    1_000_000_000,
		HysteresisQuotient:           4,
		HysteresisDownwardMultiplier: 1,
		HysteresisUpwardMultiplier:   5,
		EjectionBalance:              16_000_000_000,
		MinDepositAmount:             1_000_000_000,
		MinSlashingPenaltyQuotient:   64,
		WhistleblowerRewardQuotient:  512,
		ProposerWeight:               8,
		WeightDenominator:            64,
		TimelySourceWeight:           14,
		TimelyTargetWeight:           26,
		TimelyHeadWeight:             14,
		SyncRewardWeight:             2,
		MinAttestationInclusionDelay: 1,
		MinValidatorWithdrawabilityDelay: 256,
		ShardCommitteePeriod:         256,
		FarFutureEpoch:               0xFFFFFFFFFFFFFFFF,
		GenesisEpoch:                 0,
		MaxRandomByte:                255,
		DepositContractTreeDepth:     32,
		MaxDeposits:                  16,
		MaxAttestations:              128,
		MaxAttesterSlashings:         2,
		MaxProposerSlashings:         16,
		MaxVoluntaryExits:            16,
		MaxBlsToExecutionChanges:     16,
		MaxWithdrawalsPerPayload:     16,
		MaxValidatorsPerWithdrawalsSweep: 16384,
		SyncCommitteeSize:            512,
		EpochsPerSyncCommitteePeriod: 256,
		ValidatorRegistryLimit:       1 << 40,
		InactivityScoreBias:          4,
		InactivityScoreRecoveryRate:  16,
		ProposerScoreBoost:           40,
		ReorgHeadWeightThreshold:     20,
		ReorgParentWeightThreshold:   160,
		ReorgMaxEpochsSinceFinalization: 2,
		IntervalsPerSlot:             3,
		MaxBlobCommitmentsPerBlock:   6,

		BaseRewardFactor:               64,
		MinEpochsToInactivityPenalty:   4,
		InactivityPenaltyQuotient:      3 * (1 << 24),
		ProportionalSlashingMultiplier: 3,
		EpochsPerEth1VotingPeriod:      64,

		GenesisForkVersion:   [4]byte{0x00, 0x00, 0x00, 0x00},
		AltairForkVersion:    [4]byte{0x01, 0x00, 0x00, 0x00},
		BellatrixForkVersion: [4]byte{0x02, 0x00, 0x00, 0x00},
		CapellaForkVersion:   [4]byte{0x03, 0x00, 0x00, 0x00},
		DenebForkVersion:     [4]byte{0x04, 0x00, 0x00, 0x00},

		DomainBeaconProposer:       [4]byte{0x00, 0x00, 0x00, 0x00},
		DomainBeaconAttester:       [4]byte{0x01, 0x00, 0x00, 0x00},
		DomainRandao:               [4]byte{0x02, 0x00, 0x00, 0x00},
		DomainDeposit:              [4]byte{0x03, 0x00, 0x00, 0x00},
		DomainVoluntaryExit:        [4]byte{0x04, 0x00, 0x00, 0x00},
		DomainSelectionProof:       [4]byte{0x05, 0x00, 0x00, 0x00},
		DomainAggregateAndProof:    [4]byte{0x06, 0x00, 0x00, 0x00},
		DomainSyncCommittee:        [4]byte{0x07, 0x00, 0x00, 0x00},
		DomainApplicationMask:      [4]byte{0x00, 0x00, 0x00, 0x01},
		DomainBlsToExecutionChange: [4]byte{0x0A, 0x00, 0x00, 0x00},

		BlsWithdrawalPrefix:         0x00,
		Eth1AddressWithdrawalPrefix: 0x01,
	}
}

// QuickConfig returns a fast-moving preset for tests and local chains:
// 8 slots per epoch and short vector lengths, grounded on the teacher's
// QuickSlotsConfig pattern (consensus/config.go).
func QuickConfig() Config {
	c := Mainnet()
	c.SlotsPerEpoch = 8
	c.EpochsPerHistoricalVector = 64
	c.EpochsPerSlashingsVector = 64
	c.SlotsPerHistoricalRoot = 64
	c.ShardCommitteePeriod = 4
	c.MinValidatorWithdrawabilityDelay = 4
	c.EpochsPerSyncCommitteePeriod = 8
	return c
}

// Validate sanity-checks a Config for internally-consistent values.
func (c Config) Validate() error {
	if c.SlotsPerEpoch == 0 {
		return errors.New("params: slots per epoch must be positive")
	}
	if c.MaxEffectiveBalance%c.EffectiveBalanceIncrement != 0 {
		return errors.New("params: max effective balance must be a multiple of the increment")
	}
	return nil
}
