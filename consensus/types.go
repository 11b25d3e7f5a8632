// Package consensus implements the Deneb beacon-chain state-transition
// function and fork-choice store. It consumes SSZ-encoded containers (see
// package ssz) and BLS12-381 signatures (see package crypto); it is
// otherwise free of I/O — callers supply wall-clock time and receive
// deterministic state transitions or errors.
package consensus

import "github.com/ethclient/deneb-beacon/consensus/params"

// Slot is a 12-second (mainnet) time unit since genesis.
type Slot uint64

// Epoch is a SlotsPerEpoch-slot unit used for committee rotation and
// finality accounting.
type Epoch uint64

// ValidatorIndex identifies a validator's position in the registry.
type ValidatorIndex uint64

// CommitteeIndex identifies a committee within a slot.
type CommitteeIndex uint64

// Gwei is a balance denominated in Gwei (10^-9 ETH).
type Gwei uint64

// Root is a 32-byte Merkle tree-hash root or block root.
type Root [32]byte

// BLSPubkey is a compressed 48-byte BLS12-381 G1 public key.
type BLSPubkey [48]byte

// BLSSignature is a compressed 96-byte BLS12-381 G2 signature.
type BLSSignature [96]byte

// ForkVersion is a 4-byte fork identifier.
type ForkVersion [4]byte

// Domain is a 32-byte domain separation value mixed into signing roots.
type Domain [32]byte

// ParticipationFlags packs TIMELY_SOURCE / TIMELY_TARGET / TIMELY_HEAD bits.
type ParticipationFlags uint8

const (
	TimelySourceFlag ParticipationFlags = 1 << 0
	TimelyTargetFlag ParticipationFlags = 1 << 1
	TimelyHeadFlag   ParticipationFlags = 1 << 2
)

// EpochAtSlot returns slot / SLOTS_PER_EPOCH.
func EpochAtSlot(cfg params.Config, slot Slot) Epoch {
	return Epoch(uint64(slot) / cfg.SlotsPerEpoch)
}

// StartSlotAtEpoch returns epoch * SLOTS_PER_EPOCH.
func StartSlotAtEpoch(cfg params.Config, epoch Epoch) Slot {
	return Slot(uint64(epoch) * cfg.SlotsPerEpoch)
}

// ActivationExitEpoch returns epoch + 1 + MAX_SEED_LOOKAHEAD.
func ActivationExitEpoch(cfg params.Config, epoch Epoch) Epoch {
	return epoch + 1 + Epoch(cfg.MaxSeedLookahead)
}

// IsActiveValidator reports whether v is active at the given epoch:
// activation_epoch <= epoch < exit_epoch.
func IsActiveValidator(v *Validator, epoch Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashableValidator reports whether v can still be slashed: not already
// slashed, and its activation / withdrawability window still straddles
// epoch: activation_epoch <= epoch < withdrawable_epoch.
func IsSlashableValidator(v *Validator, epoch Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// IsSlashableAttestationData reports whether a validator casting both d1 and
// d2 committed an FFG double vote or a surround vote.
func IsSlashableAttestationData(d1, d2 *AttestationData) bool {
	doubleVote := d1.Target.Epoch == d2.Target.Epoch && !d1.Equal(d2)
	surroundVote := d1.Source.Epoch < d2.Source.Epoch && d2.Target.Epoch < d1.Target.Epoch
	return doubleVote || surroundVote
}
