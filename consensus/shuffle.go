package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/holiman/uint256"
)

// Shuffling/committee errors.
var (
	ErrZeroIndexCount    = errors.New("consensus: shuffle index count is zero")
	ErrIndexOutOfRange   = errors.New("consensus: shuffle index out of range")
	ErrNoActiveValidators = errors.New("consensus: no active validators")
	ErrNoProposerFound   = errors.New("consensus: failed to select proposer after max iterations")
)

// ComputeShuffledIndex implements the "swap-or-not" shuffle (§4.2). For each
// of cfg.ShuffleRoundCount rounds it derives a pivot from hash(seed||round),
// computes the flip position, and swaps when the corresponding source-hash
// bit is set. Grounded on original_source/misc.rs compute_shuffled_index.
func ComputeShuffledIndex(cfg params.Config, index, indexCount uint64, seed [32]byte) (uint64, error) {
	if indexCount == 0 {
		return 0, ErrZeroIndexCount
	}
	if index >= indexCount {
		return 0, ErrIndexOutOfRange
	}

	cur := index
	for round := uint64(0); round < cfg.ShuffleRoundCount; round++ {
		var pivotInput [33]byte
		copy(pivotInput[:32], seed[:])
		pivotInput[32] = byte(round)
		pivotHash := sha256.Sum256(pivotInput[:])
		pivot := binary.LittleEndian.Uint64(pivotHash[:8]) % indexCount

		flip := (pivot + indexCount - cur) % indexCount
		position := cur
		if flip > position {
			position = flip
		}

		var srcInput [37]byte
		copy(srcInput[:32], seed[:])
		srcInput[32] = byte(round)
		binary.LittleEndian.PutUint32(srcInput[33:], uint32(position/256))
		source := sha256.Sum256(srcInput[:])

		byteIdx := (position % 256) / 8
		bitIdx := position % 8
		if (source[byteIdx]>>bitIdx)&1 != 0 {
			cur = flip
		}
	}
	return cur, nil
}

// ComputeCommittee returns indices[compute_shuffled_index(i, n, seed)] for i
// ranging over the committee's slice of the shuffled index space:
// [floor(n*index/count), floor(n*(index+1)/count)).
func ComputeCommittee(cfg params.Config, indices []ValidatorIndex, seed [32]byte, index, count uint64) ([]ValidatorIndex, error) {
	n := uint64(len(indices))
	if n == 0 {
		return nil, ErrNoActiveValidators
	}
	start := n * index / count
	end := n * (index + 1) / count

	out := make([]ValidatorIndex, 0, end-start)
	for i := start; i < end; i++ {
		shuffled, err := ComputeShuffledIndex(cfg, i, n, seed)
		if err != nil {
			return nil, err
		}
		out = append(out, indices[shuffled])
	}
	return out, nil
}

// computeProposerRandomByte derives random_byte(seed, i) =
// hash(seed || floor(i/32))[i%32], the per-candidate acceptance byte used
// by the balance-weighted proposer sampling loop.
func computeProposerRandomByte(seed [32]byte, i uint64) byte {
	var buf [40]byte
	copy(buf[:32], seed[:])
	binary.LittleEndian.PutUint64(buf[32:], i/32)
	h := sha256.Sum256(buf[:])
	return h[i%32]
}

// ComputeProposerIndex selects a proposer from activeIndices, biased by
// effective balance (§4.2): iterate candidates from the shuffled index
// space, accept when effective_balance*255 >= MAX_EFFECTIVE_BALANCE*random_byte.
func ComputeProposerIndex(cfg params.Config, activeIndices []ValidatorIndex, effectiveBalance func(ValidatorIndex) Gwei, seed [32]byte) (ValidatorIndex, error) {
	n := uint64(len(activeIndices))
	if n == 0 {
		return 0, ErrNoActiveValidators
	}

	maxEB := uint64(cfg.MaxEffectiveBalance)
	maxRandomByte := cfg.MaxRandomByte

	for i := uint64(0); i < n*1000; i++ {
		shuffled, err := ComputeShuffledIndex(cfg, i%n, n, seed)
		if err != nil {
			return 0, err
		}
		candidate := activeIndices[shuffled]
		randByte := uint64(computeProposerRandomByte(seed, i))
		eb := uint64(effectiveBalance(candidate))
		// Carried in 256-bit arithmetic so a future config raising
		// MaxEffectiveBalance or MaxRandomByte can't silently wrap the
		// acceptance comparison.
		lhs := new(uint256.Int).Mul(uint256.NewInt(eb), uint256.NewInt(maxRandomByte))
		rhs := new(uint256.Int).Mul(uint256.NewInt(maxEB), uint256.NewInt(randByte))
		if lhs.Cmp(rhs) >= 0 {
			return candidate, nil
		}
	}
	return 0, ErrNoProposerFound
}

// ComputeCommitteeCountPerSlot returns max(1, min(MAX_COMMITTEES_PER_SLOT,
// active_count / SLOTS_PER_EPOCH / TARGET_COMMITTEE_SIZE)).
func ComputeCommitteeCountPerSlot(cfg params.Config, activeCount uint64) uint64 {
	count := activeCount / cfg.SlotsPerEpoch / cfg.TargetCommitteeSize
	if count < 1 {
		count = 1
	}
	if count > cfg.MaxCommitteesPerSlot {
		count = cfg.MaxCommitteesPerSlot
	}
	return count
}
