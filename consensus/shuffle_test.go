package consensus

import (
	"testing"

	"github.com/ethclient/deneb-beacon/consensus/params"
)

func TestComputeShuffledIndexIsPermutation(t *testing.T) {
	cfg := params.QuickConfig()
	seed := [32]byte{1, 2, 3}
	const n = 64

	seen := make(map[uint64]bool, n)
	for i := uint64(0); i < n; i++ {
		shuffled, err := ComputeShuffledIndex(cfg, i, n, seed)
		if err != nil {
			t.Fatalf("ComputeShuffledIndex(%d) error: %v", i, err)
		}
		if shuffled >= n {
			t.Fatalf("ComputeShuffledIndex(%d) = %d, out of range [0,%d)", i, shuffled, n)
		}
		if seen[shuffled] {
			t.Fatalf("ComputeShuffledIndex produced duplicate output %d for index %d", shuffled, i)
		}
		seen[shuffled] = true
	}
	if len(seen) != n {
		t.Fatalf("expected a full permutation of %d indices, got %d distinct outputs", n, len(seen))
	}
}

func TestComputeShuffledIndexIsDeterministic(t *testing.T) {
	cfg := params.QuickConfig()
	seed := [32]byte{9, 9, 9}

	a, err := ComputeShuffledIndex(cfg, 5, 32, seed)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputeShuffledIndex(cfg, 5, 32, seed)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("ComputeShuffledIndex is not deterministic: %d != %d", a, b)
	}
}

func TestComputeShuffledIndexRejectsOutOfRange(t *testing.T) {
	cfg := params.QuickConfig()
	if _, err := ComputeShuffledIndex(cfg, 10, 10, [32]byte{}); err != ErrIndexOutOfRange {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := ComputeShuffledIndex(cfg, 0, 0, [32]byte{}); err != ErrZeroIndexCount {
		t.Fatalf("expected ErrZeroIndexCount, got %v", err)
	}
}

func TestComputeCommitteePartitionsIndices(t *testing.T) {
	cfg := params.QuickConfig()
	seed := [32]byte{4, 5, 6}
	indices := make([]ValidatorIndex, 40)
	for i := range indices {
		indices[i] = ValidatorIndex(i)
	}

	const committeeCount = 4
	seen := make(map[ValidatorIndex]bool, len(indices))
	for c := uint64(0); c < committeeCount; c++ {
		committee, err := ComputeCommittee(cfg, indices, seed, c, committeeCount)
		if err != nil {
			t.Fatalf("ComputeCommittee(%d) error: %v", c, err)
		}
		for _, idx := range committee {
			if seen[idx] {
				t.Fatalf("validator %d assigned to more than one committee", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != len(indices) {
		t.Fatalf("committees cover %d validators, want all %d", len(seen), len(indices))
	}
}

func TestComputeProposerIndexPicksActiveValidator(t *testing.T) {
	cfg := params.QuickConfig()
	active := []ValidatorIndex{0, 1, 2, 3, 4, 5, 6, 7}
	effectiveBalance := func(ValidatorIndex) Gwei { return Gwei(cfg.MaxEffectiveBalance) }

	proposer, err := ComputeProposerIndex(cfg, active, effectiveBalance, [32]byte{7})
	if err != nil {
		t.Fatalf("ComputeProposerIndex error: %v", err)
	}
	found := false
	for _, a := range active {
		if a == proposer {
			found = true
		}
	}
	if !found {
		t.Fatalf("ComputeProposerIndex returned %d, not a member of the active set", proposer)
	}
}

func TestComputeCommitteeCountPerSlotBounds(t *testing.T) {
	cfg := params.Mainnet()
	if got := ComputeCommitteeCountPerSlot(cfg, 0); got != 1 {
		t.Fatalf("ComputeCommitteeCountPerSlot(0) = %d, want 1 (floor at 1)", got)
	}
	huge := cfg.MaxCommitteesPerSlot * cfg.SlotsPerEpoch * cfg.TargetCommitteeSize * 10
	if got := ComputeCommitteeCountPerSlot(cfg, huge); got != cfg.MaxCommitteesPerSlot {
		t.Fatalf("ComputeCommitteeCountPerSlot(huge) = %d, want capped at %d", got, cfg.MaxCommitteesPerSlot)
	}
}
