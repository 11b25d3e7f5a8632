package consensus

import (
	"testing"

	"github.com/ethclient/deneb-beacon/consensus/params"
)

func TestProcessSlotsAdvancesSlot(t *testing.T) {
	s := newTestState(8)
	if err := ProcessSlots(s, 3); err != nil {
		t.Fatalf("ProcessSlots error: %v", err)
	}
	if s.Slot != 3 {
		t.Fatalf("state.Slot = %d, want 3", s.Slot)
	}
}

func TestProcessSlotsRejectsBackwardTarget(t *testing.T) {
	s := newTestState(8)
	s.Slot = 5
	if err := ProcessSlots(s, 2); err != ErrSlotNotAhead {
		t.Fatalf("expected ErrSlotNotAhead, got %v", err)
	}
}

func TestProcessSlotsRunsEpochProcessingAtBoundary(t *testing.T) {
	s := newTestState(8)
	// Advancing exactly one full epoch should realize the genesis
	// justified/finalized checkpoints forward bookkeeping without panicking
	// and should leave the state at the target slot.
	target := Slot(s.Config.SlotsPerEpoch)
	if err := ProcessSlots(s, target); err != nil {
		t.Fatalf("ProcessSlots across an epoch boundary errored: %v", err)
	}
	if s.Slot != target {
		t.Fatalf("state.Slot = %d, want %d", s.Slot, target)
	}
}

func expectedProposerBlock(t *testing.T, s *BeaconState, slot Slot) *BeaconBlock {
	t.Helper()
	s.Slot = slot
	proposer, err := s.GetBeaconProposerIndex()
	if err != nil {
		t.Fatalf("GetBeaconProposerIndex error: %v", err)
	}
	parentRoot, err := s.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		t.Fatalf("LatestBlockHeader.HashTreeRoot error: %v", err)
	}
	return &BeaconBlock{Slot: slot, ProposerIndex: proposer, ParentRoot: Root(parentRoot)}
}

func TestProcessBlockHeaderInstallsHeader(t *testing.T) {
	s := newTestState(8)
	block := expectedProposerBlock(t, s, 1)

	if err := ProcessBlockHeader(s, block); err != nil {
		t.Fatalf("ProcessBlockHeader error: %v", err)
	}
	if s.LatestBlockHeader.Slot != 1 {
		t.Fatalf("LatestBlockHeader.Slot = %d, want 1", s.LatestBlockHeader.Slot)
	}
	if s.LatestBlockHeader.ProposerIndex != block.ProposerIndex {
		t.Fatalf("LatestBlockHeader.ProposerIndex = %d, want %d", s.LatestBlockHeader.ProposerIndex, block.ProposerIndex)
	}
}

func TestProcessBlockHeaderRejectsSlotMismatch(t *testing.T) {
	s := newTestState(8)
	block := expectedProposerBlock(t, s, 1)
	block.Slot = 2
	if err := ProcessBlockHeader(s, block); err != ErrHeaderSlotMismatch {
		t.Fatalf("expected ErrHeaderSlotMismatch, got %v", err)
	}
}

func TestProcessBlockHeaderRejectsWrongProposer(t *testing.T) {
	s := newTestState(8)
	block := expectedProposerBlock(t, s, 1)
	block.ProposerIndex = block.ProposerIndex + 1
	if int(block.ProposerIndex) >= len(s.Validators) {
		block.ProposerIndex = 0
	}
	if err := ProcessBlockHeader(s, block); err != ErrHeaderProposerMismatch {
		t.Fatalf("expected ErrHeaderProposerMismatch, got %v", err)
	}
}

func TestProcessBlockHeaderRejectsSlashedProposer(t *testing.T) {
	s := newTestState(8)
	block := expectedProposerBlock(t, s, 1)
	s.Validators[block.ProposerIndex].Slashed = true
	if err := ProcessBlockHeader(s, block); err != ErrProposerSlashed {
		t.Fatalf("expected ErrProposerSlashed, got %v", err)
	}
}

func TestProcessEth1DataAdoptsMajorityVote(t *testing.T) {
	s := newTestState(4)
	votingPeriodLength := s.Config.SlotsPerEpoch * 64
	vote := Eth1Data{DepositCount: 5, DepositRoot: Root{0x01}}

	for i := uint64(0); i < votingPeriodLength/2+1; i++ {
		ProcessEth1Data(s, &vote)
	}
	if s.Eth1Data != vote {
		t.Fatalf("Eth1Data = %+v, want majority vote %+v adopted", s.Eth1Data, vote)
	}
}

func TestProcessEth1DataDoesNotAdoptMinorityVote(t *testing.T) {
	s := newTestState(4)
	vote := Eth1Data{DepositCount: 5, DepositRoot: Root{0x01}}
	ProcessEth1Data(s, &vote)
	if s.Eth1Data == vote {
		t.Fatal("a single vote should not reach majority and must not be adopted")
	}
}

// TestBlockBodyHashTreeRootSensitiveToContents guards against a
// regression to a placeholder that only Merkleizes operation-list
// lengths: two bodies with the same list lengths but different graffiti
// must hash to different roots.
func TestBlockBodyHashTreeRootSensitiveToContents(t *testing.T) {
	cfg := params.QuickConfig()
	var body1, body2 BeaconBlockBody
	body1.Graffiti[0] = 0x01
	body2.Graffiti[0] = 0x02

	root1, err := blockBodyHashTreeRoot(cfg, &body1)
	if err != nil {
		t.Fatalf("blockBodyHashTreeRoot error: %v", err)
	}
	root2, err := blockBodyHashTreeRoot(cfg, &body2)
	if err != nil {
		t.Fatalf("blockBodyHashTreeRoot error: %v", err)
	}
	if root1 == root2 {
		t.Fatal("bodies differing only in graffiti produced identical roots")
	}
}

func TestBlockBodyHashTreeRootSensitiveToOperationContents(t *testing.T) {
	cfg := params.QuickConfig()
	var body1, body2 BeaconBlockBody
	body1.VoluntaryExits = []SignedVoluntaryExit{{Message: VoluntaryExit{ValidatorIndex: 1}}}
	body2.VoluntaryExits = []SignedVoluntaryExit{{Message: VoluntaryExit{ValidatorIndex: 2}}}

	root1, err := blockBodyHashTreeRoot(cfg, &body1)
	if err != nil {
		t.Fatalf("blockBodyHashTreeRoot error: %v", err)
	}
	root2, err := blockBodyHashTreeRoot(cfg, &body2)
	if err != nil {
		t.Fatalf("blockBodyHashTreeRoot error: %v", err)
	}
	if root1 == root2 {
		t.Fatal("voluntary exits differing only by validator index produced identical roots; content is not being Merkleized")
	}
}
