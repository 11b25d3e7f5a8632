package consensus

import (
	"bytes"
	"errors"
	"sync"

	"github.com/ethclient/deneb-beacon/consensus/params"
)

// Fork-choice errors.
var (
	ErrForkChoiceUnknownBlock    = errors.New("consensus: unknown block root in fork-choice store")
	ErrForkChoiceUnknownState    = errors.New("consensus: unknown state for checkpoint/block root")
	ErrForkChoiceBlockTooEarly   = errors.New("consensus: block slot is not later than its parent's")
	ErrForkChoiceFutureBlock     = errors.New("consensus: block slot is ahead of the current store slot")
	ErrForkChoiceParentUnknown   = errors.New("consensus: block's parent is not in the store")
	ErrForkChoiceFinalityMismatch = errors.New("consensus: block does not descend from the finalized checkpoint")
)

// LatestMessage records a validator's most recent attestation target
// (§12), grounded on original_source/fork_choice/latest_message.rs.
type LatestMessage struct {
	Epoch Epoch
	Root  Root
}

// Store is the LMD-GHOST fork-choice store (§4.4, §12), grounded on
// original_source/fork_choice/store.rs's field layout. Unlike that source,
// GetAncestor here walks to the block's actual parent on recursion — the
// source recurses with its arguments unchanged, which never terminates
// past the first too-late block.
type Store struct {
	mu sync.RWMutex

	Config params.Config

	Time        uint64
	GenesisTime uint64

	JustifiedCheckpoint           Checkpoint
	FinalizedCheckpoint           Checkpoint
	UnrealizedJustifiedCheckpoint Checkpoint
	UnrealizedFinalizedCheckpoint Checkpoint

	ProposerBoostRoot   Root
	EquivocatingIndices map[ValidatorIndex]bool

	Blocks                   map[Root]*BeaconBlock
	BlockStates              map[Root]*BeaconState
	BlockTimeliness          map[Root]bool
	CheckpointStates         map[Checkpoint]*BeaconState
	LatestMessages           map[ValidatorIndex]LatestMessage
	UnrealizedJustifications map[Root]Checkpoint
}

// NewStore seeds the fork-choice store from a genesis (or checkpoint-sync)
// block and its post-state, per get_forkchoice_store (§4.4).
func NewStore(cfg params.Config, genesisTime uint64, anchorBlock *BeaconBlock, anchorState *BeaconState) (*Store, error) {
	anchorRoot, err := anchorBlock.computeRoot(cfg)
	if err != nil {
		return nil, err
	}
	anchorEpoch := EpochAtSlot(cfg, anchorBlock.Slot)
	checkpoint := Checkpoint{Epoch: anchorEpoch, Root: anchorRoot}

	s := &Store{
		Config:                        cfg,
		Time:                          genesisTime,
		GenesisTime:                   genesisTime,
		JustifiedCheckpoint:           checkpoint,
		FinalizedCheckpoint:           checkpoint,
		UnrealizedJustifiedCheckpoint: checkpoint,
		UnrealizedFinalizedCheckpoint: checkpoint,
		EquivocatingIndices:           make(map[ValidatorIndex]bool),
		Blocks:                        map[Root]*BeaconBlock{anchorRoot: anchorBlock},
		BlockStates:                   map[Root]*BeaconState{anchorRoot: anchorState},
		BlockTimeliness:               map[Root]bool{anchorRoot: true},
		CheckpointStates:              map[Checkpoint]*BeaconState{checkpoint: anchorState},
		LatestMessages:                make(map[ValidatorIndex]LatestMessage),
		UnrealizedJustifications:      map[Root]Checkpoint{anchorRoot: checkpoint},
	}
	return s, nil
}

func (b *BeaconBlock) computeRoot(cfg params.Config) ([32]byte, error) {
	var header BeaconBlockHeader
	bodyRoot, err := blockBodyHashTreeRoot(cfg, &b.Body)
	if err != nil {
		return [32]byte{}, err
	}
	header = BeaconBlockHeader{
		Slot: b.Slot, ProposerIndex: b.ProposerIndex, ParentRoot: b.ParentRoot,
		StateRoot: b.StateRoot, BodyRoot: Root(bodyRoot),
	}
	return header.HashTreeRoot()
}

// GetCurrentSlot returns the slot implied by store.Time (§4.4).
func (s *Store) GetCurrentSlot() Slot {
	return Slot((s.Time - s.GenesisTime) / s.Config.SecondsPerSlot)
}

// IsPreviousEpochJustified reports whether the store's justified checkpoint
// is for the epoch immediately before the current one, grounded on
// original_source/fork_choice/store.rs is_previous_epoch_justified.
func (s *Store) IsPreviousEpochJustified() bool {
	currentEpoch := EpochAtSlot(s.Config, s.GetCurrentSlot())
	return s.JustifiedCheckpoint.Epoch+1 == currentEpoch
}

// GetAncestor returns the root of root's ancestor at slot (or, if no block
// exists exactly at slot, i.e. it was skipped, the nearest ancestor at an
// earlier slot; root itself when root's own slot is <= slot). Fixes the
// non-terminating recursion in the Rust source by recursing on the block's
// ParentRoot rather than its own root.
func (s *Store) GetAncestor(root Root, slot Slot) (Root, error) {
	for {
		block, ok := s.Blocks[root]
		if !ok {
			return Root{}, ErrForkChoiceUnknownBlock
		}
		if block.Slot <= slot {
			return root, nil
		}
		root = block.ParentRoot
	}
}

// GetCheckpointBlock returns the block root that was canonical at the start
// of epoch, as seen from root.
func (s *Store) GetCheckpointBlock(root Root, epoch Epoch) (Root, error) {
	epochFirstSlot := StartSlotAtEpoch(s.Config, epoch)
	return s.GetAncestor(root, epochFirstSlot)
}

// getProposerScore returns the proposer-boost weight added to a boosted
// block's subtree: committee_weight * PROPOSER_SCORE_BOOST / 100, where
// committee_weight is one slot's share of the justified state's total
// active balance.
func (s *Store) getProposerScore() (Gwei, error) {
	state, ok := s.CheckpointStates[s.JustifiedCheckpoint]
	if !ok {
		return 0, ErrForkChoiceUnknownState
	}
	committeeWeight := uint64(state.GetTotalActiveBalance()) / s.Config.SlotsPerEpoch
	return Gwei(committeeWeight * s.Config.ProposerScoreBoost / 100), nil
}

// GetWeight returns root's LMD-GHOST weight: the summed effective balance
// of unslashed, non-equivocating validators whose latest attestation
// targets a descendant of root, plus the proposer-boost bonus when root is
// (an ancestor of) the boosted block (§4.4).
func (s *Store) GetWeight(root Root) (Gwei, error) {
	justifiedState, ok := s.CheckpointStates[s.JustifiedCheckpoint]
	if !ok {
		return 0, ErrForkChoiceUnknownState
	}
	block, ok := s.Blocks[root]
	if !ok {
		return 0, ErrForkChoiceUnknownBlock
	}

	currentEpoch := justifiedState.GetCurrentEpoch()
	var attestationScore Gwei
	for _, idx := range justifiedState.GetActiveValidatorIndices(currentEpoch) {
		if justifiedState.Validators[idx].Slashed {
			continue
		}
		if s.EquivocatingIndices[idx] {
			continue
		}
		msg, ok := s.LatestMessages[idx]
		if !ok {
			continue
		}
		ancestor, err := s.GetAncestor(msg.Root, block.Slot)
		if err != nil {
			continue
		}
		if ancestor == root {
			attestationScore += justifiedState.Validators[idx].EffectiveBalance
		}
	}

	if s.ProposerBoostRoot == (Root{}) {
		return attestationScore, nil
	}
	boostAncestor, err := s.GetAncestor(s.ProposerBoostRoot, block.Slot)
	if err != nil || boostAncestor != root {
		return attestationScore, nil
	}
	proposerScore, err := s.getProposerScore()
	if err != nil {
		return attestationScore, nil
	}
	return attestationScore + proposerScore, nil
}

// GetVotingSource returns the checkpoint that blockRoot's descendants vote
// from: its own current_justified_checkpoint if it is in the current
// epoch, otherwise the store's realized unrealized-justification record.
func (s *Store) GetVotingSource(blockRoot Root) (Checkpoint, error) {
	block, ok := s.Blocks[blockRoot]
	if !ok {
		return Checkpoint{}, ErrForkChoiceUnknownBlock
	}
	currentEpoch := EpochAtSlot(s.Config, s.GetCurrentSlot())
	blockEpoch := EpochAtSlot(s.Config, block.Slot)
	if currentEpoch > blockEpoch {
		cp, ok := s.UnrealizedJustifications[blockRoot]
		if !ok {
			return Checkpoint{}, ErrForkChoiceUnknownState
		}
		return cp, nil
	}
	state, ok := s.BlockStates[blockRoot]
	if !ok {
		return Checkpoint{}, ErrForkChoiceUnknownState
	}
	return state.CurrentJustifiedCheckpoint, nil
}

// calculateCommitteeFraction returns committee_weight * fractionPercent /
// 100, where committee_weight is one slot's share of total_active_balance,
// used by the proposer-boost reorg thresholds (§12, helpers.rs
// calculate_committee_fraction).
func calculateCommitteeFraction(state *BeaconState, fractionPercent uint64) Gwei {
	committeeWeight := uint64(state.GetTotalActiveBalance()) / state.Config.SlotsPerEpoch
	return Gwei(committeeWeight * fractionPercent / 100)
}

// filterBlockTree reports whether root is "viable" (its subtree may
// contain the head): either it has a viable child, or its voting source
// matches the store's justified checkpoint (or the justified checkpoint is
// still genesis).
func (s *Store) filterBlockTree(root Root, out map[Root]*BeaconBlock) bool {
	block, ok := s.Blocks[root]
	if !ok {
		return false
	}

	var children []Root
	for r, b := range s.Blocks {
		if b.ParentRoot == root {
			children = append(children, r)
		}
	}

	if len(children) > 0 {
		viable := false
		for _, child := range children {
			if s.filterBlockTree(child, out) {
				viable = true
			}
		}
		if viable {
			out[root] = block
			return true
		}
	}

	votingSource, err := s.GetVotingSource(root)
	if err != nil {
		return false
	}
	correctJustified := s.JustifiedCheckpoint.Epoch == Epoch(s.Config.GenesisEpoch) ||
		votingSource.Epoch == s.JustifiedCheckpoint.Epoch

	state, ok := s.BlockStates[root]
	if !ok {
		return false
	}
	correctFinalized := s.FinalizedCheckpoint.Epoch == Epoch(s.Config.GenesisEpoch) ||
		state.FinalizedCheckpoint.Equal(s.FinalizedCheckpoint)

	if correctJustified && correctFinalized {
		out[root] = block
		return true
	}
	return false
}

// getFilteredBlockTree returns the subset of store.Blocks viable to host
// the canonical head, rooted at the justified checkpoint.
func (s *Store) getFilteredBlockTree() map[Root]*BeaconBlock {
	out := make(map[Root]*BeaconBlock)
	s.filterBlockTree(s.JustifiedCheckpoint.Root, out)
	return out
}

// GetHead runs LMD-GHOST from the justified checkpoint (§4.4): at each
// level, descend into the child with the greatest weight, breaking ties by
// the LARGER 32-byte root (big-endian). A source variant of this algorithm
// breaks ties toward the smaller root; that favors whichever root a
// validator happens to compute first rather than converging deterministically
// the way every honest client's tie-break must, so ties here pick the larger
// root.
//
// GetHead and the other read helpers in this file take no lock of their
// own: OnBlock calls GetHead while already holding s.mu, and sync.RWMutex
// is not reentrant. Callers outside the On*/OnTick methods that need a
// consistent snapshot should take s.mu themselves.
func (s *Store) GetHead() (Root, error) {
	blocks := s.getFilteredBlockTree()
	head := s.JustifiedCheckpoint.Root
	justifiedSlot := StartSlotAtEpoch(s.Config, s.JustifiedCheckpoint.Epoch)

	for {
		var children []Root
		for root, block := range blocks {
			if block.ParentRoot == head && block.Slot > justifiedSlot {
				children = append(children, root)
			}
		}
		if len(children) == 0 {
			return head, nil
		}

		best := children[0]
		bestWeight, err := s.GetWeight(best)
		if err != nil {
			return Root{}, err
		}
		for _, candidate := range children[1:] {
			w, err := s.GetWeight(candidate)
			if err != nil {
				return Root{}, err
			}
			if w > bestWeight || (w == bestWeight && bytes.Compare(candidate[:], best[:]) > 0) {
				best = candidate
				bestWeight = w
			}
		}
		head = best
	}
}
