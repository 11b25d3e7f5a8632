package consensus

import (
	"crypto/sha256"
	"errors"

	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/log"
	"github.com/ethclient/deneb-beacon/ssz"
)

// State-transition errors, grouped per §7 severity tiers via distinct
// sentinel values so callers can classify failures with errors.Is.
var (
	ErrStateRootMismatch      = errors.New("consensus: post-state root does not match signed block")
	ErrSlotNotAhead           = errors.New("consensus: target slot is not ahead of current slot")
	ErrHeaderSlotMismatch     = errors.New("consensus: block slot does not match state slot")
	ErrHeaderParentMismatch   = errors.New("consensus: parent root does not match latest block header")
	ErrHeaderProposerMismatch = errors.New("consensus: proposer index does not match expected proposer")
	ErrProposerSlashed        = errors.New("consensus: proposer has already been slashed")
	ErrRandaoInvalid          = errors.New("consensus: invalid RANDAO reveal signature")
	ErrProposerSlashingInvalid = errors.New("consensus: invalid proposer slashing")
	ErrAttesterSlashingInvalid = errors.New("consensus: invalid attester slashing")
	ErrAttesterSlashingNoneSlashed = errors.New("consensus: attester slashing slashed no one")
	ErrAttestationInvalid     = errors.New("consensus: invalid attestation")
	ErrDepositInvalidProof    = errors.New("consensus: invalid deposit Merkle proof")
	ErrVoluntaryExitInvalid   = errors.New("consensus: invalid voluntary exit")
	ErrBLSChangeInvalid       = errors.New("consensus: invalid BLS-to-execution change")
	ErrSyncAggregateInvalid   = errors.New("consensus: invalid sync committee aggregate")
	ErrWithdrawalsMismatch    = errors.New("consensus: payload withdrawals do not match expected withdrawals")
	ErrTooManyOperations      = errors.New("consensus: operation list exceeds its container limit")
	ErrBlobCommitmentInvalid  = errors.New("consensus: blob KZG commitment is not a well-formed compressed G1 point")
)

// StateTransition is the top-level entry point (§4.3): advances state to
// the block's slot, applies the block, and checks the resulting state root
// against signed_block.message.state_root.
func StateTransition(state *BeaconState, signed *SignedBeaconBlock, verifySignatures bool) error {
	block := &signed.Message
	logger := log.Default().Module("state_transition").WithSlot(uint64(block.Slot))

	if err := ProcessSlots(state, block.Slot); err != nil {
		logger.Error("advance slots failed", "err", err)
		return err
	}
	if err := ProcessBlock(state, block, verifySignatures); err != nil {
		logger.Error("process block failed", "err", err)
		return err
	}

	root, err := state.HashTreeRoot()
	if err != nil {
		return err
	}
	if Root(root) != block.StateRoot {
		logger.Error("post-state root mismatch", "got", Root(root), "want", block.StateRoot)
		return ErrStateRootMismatch
	}
	logger.Debug("state transition applied")
	return nil
}

// ProcessSlots advances state.Slot up to (but not including a second
// processing of) targetSlot, running epoch processing whenever a slot
// boundary crosses into a new epoch and caching roots into the historical
// ring buffers.
func ProcessSlots(state *BeaconState, targetSlot Slot) error {
	if targetSlot < state.Slot {
		return ErrSlotNotAhead
	}
	for state.Slot < targetSlot {
		if err := processSlot(state); err != nil {
			return err
		}
		if (uint64(state.Slot)+1)%state.Config.SlotsPerEpoch == 0 {
			if err := ProcessEpoch(state); err != nil {
				return err
			}
		}
		state.Slot++
	}
	return nil
}

func processSlot(state *BeaconState) error {
	previousStateRoot, err := state.HashTreeRoot()
	if err != nil {
		return err
	}
	state.StateRoots[uint64(state.Slot)%state.Config.SlotsPerHistoricalRoot] = Root(previousStateRoot)

	if state.LatestBlockHeader.StateRoot == (Root{}) {
		state.LatestBlockHeader.StateRoot = Root(previousStateRoot)
	}

	previousBlockRoot, err := state.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return err
	}
	state.BlockRoots[uint64(state.Slot)%state.Config.SlotsPerHistoricalRoot] = Root(previousBlockRoot)
	return nil
}

// ProcessBlock runs the block-processing pipeline (§4.3 step 2) in its
// fixed order.
func ProcessBlock(state *BeaconState, block *BeaconBlock, verifySignatures bool) error {
	if err := ProcessBlockHeader(state, block); err != nil {
		return err
	}
	if err := ProcessRandao(state, block, verifySignatures); err != nil {
		return err
	}
	ProcessEth1Data(state, &block.Body.Eth1Data)
	if err := ProcessOperations(state, &block.Body, verifySignatures); err != nil {
		return err
	}
	if err := ProcessSyncAggregate(state, &block.Body.SyncAggregate, verifySignatures); err != nil {
		return err
	}
	if err := ProcessWithdrawals(state, &block.Body.ExecutionPayload); err != nil {
		return err
	}
	if err := ProcessExecutionPayload(state, &block.Body.ExecutionPayload); err != nil {
		return err
	}
	if err := ProcessBlobKzgCommitments(state.Config, block.Body.BlobKzgCommitments); err != nil {
		return err
	}
	return nil
}

// ProcessBlockHeader validates and installs the new latest block header.
func ProcessBlockHeader(state *BeaconState, block *BeaconBlock) error {
	if block.Slot != state.Slot {
		return ErrHeaderSlotMismatch
	}
	if block.Slot <= state.LatestBlockHeader.Slot {
		return ErrHeaderSlotMismatch
	}

	expectedProposer, err := state.GetBeaconProposerIndex()
	if err != nil {
		return err
	}
	if block.ProposerIndex != expectedProposer {
		return ErrHeaderProposerMismatch
	}

	latestRoot, err := state.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return err
	}
	if block.ParentRoot != Root(latestRoot) {
		return ErrHeaderParentMismatch
	}

	if state.Validators[block.ProposerIndex].Slashed {
		return ErrProposerSlashed
	}

	bodyRoot, err := blockBodyHashTreeRoot(state.Config, &block.Body)
	if err != nil {
		return err
	}

	state.LatestBlockHeader = BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     Root{}, // filled in during the next processSlot call
		BodyRoot:      Root(bodyRoot),
	}
	return nil
}

// blockBodyHashTreeRoot Merkleizes every field of the block body in
// declaration order, each operation list following the same
// Container/List pattern state_ssz.go uses for BeaconState's own fields
// (see state_ssz_body.go for the per-operation helpers).
func blockBodyHashTreeRoot(cfg params.Config, body *BeaconBlockBody) ([32]byte, error) {
	maxIndices := cfg.MaxValidatorsPerCommittee

	return ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootByteList(body.RandaoReveal[:], 96),
		eth1DataHashTreeRoot(&body.Eth1Data),
		[32]byte(body.Graffiti),
		proposerSlashingsHashTreeRoot(body.ProposerSlashings, cfg.MaxProposerSlashings),
		attesterSlashingsHashTreeRoot(body.AttesterSlashings, cfg.MaxAttesterSlashings, maxIndices),
		attestationsHashTreeRoot(body.Attestations, cfg.MaxAttestations, cfg.MaxValidatorsPerCommittee),
		depositsHashTreeRoot(body.Deposits, cfg.MaxDeposits),
		voluntaryExitsHashTreeRoot(body.VoluntaryExits, cfg.MaxVoluntaryExits),
		syncAggregateHashTreeRoot(&body.SyncAggregate),
		executionPayloadHashTreeRoot(&body.ExecutionPayload, cfg.MaxWithdrawalsPerPayload),
		blsToExecutionChangesHashTreeRoot(body.BlsToExecutionChanges, cfg.MaxBlsToExecutionChanges),
		blobKzgCommitmentsHashTreeRoot(body.BlobKzgCommitments, cfg.MaxBlobCommitmentsPerBlock),
	}), nil
}

// ProcessRandao verifies the proposer's RANDAO reveal and XORs it into the
// current epoch's mix (§4.3).
func ProcessRandao(state *BeaconState, block *BeaconBlock, verifySignatures bool) error {
	epoch := state.GetCurrentEpoch()
	if verifySignatures {
		proposer := state.Validators[block.ProposerIndex]
		domain := state.GetDomain(state.Config.DomainRandao, epoch)
		epochRoot, _ := Checkpoint{Epoch: epoch}.HashTreeRoot()
		signingRoot := ComputeSigningRoot(Root(epochRoot), domain)
		if !VerifyBLS(proposer.Pubkey, signingRoot[:], block.Body.RandaoReveal) {
			return ErrRandaoInvalid
		}
	}

	revealHash := sha256.Sum256(block.Body.RandaoReveal[:])
	idx := uint64(epoch) % state.Config.EpochsPerHistoricalVector
	mix := state.RandaoMixes[idx]
	for i := 0; i < 32; i++ {
		mix[i] ^= revealHash[i]
	}
	state.RandaoMixes[idx] = mix
	return nil
}

// ProcessEth1Data appends the block's eth1 vote and updates state.Eth1Data
// once a majority accumulates within the voting period.
func ProcessEth1Data(state *BeaconState, data *Eth1Data) {
	state.Eth1DataVotes = append(state.Eth1DataVotes, *data)

	count := 0
	for _, v := range state.Eth1DataVotes {
		if v == *data {
			count++
		}
	}
	votingPeriodLength := state.Config.SlotsPerEpoch * 64
	if uint64(count)*2 > votingPeriodLength {
		state.Eth1Data = *data
	}
}

// ProcessOperations dispatches the fixed-order operation lists (§4.3).
func ProcessOperations(state *BeaconState, body *BeaconBlockBody, verifySignatures bool) error {
	if uint64(len(body.ProposerSlashings)) > state.Config.MaxProposerSlashings ||
		uint64(len(body.AttesterSlashings)) > state.Config.MaxAttesterSlashings ||
		uint64(len(body.Attestations)) > state.Config.MaxAttestations ||
		uint64(len(body.Deposits)) > state.Config.MaxDeposits ||
		uint64(len(body.VoluntaryExits)) > state.Config.MaxVoluntaryExits ||
		uint64(len(body.BlsToExecutionChanges)) > state.Config.MaxBlsToExecutionChanges {
		return ErrTooManyOperations
	}

	for i := range body.ProposerSlashings {
		if err := ProcessProposerSlashing(state, &body.ProposerSlashings[i], verifySignatures); err != nil {
			return err
		}
	}
	for i := range body.AttesterSlashings {
		if err := ProcessAttesterSlashing(state, &body.AttesterSlashings[i], verifySignatures); err != nil {
			return err
		}
	}
	for i := range body.Attestations {
		if err := ProcessAttestation(state, &body.Attestations[i], verifySignatures); err != nil {
			return err
		}
	}
	for i := range body.Deposits {
		if err := ProcessDeposit(state, &body.Deposits[i]); err != nil {
			return err
		}
	}
	for i := range body.VoluntaryExits {
		if err := ProcessVoluntaryExit(state, &body.VoluntaryExits[i], verifySignatures); err != nil {
			return err
		}
	}
	for i := range body.BlsToExecutionChanges {
		if err := ProcessBLSToExecutionChange(state, &body.BlsToExecutionChanges[i], verifySignatures); err != nil {
			return err
		}
	}
	return nil
}
