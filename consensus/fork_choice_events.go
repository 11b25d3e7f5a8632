package consensus

// updateCheckpoints adopts justified/finalized checkpoints that are strictly
// newer than the store's current ones (§4.4 update_checkpoints).
func (s *Store) updateCheckpoints(justified, finalized Checkpoint) {
	if justified.Epoch > s.JustifiedCheckpoint.Epoch {
		s.JustifiedCheckpoint = justified
	}
	if finalized.Epoch > s.FinalizedCheckpoint.Epoch {
		s.FinalizedCheckpoint = finalized
	}
}

func (s *Store) onTickPerSlot(time uint64) {
	previousSlot := s.GetCurrentSlot()
	s.Time = time
	currentSlot := s.GetCurrentSlot()

	if currentSlot > previousSlot {
		s.ProposerBoostRoot = Root{}
	}
	if currentSlot <= previousSlot {
		return
	}

	if uint64(currentSlot)%s.Config.SlotsPerEpoch == 0 {
		s.updateCheckpoints(s.UnrealizedJustifiedCheckpoint, s.UnrealizedFinalizedCheckpoint)
	}
}

// OnTick advances the store's wall-clock time one slot at a time, matching
// the source's catch-up loop so intermediate slot boundaries still run
// their checkpoint-adoption logic (§4.4 on_tick).
func (s *Store) OnTick(time uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickSlot := Slot((time - s.GenesisTime) / s.Config.SecondsPerSlot)
	for tickSlot > s.GetCurrentSlot() {
		nextTime := s.GenesisTime + (uint64(s.GetCurrentSlot())+1)*s.Config.SecondsPerSlot
		s.onTickPerSlot(nextTime)
	}
	s.onTickPerSlot(time)
}

// OnBlock validates an incoming signed block against the store, runs the
// state transition, and records the resulting state/checkpoints (§4.4
// on_block). verifySignatures should be true for externally-received
// blocks and may be false when replaying already-verified local history.
func (s *Store) OnBlock(signed *SignedBeaconBlock, verifySignatures bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block := &signed.Message
	root, err := block.computeRoot(s.Config)
	if err != nil {
		return err
	}
	if _, exists := s.Blocks[root]; exists {
		return nil
	}

	parentState, ok := s.BlockStates[block.ParentRoot]
	if !ok {
		return ErrForkChoiceParentUnknown
	}
	if block.Slot <= s.Blocks[block.ParentRoot].Slot {
		return ErrForkChoiceBlockTooEarly
	}
	if block.Slot > s.GetCurrentSlot() {
		return ErrForkChoiceFutureBlock
	}

	finalizedSlot := StartSlotAtEpoch(s.Config, s.FinalizedCheckpoint.Epoch)
	ancestorAtFinalizedSlot, err := s.GetAncestor(block.ParentRoot, finalizedSlot)
	if err != nil || ancestorAtFinalizedSlot != s.FinalizedCheckpoint.Root {
		return ErrForkChoiceFinalityMismatch
	}

	newState := cloneBeaconState(parentState)
	if err := StateTransition(newState, signed, verifySignatures); err != nil {
		return err
	}

	preBlockHead := s.expectedHead()
	s.Blocks[root] = block
	s.BlockStates[root] = newState
	s.BlockTimeliness[root] = s.isTimely(block)

	currentEpoch := EpochAtSlot(s.Config, s.GetCurrentSlot())
	if newState.CurrentJustifiedCheckpoint.Epoch > s.UnrealizedJustifiedCheckpoint.Epoch {
		s.UnrealizedJustifiedCheckpoint = newState.CurrentJustifiedCheckpoint
	}
	if newState.FinalizedCheckpoint.Epoch > s.UnrealizedFinalizedCheckpoint.Epoch {
		s.UnrealizedFinalizedCheckpoint = newState.FinalizedCheckpoint
	}
	s.UnrealizedJustifications[root] = newState.CurrentJustifiedCheckpoint

	blockEpoch := EpochAtSlot(s.Config, block.Slot)
	if blockEpoch == currentEpoch {
		s.updateCheckpoints(newState.CurrentJustifiedCheckpoint, newState.FinalizedCheckpoint)
	}

	if preBlockHead == block.ParentRoot && s.isTimely(block) {
		s.ProposerBoostRoot = root
	}

	if _, ok := s.CheckpointStates[newState.CurrentJustifiedCheckpoint]; !ok {
		s.CheckpointStates[newState.CurrentJustifiedCheckpoint] = newState
	}
	return nil
}

// expectedHead returns the pre-block head, used only to decide proposer
// boost eligibility for the block currently being applied.
func (s *Store) expectedHead() Root {
	head, err := s.GetHead()
	if err != nil {
		return Root{}
	}
	return head
}

// isTimely reports whether block arrived within the first third of its
// slot's interval, per the attestation-timeliness window used for both
// block_timeliness bookkeeping and proposer-boost eligibility.
func (s *Store) isTimely(block *BeaconBlock) bool {
	slotStartTime := s.GenesisTime + uint64(block.Slot)*s.Config.SecondsPerSlot
	secondsIntoSlot := s.Time - slotStartTime
	return secondsIntoSlot < s.Config.SecondsPerSlot/s.Config.IntervalsPerSlot
}

// cloneBeaconState performs the shallow-plus-slice copy state_transition
// needs to mutate a fresh successor state without corrupting the parent's
// (still canonical) copy held elsewhere in the store.
func cloneBeaconState(s *BeaconState) *BeaconState {
	cp := *s
	cp.BlockRoots = append([]Root(nil), s.BlockRoots...)
	cp.StateRoots = append([]Root(nil), s.StateRoots...)
	cp.HistoricalRoots = append([]Root(nil), s.HistoricalRoots...)
	cp.Eth1DataVotes = append([]Eth1Data(nil), s.Eth1DataVotes...)
	cp.Validators = make([]*Validator, len(s.Validators))
	for i, v := range s.Validators {
		validatorCopy := *v
		cp.Validators[i] = &validatorCopy
	}
	cp.Balances = append([]Gwei(nil), s.Balances...)
	cp.RandaoMixes = append([]Root(nil), s.RandaoMixes...)
	cp.Slashings = append([]Gwei(nil), s.Slashings...)
	cp.PreviousEpochParticipation = append([]ParticipationFlags(nil), s.PreviousEpochParticipation...)
	cp.CurrentEpochParticipation = append([]ParticipationFlags(nil), s.CurrentEpochParticipation...)
	cp.InactivityScores = append([]uint64(nil), s.InactivityScores...)
	cp.HistoricalSummaries = append([]HistoricalSummary(nil), s.HistoricalSummaries...)
	return &cp
}

// OnAttestation validates an attestation and updates the relevant
// validators' latest messages (§4.4 on_attestation, simplified to skip the
// network-arrival-time gossip rules that belong to the networking layer).
func (s *Store) OnAttestation(att *Attestation, verifySignatures bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := att.Data.Target
	blockState, ok := s.BlockStates[att.Data.BeaconBlockRoot]
	if !ok {
		return ErrForkChoiceUnknownState
	}

	indexed, err := blockState.GetIndexedAttestation(att)
	if err != nil {
		return err
	}
	if verifySignatures {
		if err := validateIndexedAttestation(blockState, indexed, true); err != nil {
			return err
		}
	}

	for _, idx := range indexed.AttestingIndices {
		if s.EquivocatingIndices[idx] {
			continue
		}
		existing, ok := s.LatestMessages[idx]
		if !ok || target.Epoch > existing.Epoch {
			s.LatestMessages[idx] = LatestMessage{Epoch: target.Epoch, Root: target.Root}
		}
	}
	return nil
}

// OnAttesterSlashing records the validators proven to have double-voted so
// GetWeight excludes their latest messages from every subtree (§4.4).
func (s *Store) OnAttesterSlashing(as *AttesterSlashing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set1 := make(map[ValidatorIndex]bool, len(as.Attestation1.AttestingIndices))
	for _, idx := range as.Attestation1.AttestingIndices {
		set1[idx] = true
	}
	for _, idx := range as.Attestation2.AttestingIndices {
		if set1[idx] {
			s.EquivocatingIndices[idx] = true
		}
	}
}

// GetProposerHead returns the block the next proposer should build on: the
// LMD-GHOST head, unless a late-arriving single child at the head slot
// would justify reorging to its parent (§4.4 Deneb reorg rule, §12).
func (s *Store) GetProposerHead(headRoot Root) Root {
	head, ok := s.Blocks[headRoot]
	if !ok {
		return headRoot
	}
	parentRoot := head.ParentRoot
	parentState, ok := s.BlockStates[parentRoot]
	if !ok {
		return headRoot
	}

	currentSlot := s.GetCurrentSlot()
	if head.Slot != currentSlot {
		return headRoot
	}
	if s.BlockTimeliness[headRoot] {
		return headRoot
	}

	headWeight, err := s.GetWeight(headRoot)
	if err != nil {
		return headRoot
	}
	parentWeight, err := s.GetWeight(parentRoot)
	if err != nil {
		return headRoot
	}

	reorgThreshold := calculateCommitteeFraction(parentState, s.Config.ReorgHeadWeightThreshold)
	parentThreshold := calculateCommitteeFraction(parentState, s.Config.ReorgParentWeightThreshold)

	if headWeight >= reorgThreshold {
		return headRoot
	}
	if parentWeight < parentThreshold {
		return headRoot
	}
	if uint64(currentSlot)-uint64(s.FinalizedCheckpoint.Epoch)*s.Config.SlotsPerEpoch > s.Config.ReorgMaxEpochsSinceFinalization*s.Config.SlotsPerEpoch {
		return headRoot
	}
	return parentRoot
}
