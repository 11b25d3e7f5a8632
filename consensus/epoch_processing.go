package consensus

import (
	"sort"

	"github.com/ethclient/deneb-beacon/log"
	"github.com/holiman/uint256"
)

// ProcessEpoch runs the fixed-order epoch-transition pipeline (§4.3),
// invoked once per epoch boundary from ProcessSlots.
func ProcessEpoch(state *BeaconState) error {
	log.Default().Module("epoch_processing").WithEpoch(uint64(state.GetCurrentEpoch())).
		Debug("processing epoch boundary")
	processJustificationAndFinalization(state)
	processInactivityUpdates(state)
	processRewardsAndPenalties(state)
	processRegistryUpdates(state)
	processSlashings(state)
	processEth1DataReset(state)
	processEffectiveBalanceUpdates(state)
	processSlashingsReset(state)
	processRandaoMixesReset(state)
	processHistoricalSummariesUpdate(state)
	processParticipationFlagUpdates(state)
	processSyncCommitteeUpdates(state)
	return nil
}

// getUnslashedParticipatingIndices returns active validators at epoch that
// are NOT slashed and have flag set in their epoch participation record.
// §9 flags the source's inverted slashed/unslashed filter (it kept slashed
// validators and dropped honest ones); the `!v.Slashed` guard below is the
// fix.
func getUnslashedParticipatingIndices(state *BeaconState, flag ParticipationFlags, epoch Epoch) []ValidatorIndex {
	var participation []ParticipationFlags
	if epoch == state.GetCurrentEpoch() {
		participation = state.CurrentEpochParticipation
	} else {
		participation = state.PreviousEpochParticipation
	}

	var out []ValidatorIndex
	for i, v := range state.Validators {
		if !IsActiveValidator(v, epoch) {
			continue
		}
		if v.Slashed {
			continue
		}
		if participation[i]&flag == 0 {
			continue
		}
		out = append(out, ValidatorIndex(i))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func processJustificationAndFinalization(state *BeaconState) {
	if state.GetCurrentEpoch() <= Epoch(state.Config.GenesisEpoch)+1 {
		return
	}
	previousEpoch := state.GetPreviousEpoch()
	currentEpoch := state.GetCurrentEpoch()

	previousIndices := getUnslashedParticipatingIndices(state, TimelyTargetFlag, previousEpoch)
	currentIndices := getUnslashedParticipatingIndices(state, TimelyTargetFlag, currentEpoch)
	totalActiveBalance := state.GetTotalActiveBalance()
	previousTargetBalance := state.GetTotalBalance(previousIndices)
	currentTargetBalance := state.GetTotalBalance(currentIndices)

	oldPreviousJustified := state.PreviousJustifiedCheckpoint
	oldCurrentJustified := state.CurrentJustifiedCheckpoint

	state.PreviousJustifiedCheckpoint = state.CurrentJustifiedCheckpoint
	state.JustificationBits[3] = state.JustificationBits[2]
	state.JustificationBits[2] = state.JustificationBits[1]
	state.JustificationBits[1] = state.JustificationBits[0]
	state.JustificationBits[0] = false

	if uint64(previousTargetBalance)*3 >= uint64(totalActiveBalance)*2 {
		root, _ := state.GetBlockRoot(previousEpoch)
		state.CurrentJustifiedCheckpoint = Checkpoint{Epoch: previousEpoch, Root: root}
		state.JustificationBits[1] = true
	}
	if uint64(currentTargetBalance)*3 >= uint64(totalActiveBalance)*2 {
		root, _ := state.GetBlockRoot(currentEpoch)
		state.CurrentJustifiedCheckpoint = Checkpoint{Epoch: currentEpoch, Root: root}
		state.JustificationBits[0] = true
	}

	bits := state.JustificationBits
	if bits[1] && bits[2] && bits[3] && oldPreviousJustified.Epoch+3 == currentEpoch {
		state.FinalizedCheckpoint = oldPreviousJustified
	}
	if bits[1] && bits[2] && oldPreviousJustified.Epoch+2 == currentEpoch {
		state.FinalizedCheckpoint = oldPreviousJustified
	}
	if bits[0] && bits[1] && bits[2] && oldCurrentJustified.Epoch+2 == currentEpoch {
		state.FinalizedCheckpoint = oldCurrentJustified
	}
	if bits[0] && bits[1] && oldCurrentJustified.Epoch+1 == currentEpoch {
		state.FinalizedCheckpoint = oldCurrentJustified
	}
}

// getEligibleValidatorIndices returns validators active in the previous
// epoch, plus already-slashed validators not yet one epoch from
// withdrawable (they still accrue inactivity/reward bookkeeping during
// their slashing window).
func getEligibleValidatorIndices(state *BeaconState) []ValidatorIndex {
	previousEpoch := state.GetPreviousEpoch()
	var out []ValidatorIndex
	for i, v := range state.Validators {
		if IsActiveValidator(v, previousEpoch) || (v.Slashed && previousEpoch+1 < v.WithdrawableEpoch) {
			out = append(out, ValidatorIndex(i))
		}
	}
	return out
}

// isInInactivityLeak reports whether finality has lagged far enough behind
// the current epoch that the inactivity-leak reward bypass applies.
func isInInactivityLeak(state *BeaconState) bool {
	return uint64(state.GetPreviousEpoch())-uint64(state.FinalizedCheckpoint.Epoch) > state.Config.MinEpochsToInactivityPenalty
}

func processInactivityUpdates(state *BeaconState) {
	if state.GetCurrentEpoch() == Epoch(state.Config.GenesisEpoch) {
		return
	}
	previousEpoch := state.GetPreviousEpoch()
	timelyTargetIndices := make(map[ValidatorIndex]bool)
	for _, idx := range getUnslashedParticipatingIndices(state, TimelyTargetFlag, previousEpoch) {
		timelyTargetIndices[idx] = true
	}

	leaking := isInInactivityLeak(state)
	for _, idx := range getEligibleValidatorIndices(state) {
		if timelyTargetIndices[idx] {
			if state.InactivityScores[idx] > 0 {
				state.InactivityScores[idx]--
			}
		} else {
			state.InactivityScores[idx] += state.Config.InactivityScoreBias
		}
		if !leaking {
			recovery := state.Config.InactivityScoreRecoveryRate
			if recovery > state.InactivityScores[idx] {
				recovery = state.InactivityScores[idx]
			}
			state.InactivityScores[idx] -= recovery
		}
	}
}

func getBaseReward(state *BeaconState, index ValidatorIndex) Gwei {
	totalActiveBalance := uint64(state.GetTotalActiveBalance())
	baseRewardPerIncrement := state.Config.EffectiveBalanceIncrement * state.Config.BaseRewardFactor / integerSqrt(totalActiveBalance)
	increments := uint64(state.Validators[index].EffectiveBalance) / state.Config.EffectiveBalanceIncrement
	return Gwei(increments * baseRewardPerIncrement)
}

func participationFlagWeight(state *BeaconState, flag ParticipationFlags) uint64 {
	switch flag {
	case TimelySourceFlag:
		return state.Config.TimelySourceWeight
	case TimelyTargetFlag:
		return state.Config.TimelyTargetWeight
	default:
		return state.Config.TimelyHeadWeight
	}
}

// getFlagIndexDeltas computes per-validator rewards/penalties for one
// participation flag across the previous epoch (Altair reward scheme).
func getFlagIndexDeltas(state *BeaconState, flag ParticipationFlags) ([]Gwei, []Gwei) {
	n := len(state.Validators)
	rewards := make([]Gwei, n)
	penalties := make([]Gwei, n)

	previousEpoch := state.GetPreviousEpoch()
	unslashedIndices := getUnslashedParticipatingIndices(state, flag, previousEpoch)
	unslashedSet := make(map[ValidatorIndex]bool, len(unslashedIndices))
	for _, idx := range unslashedIndices {
		unslashedSet[idx] = true
	}

	weight := participationFlagWeight(state, flag)
	unslashedParticipatingBalance := uint64(state.GetTotalBalance(unslashedIndices))
	unslashedParticipatingIncrements := unslashedParticipatingBalance / state.Config.EffectiveBalanceIncrement
	activeIncrements := uint64(state.GetTotalActiveBalance()) / state.Config.EffectiveBalanceIncrement
	leaking := isInInactivityLeak(state)

	for _, idx := range getEligibleValidatorIndices(state) {
		baseReward := getBaseReward(state, idx)
		if unslashedSet[idx] {
			if !leaking {
				numerator := uint64(baseReward) * weight * unslashedParticipatingIncrements
				rewards[idx] = Gwei(numerator / (activeIncrements * state.Config.WeightDenominator))
			}
		} else if flag != TimelyHeadFlag {
			penalties[idx] = Gwei(uint64(baseReward) * weight / state.Config.WeightDenominator)
		}
	}
	return rewards, penalties
}

func getInactivityPenaltyDeltas(state *BeaconState) ([]Gwei, []Gwei) {
	n := len(state.Validators)
	rewards := make([]Gwei, n)
	penalties := make([]Gwei, n)

	previousEpoch := state.GetPreviousEpoch()
	matchingTarget := make(map[ValidatorIndex]bool)
	for _, idx := range getUnslashedParticipatingIndices(state, TimelyTargetFlag, previousEpoch) {
		matchingTarget[idx] = true
	}

	penaltyDenominator := state.Config.InactivityScoreBias * state.Config.InactivityPenaltyQuotient
	for _, idx := range getEligibleValidatorIndices(state) {
		if !matchingTarget[idx] {
			numerator := uint64(state.Validators[idx].EffectiveBalance) * state.InactivityScores[idx]
			penalties[idx] = Gwei(numerator / penaltyDenominator)
		}
	}
	return rewards, penalties
}

func processRewardsAndPenalties(state *BeaconState) {
	if state.GetCurrentEpoch() == Epoch(state.Config.GenesisEpoch) {
		return
	}

	type deltaSet struct {
		rewards, penalties []Gwei
	}
	var deltas []deltaSet
	for _, flag := range []ParticipationFlags{TimelySourceFlag, TimelyTargetFlag, TimelyHeadFlag} {
		r, p := getFlagIndexDeltas(state, flag)
		deltas = append(deltas, deltaSet{r, p})
	}
	r, p := getInactivityPenaltyDeltas(state)
	deltas = append(deltas, deltaSet{r, p})

	for _, d := range deltas {
		for i := range state.Validators {
			state.IncreaseBalance(ValidatorIndex(i), d.rewards[i])
			state.DecreaseBalance(ValidatorIndex(i), d.penalties[i])
		}
	}
}

func isEligibleForActivationQueue(maxEffectiveBalance Gwei, v *Validator, farFuture Epoch) bool {
	return v.ActivationEligibilityEpoch == farFuture && v.EffectiveBalance == maxEffectiveBalance
}

func isEligibleForActivation(state *BeaconState, v *Validator) bool {
	return v.ActivationEligibilityEpoch <= state.FinalizedCheckpoint.Epoch &&
		v.ActivationEpoch == Epoch(state.Config.FarFutureEpoch)
}

func processRegistryUpdates(state *BeaconState) {
	currentEpoch := state.GetCurrentEpoch()
	farFuture := Epoch(state.Config.FarFutureEpoch)

	for i, v := range state.Validators {
		if isEligibleForActivationQueue(Gwei(state.Config.MaxEffectiveBalance), v, farFuture) {
			v.ActivationEligibilityEpoch = currentEpoch + 1
		}
		if IsActiveValidator(v, currentEpoch) && v.EffectiveBalance <= Gwei(state.Config.EjectionBalance) {
			state.InitiateValidatorExit(ValidatorIndex(i))
		}
	}

	var activationQueue []ValidatorIndex
	for i, v := range state.Validators {
		if isEligibleForActivation(state, v) {
			activationQueue = append(activationQueue, ValidatorIndex(i))
		}
	}
	sort.Slice(activationQueue, func(i, j int) bool {
		a, b := activationQueue[i], activationQueue[j]
		if state.Validators[a].ActivationEligibilityEpoch != state.Validators[b].ActivationEligibilityEpoch {
			return state.Validators[a].ActivationEligibilityEpoch < state.Validators[b].ActivationEligibilityEpoch
		}
		return a < b
	})

	churnLimit := state.GetValidatorChurnLimit(currentEpoch)
	if uint64(len(activationQueue)) > churnLimit {
		activationQueue = activationQueue[:churnLimit]
	}
	for _, idx := range activationQueue {
		state.Validators[idx].ActivationEpoch = ActivationExitEpoch(state.Config, currentEpoch)
	}
}

func processSlashings(state *BeaconState) {
	epoch := state.GetCurrentEpoch()
	totalBalance := uint64(state.GetTotalActiveBalance())

	var sumSlashings uint64
	for _, s := range state.Slashings {
		sumSlashings += uint64(s)
	}
	adjustedTotalSlashingBalance := sumSlashings * state.Config.ProportionalSlashingMultiplier
	if adjustedTotalSlashingBalance > totalBalance {
		adjustedTotalSlashingBalance = totalBalance
	}

	increment := state.Config.EffectiveBalanceIncrement
	for i, v := range state.Validators {
		if v.Slashed && epoch+Epoch(state.Config.EpochsPerSlashingsVector)/2 == v.WithdrawableEpoch {
			// effective_balance/increment * adjusted_total_slashing_balance can
			// exceed 64 bits for a large, heavily slashed validator set, so the
			// numerator is carried in 256-bit arithmetic before dividing back down.
			penaltyNumerator := new(uint256.Int).Mul(
				uint256.NewInt(uint64(v.EffectiveBalance)/increment),
				uint256.NewInt(adjustedTotalSlashingBalance),
			)
			penalty := penaltyNumerator.Div(penaltyNumerator, uint256.NewInt(totalBalance))
			penalty.Mul(penalty, uint256.NewInt(increment))
			state.DecreaseBalance(ValidatorIndex(i), Gwei(penalty.Uint64()))
		}
	}
}

func processEth1DataReset(state *BeaconState) {
	nextEpoch := state.GetCurrentEpoch() + 1
	if uint64(nextEpoch)%state.Config.EpochsPerEth1VotingPeriod == 0 {
		state.Eth1DataVotes = nil
	}
}

func processEffectiveBalanceUpdates(state *BeaconState) {
	hysteresisIncrement := state.Config.EffectiveBalanceIncrement / state.Config.HysteresisQuotient
	downwardThreshold := hysteresisIncrement * state.Config.HysteresisDownwardMultiplier
	upwardThreshold := hysteresisIncrement * state.Config.HysteresisUpwardMultiplier

	for i, v := range state.Validators {
		balance := state.Balances[i]
		if uint64(balance)+downwardThreshold < uint64(v.EffectiveBalance) ||
			uint64(v.EffectiveBalance)+upwardThreshold < uint64(balance) {
			newEffective := uint64(balance) - uint64(balance)%state.Config.EffectiveBalanceIncrement
			if newEffective > state.Config.MaxEffectiveBalance {
				newEffective = state.Config.MaxEffectiveBalance
			}
			v.EffectiveBalance = Gwei(newEffective)
		}
	}
}

func processSlashingsReset(state *BeaconState) {
	nextEpoch := state.GetCurrentEpoch() + 1
	state.Slashings[uint64(nextEpoch)%state.Config.EpochsPerSlashingsVector] = 0
}

func processRandaoMixesReset(state *BeaconState) {
	nextEpoch := state.GetCurrentEpoch() + 1
	currentMix := state.GetRandaoMix(state.GetCurrentEpoch())
	state.RandaoMixes[uint64(nextEpoch)%state.Config.EpochsPerHistoricalVector] = currentMix
}

func processHistoricalSummariesUpdate(state *BeaconState) {
	nextEpoch := state.GetCurrentEpoch() + 1
	period := state.Config.SlotsPerHistoricalRoot / state.Config.SlotsPerEpoch
	if uint64(nextEpoch)%period == 0 {
		blockRoot := rootsVectorHashTreeRoot(state.BlockRoots)
		stateRoot := rootsVectorHashTreeRoot(state.StateRoots)
		state.HistoricalSummaries = append(state.HistoricalSummaries, HistoricalSummary{
			BlockSummaryRoot: Root(blockRoot),
			StateSummaryRoot: Root(stateRoot),
		})
	}
}

func processParticipationFlagUpdates(state *BeaconState) {
	state.PreviousEpochParticipation = state.CurrentEpochParticipation
	state.CurrentEpochParticipation = make([]ParticipationFlags, len(state.Validators))
}

// getNextSyncCommitteeIndices selects SYNC_COMMITTEE_SIZE indices (with
// replacement) via the same effective-balance-weighted rejection sampling
// used for proposer selection, grounded on shuffle.go's ComputeProposerIndex
// pattern.
func getNextSyncCommitteeIndices(state *BeaconState) []ValidatorIndex {
	epoch := state.GetCurrentEpoch() + 1
	activeIndices := state.GetActiveValidatorIndices(epoch)
	activeCount := uint64(len(activeIndices))
	seed := state.GetSeed(epoch, state.Config.DomainSyncCommittee)

	maxEB := state.Config.MaxEffectiveBalance
	maxRandomByte := state.Config.MaxRandomByte

	var out []ValidatorIndex
	for i := uint64(0); uint64(len(out)) < state.Config.SyncCommitteeSize; i++ {
		shuffled, err := ComputeShuffledIndex(state.Config, i%activeCount, activeCount, seed)
		if err != nil {
			break
		}
		candidate := activeIndices[shuffled]
		randByte := uint64(computeProposerRandomByte(seed, i))
		eb := uint64(state.Validators[candidate].EffectiveBalance)
		if eb*maxRandomByte >= maxEB*randByte {
			out = append(out, candidate)
		}
	}
	return out
}

func getNextSyncCommittee(state *BeaconState) *SyncCommittee {
	indices := getNextSyncCommitteeIndices(state)
	pubkeys := make([]BLSPubkey, len(indices))
	for i, idx := range indices {
		pubkeys[i] = state.Validators[idx].Pubkey
	}
	return &SyncCommittee{
		Pubkeys:         pubkeys,
		AggregatePubkey: AggregatePubkeys(pubkeys),
	}
}

func processSyncCommitteeUpdates(state *BeaconState) {
	nextEpoch := state.GetCurrentEpoch() + 1
	if uint64(nextEpoch)%state.Config.EpochsPerSyncCommitteePeriod == 0 {
		state.CurrentSyncCommittee = state.NextSyncCommittee
		state.NextSyncCommittee = getNextSyncCommittee(state)
	}
}
