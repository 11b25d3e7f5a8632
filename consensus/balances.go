package consensus

// IncreaseBalance adds delta Gwei to the validator's balance.
func (s *BeaconState) IncreaseBalance(index ValidatorIndex, delta Gwei) {
	s.Balances[index] += delta
}

// DecreaseBalance subtracts delta Gwei from the validator's balance,
// saturating at zero. §9 flags the source's saturating_sub result being
// discarded (a no-op); the assignment below is the fix.
func (s *BeaconState) DecreaseBalance(index ValidatorIndex, delta Gwei) {
	if delta > s.Balances[index] {
		s.Balances[index] = 0
		return
	}
	s.Balances[index] -= delta
}

// InitiateValidatorExit queues a validator for exit, respecting the churn
// limit (§4.3). No-op if the validator has already been queued.
func (s *BeaconState) InitiateValidatorExit(index ValidatorIndex) {
	v := s.Validators[index]
	if v.ExitEpoch != Epoch(s.Config.FarFutureEpoch) {
		return
	}

	currentEpoch := s.GetCurrentEpoch()
	exitQueueEpoch := ComputeActivationExitEpoch(s.Config, currentEpoch)
	exitQueueCount := uint64(0)
	for _, other := range s.Validators {
		if other.ExitEpoch != Epoch(s.Config.FarFutureEpoch) {
			if other.ExitEpoch > exitQueueEpoch {
				exitQueueEpoch = other.ExitEpoch
			}
		}
	}
	for _, other := range s.Validators {
		if other.ExitEpoch == exitQueueEpoch {
			exitQueueCount++
		}
	}
	if exitQueueCount >= s.GetValidatorChurnLimit(currentEpoch) {
		exitQueueEpoch++
	}

	v.ExitEpoch = exitQueueEpoch
	v.WithdrawableEpoch = exitQueueEpoch + Epoch(s.Config.MinValidatorWithdrawabilityDelay)
}

// SlashValidator applies the full slashing penalty to index: initiates
// exit, marks slashed, extends withdrawability, records the penalty in the
// slashings ring, and splits the whistleblower reward between the reporter
// (defaulting to the block proposer) and the proposer itself.
func (s *BeaconState) SlashValidator(index ValidatorIndex, whistleblowerIndex *ValidatorIndex, proposerIndex ValidatorIndex) {
	epoch := s.GetCurrentEpoch()
	s.InitiateValidatorExit(index)

	v := s.Validators[index]
	v.Slashed = true
	withdrawableAt := epoch + Epoch(s.Config.EpochsPerSlashingsVector)
	if withdrawableAt > v.WithdrawableEpoch {
		v.WithdrawableEpoch = withdrawableAt
	}

	slashIdx := uint64(epoch) % s.Config.EpochsPerSlashingsVector
	s.Slashings[slashIdx] += v.EffectiveBalance

	s.DecreaseBalance(index, v.EffectiveBalance/Gwei(s.Config.MinSlashingPenaltyQuotient))

	whistleblower := proposerIndex
	if whistleblowerIndex != nil {
		whistleblower = *whistleblowerIndex
	}

	whistleblowerReward := v.EffectiveBalance / Gwei(s.Config.WhistleblowerRewardQuotient)
	proposerReward := whistleblowerReward * Gwei(s.Config.ProposerWeight) / Gwei(s.Config.WeightDenominator)
	s.IncreaseBalance(proposerIndex, proposerReward)
	s.IncreaseBalance(whistleblower, whistleblowerReward-proposerReward)
}
