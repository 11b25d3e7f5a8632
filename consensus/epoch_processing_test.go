package consensus

import "testing"

// TestGetUnslashedParticipatingIndicesExcludesSlashed pins bug-fix #5: the
// source inverted this filter and returned slashed validators instead of
// unslashed ones.
func TestGetUnslashedParticipatingIndicesExcludesSlashed(t *testing.T) {
	s := newTestState(3)
	s.Slot = Slot(s.Config.SlotsPerEpoch) // epoch 1, so the previous epoch (0) is not the current one
	epoch := s.GetPreviousEpoch()
	s.PreviousEpochParticipation[0] = TimelyTargetFlag
	s.PreviousEpochParticipation[1] = TimelyTargetFlag
	s.Validators[1].Slashed = true
	s.PreviousEpochParticipation[2] = 0 // not flagged at all

	got := getUnslashedParticipatingIndices(s, TimelyTargetFlag, epoch)
	if len(got) != 1 || got[0] != 0 {
		t.Fatalf("getUnslashedParticipatingIndices = %v, want [0] (slashed and unflagged validators excluded)", got)
	}
}

func TestGetUnslashedParticipatingIndicesRequiresFlag(t *testing.T) {
	s := newTestState(2)
	s.Slot = Slot(s.Config.SlotsPerEpoch) // epoch 1, so the previous epoch (0) is not the current one
	epoch := s.GetPreviousEpoch()
	s.PreviousEpochParticipation[0] = TimelySourceFlag

	got := getUnslashedParticipatingIndices(s, TimelyTargetFlag, epoch)
	if len(got) != 0 {
		t.Fatalf("expected no validators flagged for TimelyTargetFlag, got %v", got)
	}
}

func TestProcessEffectiveBalanceUpdatesAppliesHysteresis(t *testing.T) {
	s := newTestState(1)
	increment := s.Config.EffectiveBalanceIncrement
	s.Validators[0].EffectiveBalance = Gwei(increment * 10)

	// A small drop within the hysteresis band should not move EffectiveBalance.
	s.Balances[0] = Gwei(increment*10 - increment/8)
	processEffectiveBalanceUpdates(s)
	if s.Validators[0].EffectiveBalance != Gwei(increment*10) {
		t.Fatalf("effective balance moved inside hysteresis band: got %d", s.Validators[0].EffectiveBalance)
	}

	// A drop past the downward threshold should move it.
	s.Balances[0] = Gwei(increment * 5)
	processEffectiveBalanceUpdates(s)
	if s.Validators[0].EffectiveBalance != Gwei(increment*5) {
		t.Fatalf("effective balance did not drop past threshold: got %d", s.Validators[0].EffectiveBalance)
	}
}

func TestProcessEffectiveBalanceUpdatesCapsAtMax(t *testing.T) {
	s := newTestState(1)
	s.Validators[0].EffectiveBalance = Gwei(s.Config.MaxEffectiveBalance)
	s.Balances[0] = Gwei(s.Config.MaxEffectiveBalance) * 2

	processEffectiveBalanceUpdates(s)
	if s.Validators[0].EffectiveBalance != Gwei(s.Config.MaxEffectiveBalance) {
		t.Fatalf("effective balance = %d, want capped at max %d", s.Validators[0].EffectiveBalance, s.Config.MaxEffectiveBalance)
	}
}

func TestProcessRegistryUpdatesEjectsLowBalanceValidator(t *testing.T) {
	s := newTestState(2)
	s.Validators[0].EffectiveBalance = Gwei(s.Config.EjectionBalance) - 1

	processRegistryUpdates(s)
	if s.Validators[0].ExitEpoch == Epoch(s.Config.FarFutureEpoch) {
		t.Fatal("expected low-balance validator to be ejected (exit initiated)")
	}
}

func TestProcessRegistryUpdatesActivatesEligibleQueue(t *testing.T) {
	s := newTestState(1)
	s.Validators[0].ActivationEligibilityEpoch = Epoch(s.Config.FarFutureEpoch)
	s.Validators[0].ActivationEpoch = Epoch(s.Config.FarFutureEpoch)
	s.Validators[0].EffectiveBalance = Gwei(s.Config.MaxEffectiveBalance)

	processRegistryUpdates(s)
	if s.Validators[0].ActivationEligibilityEpoch == Epoch(s.Config.FarFutureEpoch) {
		t.Fatal("expected validator to be queued for activation eligibility")
	}
}

func TestProcessSlashingsAppliesProportionalPenalty(t *testing.T) {
	s := newTestState(4)
	epoch := s.GetCurrentEpoch()
	v := s.Validators[0]
	v.Slashed = true
	v.WithdrawableEpoch = epoch + Epoch(s.Config.EpochsPerSlashingsVector)/2
	s.Slashings[uint64(epoch)%s.Config.EpochsPerSlashingsVector] = v.EffectiveBalance
	before := s.Balances[0]

	processSlashings(s)
	if s.Balances[0] >= before {
		t.Fatalf("expected slashed validator's balance to drop: before=%d after=%d", before, s.Balances[0])
	}
}
