package consensus

import "github.com/ethclient/deneb-beacon/consensus/params"

// newTestState builds a minimal, internally-consistent genesis state with n
// active validators, each holding the maximum effective balance, using the
// 8-slot-per-epoch QuickConfig preset so epoch-boundary tests don't need
// thousands of slots to exercise a transition.
func newTestState(n int) *BeaconState {
	cfg := params.QuickConfig()
	s := NewBeaconState(cfg)
	s.GenesisTime = 1000
	s.Fork = Fork{CurrentVersion: cfg.DenebForkVersion, PreviousVersion: cfg.DenebForkVersion}

	s.Validators = make([]*Validator, n)
	s.Balances = make([]Gwei, n)
	s.PreviousEpochParticipation = make([]ParticipationFlags, n)
	s.CurrentEpochParticipation = make([]ParticipationFlags, n)
	s.InactivityScores = make([]uint64, n)
	for i := 0; i < n; i++ {
		s.Validators[i] = &Validator{
			EffectiveBalance:  Gwei(cfg.MaxEffectiveBalance),
			ActivationEpoch:   0,
			ExitEpoch:         Epoch(cfg.FarFutureEpoch),
			WithdrawableEpoch: Epoch(cfg.FarFutureEpoch),
		}
		s.Balances[i] = Gwei(cfg.MaxEffectiveBalance)
	}
	s.CurrentJustifiedCheckpoint = Checkpoint{Epoch: 0}
	s.FinalizedCheckpoint = Checkpoint{Epoch: 0}
	s.PreviousJustifiedCheckpoint = Checkpoint{Epoch: 0}
	return s
}
