package consensus

// GetExpectedWithdrawals computes the withdrawal sweep for the upcoming
// payload (§4.3, §9). Two source bugs are fixed here relative to the
// flagged defects: the credited address is the LAST 20 bytes of the
// withdrawal credentials (not a 12-byte prefix), and the validator-index
// sweep advances by `(validatorIndex + 1) % n` with correct precedence.
func GetExpectedWithdrawals(state *BeaconState) []Withdrawal {
	epoch := state.GetCurrentEpoch()
	withdrawalIndex := state.NextWithdrawalIndex
	validatorIndex := state.NextWithdrawalValidatorIndex
	n := uint64(len(state.Validators))
	if n == 0 {
		return nil
	}

	var withdrawals []Withdrawal
	bound := n
	if state.Config.MaxValidatorsPerWithdrawalsSweep < bound {
		bound = state.Config.MaxValidatorsPerWithdrawalsSweep
	}

	for i := uint64(0); i < bound; i++ {
		v := state.Validators[validatorIndex]
		balance := state.Balances[validatorIndex]

		var address [20]byte
		copy(address[:], v.WithdrawalCredentials[12:32])

		switch {
		case v.IsFullyWithdrawableValidator(state.Config.Eth1AddressWithdrawalPrefix, epoch, balance):
			withdrawals = append(withdrawals, Withdrawal{
				Index:          withdrawalIndex,
				ValidatorIndex: validatorIndex,
				Address:        address,
				Amount:         balance,
			})
			withdrawalIndex++
		case v.IsPartiallyWithdrawableValidator(state.Config.Eth1AddressWithdrawalPrefix, Gwei(state.Config.MaxEffectiveBalance), balance):
			withdrawals = append(withdrawals, Withdrawal{
				Index:          withdrawalIndex,
				ValidatorIndex: validatorIndex,
				Address:        address,
				Amount:         balance - Gwei(state.Config.MaxEffectiveBalance),
			})
			withdrawalIndex++
		}

		if uint64(len(withdrawals)) == state.Config.MaxWithdrawalsPerPayload {
			break
		}
		validatorIndex = ValidatorIndex((uint64(validatorIndex) + 1) % n)
	}
	return withdrawals
}

// ProcessWithdrawals checks the payload's withdrawal list against the
// expected sweep, applies the balance decreases, and advances the sweep
// cursors (§4.3, §9).
func ProcessWithdrawals(state *BeaconState, payload *ExecutionPayload) error {
	expected := GetExpectedWithdrawals(state)
	if len(expected) != len(payload.Withdrawals) {
		return ErrWithdrawalsMismatch
	}
	for i, w := range expected {
		if w != payload.Withdrawals[i] {
			return ErrWithdrawalsMismatch
		}
		state.DecreaseBalance(w.ValidatorIndex, w.Amount)
	}

	// Bug-fix #4: next_withdrawal_index only advances when the sweep
	// produced at least one withdrawal; an empty sweep leaves it unchanged.
	if len(expected) > 0 {
		last := expected[len(expected)-1]
		state.NextWithdrawalIndex = last.Index + 1
	}

	n := uint64(len(state.Validators))
	if n == 0 {
		return nil
	}
	if uint64(len(expected)) == state.Config.MaxWithdrawalsPerPayload {
		last := expected[len(expected)-1]
		state.NextWithdrawalValidatorIndex = ValidatorIndex((uint64(last.ValidatorIndex) + 1) % n)
	} else {
		next := uint64(state.NextWithdrawalValidatorIndex) + state.Config.MaxValidatorsPerWithdrawalsSweep
		state.NextWithdrawalValidatorIndex = ValidatorIndex(next % n)
	}
	return nil
}

// ProcessExecutionPayload installs the new execution payload header after
// verifying chain linkage against the prior header (§4.3). Execution-layer
// validity (state transition inside the EVM, gas accounting, transaction
// execution) is delegated to the execution client and out of scope (§1
// Non-goals); the consensus core only checks the fields it is
// authoritative for.
func ProcessExecutionPayload(state *BeaconState, payload *ExecutionPayload) error {
	if payload.ParentHash != state.LatestExecutionPayloadHeader.BlockHash &&
		state.LatestExecutionPayloadHeader.BlockHash != (Root{}) {
		return ErrWithdrawalsMismatch
	}
	randaoMix := state.GetRandaoMix(state.GetCurrentEpoch())
	if payload.PrevRandao != randaoMix {
		return ErrWithdrawalsMismatch
	}
	expectedTimestamp := state.GenesisTime + uint64(state.Slot)*state.Config.SecondsPerSlot
	if payload.Timestamp != expectedTimestamp {
		return ErrWithdrawalsMismatch
	}

	txRoot := transactionsHashTreeRoot(payload.Transactions)
	wdRoot := withdrawalsHashTreeRoot(payload.Withdrawals, state.Config.MaxWithdrawalsPerPayload)
	state.LatestExecutionPayloadHeader = HeaderFromPayload(payload, txRoot, wdRoot)
	return nil
}
