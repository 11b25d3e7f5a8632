package consensus

import "testing"

// TestGetExpectedWithdrawalsUsesLast20Bytes pins bug-fix #2: the credited
// address is the last 20 bytes of withdrawal_credentials, not a 12-byte
// prefix.
func TestGetExpectedWithdrawalsUsesLast20Bytes(t *testing.T) {
	s := newTestState(1)
	v := s.Validators[0]
	v.WithdrawableEpoch = 0
	var creds Root
	creds[0] = s.Config.Eth1AddressWithdrawalPrefix
	var wantAddr [20]byte
	for i := range wantAddr {
		wantAddr[i] = byte(i + 1)
	}
	copy(creds[12:], wantAddr[:])
	v.WithdrawalCredentials = creds
	s.Balances[0] = 42

	ws := GetExpectedWithdrawals(s)
	if len(ws) != 1 {
		t.Fatalf("expected 1 withdrawal, got %d", len(ws))
	}
	if ws[0].Address != wantAddr {
		t.Fatalf("withdrawal address = %x, want %x", ws[0].Address, wantAddr)
	}
}

// TestGetExpectedWithdrawalsSweepsAllValidators pins bug-fix #3: the cursor
// advances as (validatorIndex + 1) % n with correct operator precedence, so
// a full sweep with no withdrawable validators still visits every index
// without ever computing `+1 % n` before the addition.
func TestGetExpectedWithdrawalsSweepsAllValidators(t *testing.T) {
	s := newTestState(3)
	s.NextWithdrawalValidatorIndex = 2

	ws := GetExpectedWithdrawals(s)
	if len(ws) != 0 {
		t.Fatalf("expected no withdrawals for non-withdrawable validators, got %d", len(ws))
	}
}

// TestProcessWithdrawalsSkipsIndexBumpOnEmptySweep pins bug-fix #4:
// NextWithdrawalIndex must not advance when the sweep produces nothing.
func TestProcessWithdrawalsSkipsIndexBumpOnEmptySweep(t *testing.T) {
	s := newTestState(2)
	s.NextWithdrawalIndex = 7

	payload := &ExecutionPayload{
		ParentHash: s.LatestExecutionPayloadHeader.BlockHash,
		PrevRandao: s.GetRandaoMix(s.GetCurrentEpoch()),
		Timestamp:  s.GenesisTime,
	}
	if err := ProcessWithdrawals(s, payload); err != nil {
		t.Fatalf("ProcessWithdrawals returned error: %v", err)
	}
	if s.NextWithdrawalIndex != 7 {
		t.Fatalf("NextWithdrawalIndex = %d, want unchanged 7", s.NextWithdrawalIndex)
	}
}

func TestProcessWithdrawalsAppliesFullWithdrawal(t *testing.T) {
	s := newTestState(1)
	v := s.Validators[0]
	v.WithdrawableEpoch = 0
	var creds Root
	creds[0] = s.Config.Eth1AddressWithdrawalPrefix
	v.WithdrawalCredentials = creds
	s.Balances[0] = 100

	expected := GetExpectedWithdrawals(s)
	if len(expected) != 1 {
		t.Fatalf("expected 1 withdrawal, got %d", len(expected))
	}

	payload := &ExecutionPayload{
		ParentHash: s.LatestExecutionPayloadHeader.BlockHash,
		PrevRandao: s.GetRandaoMix(s.GetCurrentEpoch()),
		Timestamp:  s.GenesisTime,
		Withdrawals: expected,
	}
	if err := ProcessWithdrawals(s, payload); err != nil {
		t.Fatalf("ProcessWithdrawals returned error: %v", err)
	}
	if s.Balances[0] != 0 {
		t.Fatalf("balance after full withdrawal = %d, want 0", s.Balances[0])
	}
	if s.NextWithdrawalIndex != 1 {
		t.Fatalf("NextWithdrawalIndex = %d, want 1", s.NextWithdrawalIndex)
	}
}

func TestProcessWithdrawalsRejectsMismatch(t *testing.T) {
	s := newTestState(2)
	payload := &ExecutionPayload{
		ParentHash:  s.LatestExecutionPayloadHeader.BlockHash,
		PrevRandao:  s.GetRandaoMix(s.GetCurrentEpoch()),
		Timestamp:   s.GenesisTime,
		Withdrawals: []Withdrawal{{Index: 99, ValidatorIndex: 0, Amount: 1}},
	}
	if err := ProcessWithdrawals(s, payload); err != ErrWithdrawalsMismatch {
		t.Fatalf("expected ErrWithdrawalsMismatch, got %v", err)
	}
}
