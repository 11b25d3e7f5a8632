package consensus

import (
	"crypto/sha256"
	"testing"

	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/ssz"
)

func TestVerifyDepositMerkleBranchAcceptsValidProof(t *testing.T) {
	leaf := sha256.Sum256([]byte("leaf"))
	const depth = 3
	proof := make([][32]byte, depth)
	for i := range proof {
		proof[i] = sha256.Sum256([]byte{byte(i)})
	}

	value := leaf
	for i := 0; i < depth; i++ {
		var combined [64]byte
		copy(combined[:32], value[:])
		copy(combined[32:], proof[i][:])
		value = sha256.Sum256(combined[:])
	}

	if !verifyDepositMerkleBranch(leaf, proof, depth, 0, Root(value)) {
		t.Fatal("expected a correctly constructed Merkle branch to verify")
	}
}

func TestVerifyDepositMerkleBranchRejectsWrongRoot(t *testing.T) {
	leaf := sha256.Sum256([]byte("leaf"))
	proof := make([][32]byte, 2)
	if verifyDepositMerkleBranch(leaf, proof, 2, 0, Root{0xff}) {
		t.Fatal("expected a mismatched root to fail verification")
	}
}

func TestProcessDepositToppsUpExistingValidator(t *testing.T) {
	s := newTestState(1)
	s.Eth1Data.DepositRoot = Root{} // accept any branch; filled below
	pubkey := s.Validators[0].Pubkey

	d := &Deposit{
		Pubkey:                pubkey,
		WithdrawalCredentials: s.Validators[0].WithdrawalCredentials,
		Amount:                50,
	}
	leaf := depositDataHashTreeRoot(d)
	depth := s.Config.DepositContractTreeDepth + 1
	proof := make([][32]byte, depth)
	value := leaf
	for i := uint64(0); i < depth; i++ {
		var combined [64]byte
		copy(combined[:32], value[:])
		copy(combined[32:], proof[i][:])
		value = sha256.Sum256(combined[:])
	}
	d.Proof = proof
	s.Eth1Data.DepositRoot = Root(value)

	before := s.Balances[0]
	if err := ProcessDeposit(s, d); err != nil {
		t.Fatalf("ProcessDeposit error: %v", err)
	}
	if s.Balances[0] != before+50 {
		t.Fatalf("balance after top-up = %d, want %d", s.Balances[0], before+50)
	}
	if len(s.Validators) != 1 {
		t.Fatalf("expected no new validator to be appended, len = %d", len(s.Validators))
	}
	if s.Eth1DepositIndex != 1 {
		t.Fatalf("Eth1DepositIndex = %d, want 1", s.Eth1DepositIndex)
	}
}

func TestProcessDepositRejectsBadProof(t *testing.T) {
	s := newTestState(1)
	d := &Deposit{
		Pubkey: s.Validators[0].Pubkey,
		Amount: 50,
		Proof:  make([][32]byte, s.Config.DepositContractTreeDepth+1),
	}
	if err := ProcessDeposit(s, d); err != ErrDepositInvalidProof {
		t.Fatalf("expected ErrDepositInvalidProof, got %v", err)
	}
}

func TestProcessVoluntaryExitRejectsBeforeShardCommitteePeriod(t *testing.T) {
	s := newTestState(2)
	s.Slot = 1
	sve := &SignedVoluntaryExit{Message: VoluntaryExit{Epoch: 0, ValidatorIndex: 0}}
	if err := ProcessVoluntaryExit(s, sve, false); err != ErrVoluntaryExitInvalid {
		t.Fatalf("expected ErrVoluntaryExitInvalid (too early), got %v", err)
	}
}

func TestProcessVoluntaryExitInitiatesExit(t *testing.T) {
	s := newTestState(2)
	s.Validators[0].ActivationEpoch = 0
	// Advance past the shard committee period.
	targetEpoch := Epoch(s.Config.ShardCommitteePeriod) + 1
	s.Slot = Slot(StartSlotAtEpoch(s.Config, targetEpoch))

	sve := &SignedVoluntaryExit{Message: VoluntaryExit{Epoch: targetEpoch, ValidatorIndex: 0}}
	if err := ProcessVoluntaryExit(s, sve, false); err != nil {
		t.Fatalf("ProcessVoluntaryExit error: %v", err)
	}
	if s.Validators[0].ExitEpoch == Epoch(s.Config.FarFutureEpoch) {
		t.Fatal("expected validator exit to be initiated")
	}
}

func TestProcessVoluntaryExitRejectsAlreadyExited(t *testing.T) {
	s := newTestState(1)
	s.Validators[0].ExitEpoch = 5
	sve := &SignedVoluntaryExit{Message: VoluntaryExit{Epoch: 0, ValidatorIndex: 0}}
	if err := ProcessVoluntaryExit(s, sve, false); err != ErrVoluntaryExitInvalid {
		t.Fatalf("expected ErrVoluntaryExitInvalid for already-exiting validator, got %v", err)
	}
}

func TestProcessBLSToExecutionChangeRewritesCredentials(t *testing.T) {
	s := newTestState(1)
	var fromPubkey BLSPubkey
	fromPubkey[0] = 0xAB
	pubkeyHash := sha256.Sum256(fromPubkey[:])

	var creds Root
	creds[0] = s.Config.BlsWithdrawalPrefix
	copy(creds[1:], pubkeyHash[1:])
	s.Validators[0].WithdrawalCredentials = creds

	var toAddr [20]byte
	for i := range toAddr {
		toAddr[i] = byte(i + 1)
	}
	change := &SignedBLSToExecutionChange{
		Message: BLSToExecutionChange{
			ValidatorIndex: 0,
			FromBLSPubkey:  fromPubkey,
			ToExecutionAddress: toAddr,
		},
	}

	if err := ProcessBLSToExecutionChange(s, change, false); err != nil {
		t.Fatalf("ProcessBLSToExecutionChange error: %v", err)
	}
	got := s.Validators[0].WithdrawalCredentials
	if got[0] != s.Config.Eth1AddressWithdrawalPrefix {
		t.Fatalf("new credentials prefix = %x, want %x", got[0], s.Config.Eth1AddressWithdrawalPrefix)
	}
	var gotAddr [20]byte
	copy(gotAddr[:], got[12:])
	if gotAddr != toAddr {
		t.Fatalf("new credentials address = %x, want %x", gotAddr, toAddr)
	}
}

func TestProcessBLSToExecutionChangeRejectsWrongPrefix(t *testing.T) {
	s := newTestState(1)
	s.Validators[0].WithdrawalCredentials[0] = s.Config.Eth1AddressWithdrawalPrefix
	change := &SignedBLSToExecutionChange{Message: BLSToExecutionChange{ValidatorIndex: 0}}
	if err := ProcessBLSToExecutionChange(s, change, false); err != ErrBLSChangeInvalid {
		t.Fatalf("expected ErrBLSChangeInvalid for non-BLS-prefixed credentials, got %v", err)
	}
}

func TestProcessAttesterSlashingSlashesCommonIndices(t *testing.T) {
	s := newTestState(4)
	data1 := AttestationData{Source: Checkpoint{Epoch: 0}, Target: Checkpoint{Epoch: 1}, BeaconBlockRoot: Root{0x01}}
	data2 := AttestationData{Source: Checkpoint{Epoch: 0}, Target: Checkpoint{Epoch: 1}, BeaconBlockRoot: Root{0x02}}

	as := &AttesterSlashing{
		Attestation1: IndexedAttestation{AttestingIndices: []ValidatorIndex{0, 1}, Data: data1},
		Attestation2: IndexedAttestation{AttestingIndices: []ValidatorIndex{1, 2}, Data: data2},
	}
	if err := ProcessAttesterSlashing(s, as, false); err != nil {
		t.Fatalf("ProcessAttesterSlashing error: %v", err)
	}
	if !s.Validators[1].Slashed {
		t.Fatal("expected validator 1 (common to both attestations) to be slashed")
	}
	if s.Validators[0].Slashed || s.Validators[2].Slashed {
		t.Fatal("expected only the common validator index to be slashed")
	}
}

func TestProcessAttesterSlashingRejectsNonSlashableData(t *testing.T) {
	s := newTestState(2)
	data := AttestationData{Source: Checkpoint{Epoch: 0}, Target: Checkpoint{Epoch: 1}}
	as := &AttesterSlashing{
		Attestation1: IndexedAttestation{AttestingIndices: []ValidatorIndex{0}, Data: data},
		Attestation2: IndexedAttestation{AttestingIndices: []ValidatorIndex{0}, Data: data},
	}
	if err := ProcessAttesterSlashing(s, as, false); err != ErrAttesterSlashingInvalid {
		t.Fatalf("expected ErrAttesterSlashingInvalid for identical attestation data, got %v", err)
	}
}

func TestProcessBlobKzgCommitmentsRejectsMalformedCommitment(t *testing.T) {
	cfg := params.QuickConfig()
	var bad [48]byte // compression flag bit unset
	if err := ProcessBlobKzgCommitments(cfg, [][48]byte{bad}); err != ErrBlobCommitmentInvalid {
		t.Fatalf("expected ErrBlobCommitmentInvalid, got %v", err)
	}
}

func TestProcessBlobKzgCommitmentsAcceptsWellFormedCommitment(t *testing.T) {
	cfg := params.QuickConfig()
	var ok [48]byte
	ok[0] = 0x80 // compression flag set
	if err := ProcessBlobKzgCommitments(cfg, [][48]byte{ok}); err != nil {
		t.Fatalf("ProcessBlobKzgCommitments error: %v", err)
	}
}

func TestProcessBlobKzgCommitmentsRejectsTooMany(t *testing.T) {
	cfg := params.QuickConfig()
	commitments := make([][48]byte, cfg.MaxBlobCommitmentsPerBlock+1)
	for i := range commitments {
		commitments[i][0] = 0x80
	}
	if err := ProcessBlobKzgCommitments(cfg, commitments); err != ErrTooManyOperations {
		t.Fatalf("expected ErrTooManyOperations, got %v", err)
	}
}

func TestProcessAttestationAwardsProposerRewardOnNewParticipationFlags(t *testing.T) {
	s := newTestState(8)
	s.Slot = 1 // one slot past genesis, satisfying MinAttestationInclusionDelay

	data := &AttestationData{
		Slot:           0,
		CommitteeIndex: 0,
		Target:         Checkpoint{Epoch: 0, Root: Root{}},
	}
	committee, err := s.GetBeaconCommittee(data.Slot, data.CommitteeIndex)
	if err != nil {
		t.Fatalf("GetBeaconCommittee error: %v", err)
	}
	if len(committee) == 0 {
		t.Fatal("expected a non-empty committee for genesis epoch with 8 active validators")
	}

	bits, err := ssz.NewBitlist(len(committee))
	if err != nil {
		t.Fatalf("NewBitlist error: %v", err)
	}
	for i := range committee {
		bits.Set(i)
	}

	att := &Attestation{AggregationBits: bits, Data: *data}

	proposerIndex, err := s.GetBeaconProposerIndex()
	if err != nil {
		t.Fatalf("GetBeaconProposerIndex error: %v", err)
	}
	before := s.Balances[proposerIndex]

	if err := ProcessAttestation(s, att, false); err != nil {
		t.Fatalf("ProcessAttestation error: %v", err)
	}

	for _, idx := range committee {
		if s.CurrentEpochParticipation[idx]&TimelySourceFlag == 0 {
			t.Fatalf("validator %d missing TimelySourceFlag after a fully-attested committee", idx)
		}
	}
	if s.Balances[proposerIndex] <= before {
		t.Fatalf("proposer balance = %d, want an increase from %d after awarding inclusion reward", s.Balances[proposerIndex], before)
	}
}

func TestIntegerSqrt(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 1, 3: 1, 4: 2, 8: 2, 9: 3, 10000: 100}
	for n, want := range cases {
		if got := integerSqrt(n); got != want {
			t.Fatalf("integerSqrt(%d) = %d, want %d", n, got, want)
		}
	}
}
