package consensus

import (
	"github.com/ethclient/deneb-beacon/ssz"
)

// Checkpoint is an (epoch, block-root) pair used by Casper FFG.
type Checkpoint struct {
	Epoch Epoch
	Root  Root
}

// Equal compares two checkpoints by value.
func (c Checkpoint) Equal(o Checkpoint) bool {
	return c.Epoch == o.Epoch && c.Root == o.Root
}

// HashTreeRoot computes the tree-hash root of the checkpoint.
func (c Checkpoint) HashTreeRoot() ([32]byte, error) {
	epochRoot := ssz.HashTreeRootUint64(uint64(c.Epoch))
	return ssz.HashTreeRootContainer([][32]byte{epochRoot, [32]byte(c.Root)}), nil
}

// Fork describes the previous and current fork versions active at an epoch.
type Fork struct {
	PreviousVersion ForkVersion
	CurrentVersion  ForkVersion
	Epoch           Epoch
}

// ForkData is signed to derive a fork digest / domain.
type ForkData struct {
	CurrentVersion        ForkVersion
	GenesisValidatorsRoot Root
}

// HashTreeRoot computes the tree-hash root of ForkData.
func (f ForkData) HashTreeRoot() ([32]byte, error) {
	var verChunk [32]byte
	copy(verChunk[:4], f.CurrentVersion[:])
	return ssz.HashTreeRootContainer([][32]byte{verChunk, [32]byte(f.GenesisValidatorsRoot)}), nil
}

// Eth1Data is the proposer's view of the deposit contract.
type Eth1Data struct {
	DepositRoot  Root
	DepositCount uint64
	BlockHash    Root
}

// Validator is a registry entry. Epoch fields use params.Config.FarFutureEpoch
// as the "not yet set" sentinel.
type Validator struct {
	Pubkey                     BLSPubkey
	WithdrawalCredentials      Root
	EffectiveBalance           Gwei
	Slashed                    bool
	ActivationEligibilityEpoch Epoch
	ActivationEpoch            Epoch
	ExitEpoch                  Epoch
	WithdrawableEpoch          Epoch
}

// HasEth1WithdrawalCredential reports whether v's credentials use the
// 0x01 execution-address prefix, per original_source/validator.rs.
func (v *Validator) HasEth1WithdrawalCredential(prefix byte) bool {
	return v.WithdrawalCredentials[0] == prefix
}

// IsFullyWithdrawableValidator reports whether v is withdrawable in full at
// epoch: eth1 credentials, withdrawable_epoch reached, nonzero balance.
func (v *Validator) IsFullyWithdrawableValidator(prefix byte, epoch Epoch, balance Gwei) bool {
	return v.HasEth1WithdrawalCredential(prefix) && v.WithdrawableEpoch <= epoch && balance > 0
}

// IsPartiallyWithdrawableValidator reports whether v has eth1 credentials,
// is at max effective balance, and carries excess balance above it.
func (v *Validator) IsPartiallyWithdrawableValidator(prefix byte, maxEffectiveBalance, balance Gwei) bool {
	hasExcess := balance > maxEffectiveBalance
	return v.HasEth1WithdrawalCredential(prefix) && v.EffectiveBalance == maxEffectiveBalance && hasExcess
}

// AttestationData is the FFG + LMD-GHOST vote carried by an attestation.
type AttestationData struct {
	Slot            Slot
	CommitteeIndex  CommitteeIndex
	BeaconBlockRoot Root
	Source          Checkpoint
	Target          Checkpoint
}

// Equal compares two AttestationData values by field.
func (d *AttestationData) Equal(o *AttestationData) bool {
	return d.Slot == o.Slot && d.CommitteeIndex == o.CommitteeIndex &&
		d.BeaconBlockRoot == o.BeaconBlockRoot && d.Source.Equal(o.Source) && d.Target.Equal(o.Target)
}

// HashTreeRoot computes the tree-hash root of AttestationData.
func (d *AttestationData) HashTreeRoot() ([32]byte, error) {
	slotRoot := ssz.HashTreeRootUint64(uint64(d.Slot))
	idxRoot := ssz.HashTreeRootUint64(uint64(d.CommitteeIndex))
	sourceRoot, _ := d.Source.HashTreeRoot()
	targetRoot, _ := d.Target.HashTreeRoot()
	return ssz.HashTreeRootContainer([][32]byte{
		slotRoot, idxRoot, [32]byte(d.BeaconBlockRoot), sourceRoot, targetRoot,
	}), nil
}

// Attestation is a committee-bitfield vote plus an aggregate BLS signature.
type Attestation struct {
	AggregationBits ssz.Bitlist
	Data            AttestationData
	Signature       BLSSignature
}

// IndexedAttestation resolves an Attestation's bitfield to a sorted,
// deduplicated list of attesting validator indices.
type IndexedAttestation struct {
	AttestingIndices []ValidatorIndex
	Data             AttestationData
	Signature        BLSSignature
}

// Deposit carries a Merkle branch against eth1_data.deposit_root plus the
// deposit message and signature.
type Deposit struct {
	Proof [][32]byte // length DEPOSIT_CONTRACT_TREE_DEPTH + 1
	Pubkey                BLSPubkey
	WithdrawalCredentials Root
	Amount                Gwei
	Signature             BLSSignature
}

// BeaconBlockHeader is the slim envelope carried in state.LatestBlockHeader
// and signed by SignedBeaconBlock.
type BeaconBlockHeader struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	BodyRoot      Root
}

// HashTreeRoot computes the tree-hash root of BeaconBlockHeader.
func (h *BeaconBlockHeader) HashTreeRoot() ([32]byte, error) {
	return ssz.HashTreeRootContainer([][32]byte{
		ssz.HashTreeRootUint64(uint64(h.Slot)),
		ssz.HashTreeRootUint64(uint64(h.ProposerIndex)),
		[32]byte(h.ParentRoot),
		[32]byte(h.StateRoot),
		[32]byte(h.BodyRoot),
	}), nil
}

// Withdrawal is a single execution-layer withdrawal credited in a payload.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex ValidatorIndex
	Address        [20]byte
	Amount         Gwei
}

// ExecutionPayload is the opaque execution-layer block carried in the body.
// Its validity against the execution engine is outside consensus scope
// (§6); the consensus core only reads header-equivalent fields off it.
type ExecutionPayload struct {
	ParentHash    Root
	FeeRecipient  [20]byte
	StateRoot     Root
	ReceiptsRoot  Root
	LogsBloom     [256]byte
	PrevRandao    Root
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte
	BaseFeePerGas [32]byte
	BlockHash     Root
	Transactions  [][]byte
	Withdrawals   []Withdrawal
	BlobGasUsed   uint64
	ExcessBlobGas uint64
}

// ExecutionPayloadHeader summarises ExecutionPayload for inclusion in
// BeaconState (the state stores the header, not the full payload).
type ExecutionPayloadHeader struct {
	ParentHash       Root
	FeeRecipient     [20]byte
	StateRoot        Root
	ReceiptsRoot     Root
	LogsBloom        [256]byte
	PrevRandao       Root
	BlockNumber      uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	BaseFeePerGas    [32]byte
	BlockHash        Root
	TransactionsRoot Root
	WithdrawalsRoot  Root
	BlobGasUsed      uint64
	ExcessBlobGas    uint64
}

// HeaderFromPayload derives the header-shape summary of a full payload;
// the transactions/withdrawals roots are computed via SSZ list hashing by
// the caller (state_transition.go) since they need the per-type limits.
func HeaderFromPayload(p *ExecutionPayload, txRoot, wdRoot Root) ExecutionPayloadHeader {
	return ExecutionPayloadHeader{
		ParentHash: p.ParentHash, FeeRecipient: p.FeeRecipient, StateRoot: p.StateRoot,
		ReceiptsRoot: p.ReceiptsRoot, LogsBloom: p.LogsBloom, PrevRandao: p.PrevRandao,
		BlockNumber: p.BlockNumber, GasLimit: p.GasLimit, GasUsed: p.GasUsed,
		Timestamp: p.Timestamp, ExtraData: p.ExtraData, BaseFeePerGas: p.BaseFeePerGas,
		BlockHash: p.BlockHash, TransactionsRoot: txRoot, WithdrawalsRoot: wdRoot,
		BlobGasUsed: p.BlobGasUsed, ExcessBlobGas: p.ExcessBlobGas,
	}
}

// SyncAggregate is the sync committee's vote on the previous slot's block.
type SyncAggregate struct {
	SyncCommitteeBits      []bool // fixed-length bitvector, len == SyncCommitteeSize
	SyncCommitteeSignature BLSSignature
}

// SyncCommittee is a fixed ordered set of validator pubkeys and their
// aggregate pubkey, immutable and safely shared between epochs by pointer.
type SyncCommittee struct {
	Pubkeys         []BLSPubkey
	AggregatePubkey BLSPubkey
}

// HistoricalSummary is the post-Capella compaction of per-era block/state
// root accumulators (replaces appending full roots to HistoricalRoots).
type HistoricalSummary struct {
	BlockSummaryRoot Root
	StateSummaryRoot Root
}

// ProposerSlashing proves a proposer double-signed two headers at the same
// slot.
type ProposerSlashing struct {
	SignedHeader1 SignedBeaconBlockHeader
	SignedHeader2 SignedBeaconBlockHeader
}

// SignedBeaconBlockHeader pairs a header with its proposer signature.
type SignedBeaconBlockHeader struct {
	Message   BeaconBlockHeader
	Signature BLSSignature
}

// AttesterSlashing proves two indexed attestations satisfy
// IsSlashableAttestationData.
type AttesterSlashing struct {
	Attestation1 IndexedAttestation
	Attestation2 IndexedAttestation
}

// VoluntaryExit signals a validator's intent to exit the active set.
type VoluntaryExit struct {
	Epoch          Epoch
	ValidatorIndex ValidatorIndex
}

// SignedVoluntaryExit pairs a VoluntaryExit with its signature.
type SignedVoluntaryExit struct {
	Message   VoluntaryExit
	Signature BLSSignature
}

// BLSToExecutionChange rewrites a validator's withdrawal credentials from
// the BLS prefix to an execution address.
type BLSToExecutionChange struct {
	ValidatorIndex     ValidatorIndex
	FromBLSPubkey      BLSPubkey
	ToExecutionAddress [20]byte
}

// SignedBLSToExecutionChange pairs the change with its BLS signature, signed
// by FromBLSPubkey under a fork-agnostic domain.
type SignedBLSToExecutionChange struct {
	Message   BLSToExecutionChange
	Signature BLSSignature
}

// BeaconBlockBody carries the fixed-position operation lists processed in
// a strict order by process_operations (§4.3).
type BeaconBlockBody struct {
	RandaoReveal          BLSSignature
	Eth1Data              Eth1Data
	Graffiti              [32]byte
	ProposerSlashings     []ProposerSlashing
	AttesterSlashings     []AttesterSlashing
	Attestations          []Attestation
	Deposits              []Deposit
	VoluntaryExits        []SignedVoluntaryExit
	SyncAggregate         SyncAggregate
	ExecutionPayload      ExecutionPayload
	BlsToExecutionChanges []SignedBLSToExecutionChange
	BlobKzgCommitments    [][48]byte
}

// BeaconBlock is the unsigned block: header fields plus its body.
type BeaconBlock struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	Body          BeaconBlockBody
}

// SignedBeaconBlock pairs a BeaconBlock with the proposer's signature over
// its signing root.
type SignedBeaconBlock struct {
	Message   BeaconBlock
	Signature BLSSignature
}
