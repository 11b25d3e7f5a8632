package consensus

import (
	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/ssz"
)

// This file covers BeaconBlockBody, BeaconBlock and SignedBeaconBlock: all
// three are variable-size containers whose shape (operation-list limits,
// sync-committee size, deposit-proof depth) is pinned by params.Config, so
// their MarshalSSZ/UnmarshalSSZ take cfg explicitly rather than relying on
// a package-level preset, mirroring how BeaconState threads cfg throughout
// state_transition.go.

func marshalProposerSlashings(items []ProposerSlashing) ([]byte, error) {
	elements := make([][]byte, len(items))
	for i := range items {
		b, err := items[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalList(elements), nil
}

func marshalVoluntaryExits(items []SignedVoluntaryExit) ([]byte, error) {
	elements := make([][]byte, len(items))
	for i := range items {
		b, err := items[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalList(elements), nil
}

func marshalBLSChanges(items []SignedBLSToExecutionChange) ([]byte, error) {
	elements := make([][]byte, len(items))
	for i := range items {
		b, err := items[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalList(elements), nil
}

// depositProofDepth returns the fixed length of a Deposit's Merkle proof
// vector (§4.3's DEPOSIT_CONTRACT_TREE_DEPTH + 1 convention, see DESIGN.md).
func depositProofDepth(cfg params.Config) uint64 {
	return cfg.DepositContractTreeDepth + 1
}

func marshalDeposits(deposits []Deposit) []byte {
	elements := make([][]byte, len(deposits))
	for i := range deposits {
		b, _ := deposits[i].MarshalSSZ()
		elements[i] = b
	}
	return ssz.MarshalList(elements)
}

func unmarshalDeposits(data []byte, cfg params.Config) ([]Deposit, error) {
	depth := depositProofDepth(cfg)
	elemSize := int(depth)*32 + 48 + 32 + 8 + 96
	items, err := ssz.UnmarshalList(data, elemSize)
	if err != nil {
		return nil, err
	}
	deposits := make([]Deposit, len(items))
	for i := range items {
		if err := deposits[i].UnmarshalSSZ(items[i], depth); err != nil {
			return nil, err
		}
	}
	return deposits, nil
}

func marshalAttesterSlashings(items []AttesterSlashing) ([]byte, error) {
	elements := make([][]byte, len(items))
	for i := range items {
		b, err := items[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalListOfVariableSize(elements), nil
}

func marshalAttestations(items []Attestation) ([]byte, error) {
	elements := make([][]byte, len(items))
	for i := range items {
		b, err := items[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		elements[i] = b
	}
	return ssz.MarshalListOfVariableSize(elements), nil
}

func syncAggregateFixedSize(cfg params.Config) int {
	return int((cfg.SyncCommitteeSize+7)/8) + 96
}

// MarshalSSZ encodes a BeaconBlockBody in process_operations order (§4.3).
func (b *BeaconBlockBody) MarshalSSZ(cfg params.Config) ([]byte, error) {
	eth1DataBytes, err := b.Eth1Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	proposerSlashingsBytes, err := marshalProposerSlashings(b.ProposerSlashings)
	if err != nil {
		return nil, err
	}
	attesterSlashingsBytes, err := marshalAttesterSlashings(b.AttesterSlashings)
	if err != nil {
		return nil, err
	}
	attestationsBytes, err := marshalAttestations(b.Attestations)
	if err != nil {
		return nil, err
	}
	depositsBytes := marshalDeposits(b.Deposits)
	voluntaryExitsBytes, err := marshalVoluntaryExits(b.VoluntaryExits)
	if err != nil {
		return nil, err
	}
	syncAggregateBytes, err := b.SyncAggregate.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	payloadBytes, err := b.ExecutionPayload.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	blsChangesBytes, err := marshalBLSChanges(b.BlsToExecutionChanges)
	if err != nil {
		return nil, err
	}
	commitmentItems := make([][]byte, len(b.BlobKzgCommitments))
	for i, c := range b.BlobKzgCommitments {
		commitmentItems[i] = c[:]
	}
	commitmentsBytes := ssz.MarshalList(commitmentItems)

	fixedParts := [][]byte{
		b.RandaoReveal[:], eth1DataBytes, b.Graffiti[:],
		nil, nil, nil, nil, nil,
		syncAggregateBytes,
		nil, nil, nil,
	}
	variableParts := [][]byte{
		proposerSlashingsBytes, attesterSlashingsBytes, attestationsBytes,
		depositsBytes, voluntaryExitsBytes, payloadBytes, blsChangesBytes, commitmentsBytes,
	}
	variableIndices := []int{3, 4, 5, 6, 7, 9, 10, 11}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, variableIndices), nil
}

// UnmarshalSSZ decodes a BeaconBlockBody.
func (b *BeaconBlockBody) UnmarshalSSZ(data []byte, cfg params.Config) error {
	fixedSizes := []int{96, 72, 32, 0, 0, 0, 0, 0, syncAggregateFixedSize(cfg), 0, 0, 0}
	fields, err := ssz.UnmarshalVariableContainer(data, 12, fixedSizes)
	if err != nil {
		return err
	}
	copy(b.RandaoReveal[:], fields[0])
	if err := b.Eth1Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	copy(b.Graffiti[:], fields[2])

	proposerSlashingItems, err := ssz.UnmarshalList(fields[3], 416)
	if err != nil {
		return err
	}
	proposerSlashings := make([]ProposerSlashing, len(proposerSlashingItems))
	for i := range proposerSlashingItems {
		if err := proposerSlashings[i].UnmarshalSSZ(proposerSlashingItems[i]); err != nil {
			return err
		}
	}
	b.ProposerSlashings = proposerSlashings

	attesterSlashingItems, err := ssz.UnmarshalListOfVariableSize(fields[4])
	if err != nil {
		return err
	}
	attesterSlashings := make([]AttesterSlashing, len(attesterSlashingItems))
	for i := range attesterSlashingItems {
		if err := attesterSlashings[i].UnmarshalSSZ(attesterSlashingItems[i]); err != nil {
			return err
		}
	}
	b.AttesterSlashings = attesterSlashings

	attestationItems, err := ssz.UnmarshalListOfVariableSize(fields[5])
	if err != nil {
		return err
	}
	attestations := make([]Attestation, len(attestationItems))
	for i := range attestationItems {
		if err := attestations[i].UnmarshalSSZ(attestationItems[i]); err != nil {
			return err
		}
	}
	b.Attestations = attestations

	deposits, err := unmarshalDeposits(fields[6], cfg)
	if err != nil {
		return err
	}
	b.Deposits = deposits

	voluntaryExitItems, err := ssz.UnmarshalList(fields[7], 112)
	if err != nil {
		return err
	}
	voluntaryExits := make([]SignedVoluntaryExit, len(voluntaryExitItems))
	for i := range voluntaryExitItems {
		if err := voluntaryExits[i].UnmarshalSSZ(voluntaryExitItems[i]); err != nil {
			return err
		}
	}
	b.VoluntaryExits = voluntaryExits

	if err := b.SyncAggregate.UnmarshalSSZ(fields[8], cfg.SyncCommitteeSize); err != nil {
		return err
	}

	var payload ExecutionPayload
	if err := payload.UnmarshalSSZ(fields[9]); err != nil {
		return err
	}
	b.ExecutionPayload = payload

	blsChangeItems, err := ssz.UnmarshalList(fields[10], 172)
	if err != nil {
		return err
	}
	blsChanges := make([]SignedBLSToExecutionChange, len(blsChangeItems))
	for i := range blsChangeItems {
		if err := blsChanges[i].UnmarshalSSZ(blsChangeItems[i]); err != nil {
			return err
		}
	}
	b.BlsToExecutionChanges = blsChanges

	commitmentItems, err := ssz.UnmarshalList(fields[11], 48)
	if err != nil {
		return err
	}
	commitments := make([][48]byte, len(commitmentItems))
	for i := range commitmentItems {
		copy(commitments[i][:], commitmentItems[i])
	}
	b.BlobKzgCommitments = commitments
	return nil
}

// MarshalSSZ encodes a BeaconBlock: fixed header fields plus a variable body.
func (blk *BeaconBlock) MarshalSSZ(cfg params.Config) ([]byte, error) {
	bodyBytes, err := blk.Body.MarshalSSZ(cfg)
	if err != nil {
		return nil, err
	}
	fixedParts := [][]byte{
		ssz.MarshalUint64(uint64(blk.Slot)),
		ssz.MarshalUint64(uint64(blk.ProposerIndex)),
		blk.ParentRoot[:],
		blk.StateRoot[:],
		nil,
	}
	return ssz.MarshalVariableContainer(fixedParts, [][]byte{bodyBytes}, []int{4}), nil
}

// UnmarshalSSZ decodes a BeaconBlock.
func (blk *BeaconBlock) UnmarshalSSZ(data []byte, cfg params.Config) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 5, []int{8, 8, 32, 32, 0})
	if err != nil {
		return err
	}
	slot, err := ssz.UnmarshalUint64(fields[0])
	if err != nil {
		return err
	}
	proposerIndex, err := ssz.UnmarshalUint64(fields[1])
	if err != nil {
		return err
	}
	blk.Slot = Slot(slot)
	blk.ProposerIndex = ValidatorIndex(proposerIndex)
	copy(blk.ParentRoot[:], fields[2])
	copy(blk.StateRoot[:], fields[3])
	return blk.Body.UnmarshalSSZ(fields[4], cfg)
}

// MarshalSSZ encodes a SignedBeaconBlock: the (variable) message plus a
// fixed 96-byte signature.
func (sb *SignedBeaconBlock) MarshalSSZ(cfg params.Config) ([]byte, error) {
	msgBytes, err := sb.Message.MarshalSSZ(cfg)
	if err != nil {
		return nil, err
	}
	fixedParts := [][]byte{nil, sb.Signature[:]}
	return ssz.MarshalVariableContainer(fixedParts, [][]byte{msgBytes}, []int{0}), nil
}

// UnmarshalSSZ decodes a SignedBeaconBlock.
func (sb *SignedBeaconBlock) UnmarshalSSZ(data []byte, cfg params.Config) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 2, []int{0, 96})
	if err != nil {
		return err
	}
	if err := sb.Message.UnmarshalSSZ(fields[0], cfg); err != nil {
		return err
	}
	copy(sb.Signature[:], fields[1])
	return nil
}
