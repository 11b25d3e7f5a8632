package consensus

import (
	"github.com/ethclient/deneb-beacon/ssz"
)

// This file covers the containers whose SSZ shape depends on either a
// variable-length field (Attestation, IndexedAttestation, AttesterSlashing,
// ExecutionPayload(Header)) or a config-pinned fixed length (Deposit's Merkle
// proof depth, SyncAggregate/SyncCommittee's committee size). Config-pinned
// types take the relevant params.Config value explicitly rather than reading
// a package-level constant, matching how the rest of consensus threads
// params.Config through instead of hardcoding mainnet presets.

// MarshalSSZ encodes an Attestation: aggregation_bits (variable) || data
// (128 bytes) || signature (96 bytes).
func (a *Attestation) MarshalSSZ() ([]byte, error) {
	dataBytes, err := a.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	fixedParts := [][]byte{nil, dataBytes, a.Signature[:]}
	variableParts := [][]byte{a.AggregationBits.Bytes()}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, []int{0}), nil
}

// UnmarshalSSZ decodes an Attestation.
func (a *Attestation) UnmarshalSSZ(data []byte) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 3, []int{0, 128, 96})
	if err != nil {
		return err
	}
	bits, err := ssz.BitlistFromBytes(fields[0])
	if err != nil {
		return err
	}
	if err := a.Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	if len(fields[2]) != 96 {
		return ssz.ErrSize
	}
	a.AggregationBits = bits
	copy(a.Signature[:], fields[2])
	return nil
}

// MarshalSSZ encodes an IndexedAttestation: attesting_indices (variable) ||
// data (128 bytes) || signature (96 bytes).
func (ia *IndexedAttestation) MarshalSSZ() ([]byte, error) {
	idxBytes := make([]byte, 0, len(ia.AttestingIndices)*8)
	for _, idx := range ia.AttestingIndices {
		idxBytes = append(idxBytes, ssz.MarshalUint64(uint64(idx))...)
	}
	dataBytes, err := ia.Data.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	fixedParts := [][]byte{nil, dataBytes, ia.Signature[:]}
	return ssz.MarshalVariableContainer(fixedParts, [][]byte{idxBytes}, []int{0}), nil
}

// UnmarshalSSZ decodes an IndexedAttestation.
func (ia *IndexedAttestation) UnmarshalSSZ(data []byte) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 3, []int{0, 128, 96})
	if err != nil {
		return err
	}
	if len(fields[0])%8 != 0 {
		return ssz.ErrSize
	}
	n := len(fields[0]) / 8
	indices := make([]ValidatorIndex, n)
	for i := 0; i < n; i++ {
		v, err := ssz.UnmarshalUint64(fields[0][i*8 : (i+1)*8])
		if err != nil {
			return err
		}
		indices[i] = ValidatorIndex(v)
	}
	if err := ia.Data.UnmarshalSSZ(fields[1]); err != nil {
		return err
	}
	if len(fields[2]) != 96 {
		return ssz.ErrSize
	}
	ia.AttestingIndices = indices
	copy(ia.Signature[:], fields[2])
	return nil
}

// MarshalSSZ encodes an AttesterSlashing: both attestations are variable-size.
func (as *AttesterSlashing) MarshalSSZ() ([]byte, error) {
	a1, err := as.Attestation1.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	a2, err := as.Attestation2.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	return ssz.MarshalVariableContainer([][]byte{nil, nil}, [][]byte{a1, a2}, []int{0, 1}), nil
}

// UnmarshalSSZ decodes an AttesterSlashing.
func (as *AttesterSlashing) UnmarshalSSZ(data []byte) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 2, []int{0, 0})
	if err != nil {
		return err
	}
	if err := as.Attestation1.UnmarshalSSZ(fields[0]); err != nil {
		return err
	}
	return as.Attestation2.UnmarshalSSZ(fields[1])
}

// MarshalSSZ encodes a Deposit: the Merkle proof vector, fixed at whatever
// length d.Proof actually carries, followed by the deposit data fields.
func (d *Deposit) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, len(d.Proof)*32+48+32+8+96)
	for _, p := range d.Proof {
		buf = append(buf, p[:]...)
	}
	buf = append(buf, d.Pubkey[:]...)
	buf = append(buf, d.WithdrawalCredentials[:]...)
	buf = append(buf, ssz.MarshalUint64(uint64(d.Amount))...)
	buf = append(buf, d.Signature[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes a Deposit. proofDepth is DEPOSIT_CONTRACT_TREE_DEPTH+1
// (the mixed-in deposit-count leaf, per DESIGN.md's Open Question decision),
// since the proof vector's length is fixed by config, not self-describing.
func (d *Deposit) UnmarshalSSZ(data []byte, proofDepth uint64) error {
	proofLen := int(proofDepth) * 32
	want := proofLen + 48 + 32 + 8 + 96
	if len(data) != want {
		return ssz.ErrSize
	}
	proof := make([][32]byte, proofDepth)
	for i := range proof {
		copy(proof[i][:], data[i*32:(i+1)*32])
	}
	off := proofLen
	var pubkey BLSPubkey
	copy(pubkey[:], data[off:off+48])
	off += 48
	var creds Root
	copy(creds[:], data[off:off+32])
	off += 32
	amt, err := ssz.UnmarshalUint64(data[off : off+8])
	if err != nil {
		return err
	}
	off += 8
	var sig BLSSignature
	copy(sig[:], data[off:off+96])

	d.Proof = proof
	d.Pubkey = pubkey
	d.WithdrawalCredentials = creds
	d.Amount = Gwei(amt)
	d.Signature = sig
	return nil
}

// MarshalSSZ encodes a SyncAggregate: sync_committee_bits (bitvector) ||
// sync_committee_signature (96 bytes).
func (sa *SyncAggregate) MarshalSSZ() ([]byte, error) {
	buf := ssz.MarshalBitvector(sa.SyncCommitteeBits)
	buf = append(buf, sa.SyncCommitteeSignature[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes a SyncAggregate. syncCommitteeSize fixes the
// bitvector's bit length (params.Config.SyncCommitteeSize).
func (sa *SyncAggregate) UnmarshalSSZ(data []byte, syncCommitteeSize uint64) error {
	bitsLen := int((syncCommitteeSize + 7) / 8)
	if len(data) != bitsLen+96 {
		return ssz.ErrSize
	}
	bits, err := ssz.UnmarshalBitvector(data[:bitsLen], int(syncCommitteeSize))
	if err != nil {
		return err
	}
	sa.SyncCommitteeBits = bits
	copy(sa.SyncCommitteeSignature[:], data[bitsLen:])
	return nil
}

// MarshalSSZ encodes a SyncCommittee: pubkeys vector || aggregate_pubkey.
func (sc *SyncCommittee) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, len(sc.Pubkeys)*48+48)
	for _, pk := range sc.Pubkeys {
		buf = append(buf, pk[:]...)
	}
	buf = append(buf, sc.AggregatePubkey[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes a SyncCommittee. size is params.Config.SyncCommitteeSize.
func (sc *SyncCommittee) UnmarshalSSZ(data []byte, size uint64) error {
	want := int(size)*48 + 48
	if len(data) != want {
		return ssz.ErrSize
	}
	pubkeys := make([]BLSPubkey, size)
	for i := uint64(0); i < size; i++ {
		copy(pubkeys[i][:], data[i*48:(i+1)*48])
	}
	var agg BLSPubkey
	copy(agg[:], data[size*48:])
	sc.Pubkeys = pubkeys
	sc.AggregatePubkey = agg
	return nil
}

var executionPayloadHeaderFixedSizes = []int{32, 20, 32, 32, 256, 32, 8, 8, 8, 8, 0, 32, 32, 32, 32, 8, 8}

// MarshalSSZ encodes an ExecutionPayloadHeader; extra_data is its only
// variable-size field.
func (h *ExecutionPayloadHeader) MarshalSSZ() ([]byte, error) {
	fixedParts := [][]byte{
		h.ParentHash[:], h.FeeRecipient[:], h.StateRoot[:], h.ReceiptsRoot[:],
		h.LogsBloom[:], h.PrevRandao[:],
		ssz.MarshalUint64(h.BlockNumber), ssz.MarshalUint64(h.GasLimit),
		ssz.MarshalUint64(h.GasUsed), ssz.MarshalUint64(h.Timestamp),
		nil,
		h.BaseFeePerGas[:], h.BlockHash[:], h.TransactionsRoot[:], h.WithdrawalsRoot[:],
		ssz.MarshalUint64(h.BlobGasUsed), ssz.MarshalUint64(h.ExcessBlobGas),
	}
	return ssz.MarshalVariableContainer(fixedParts, [][]byte{h.ExtraData}, []int{10}), nil
}

// UnmarshalSSZ decodes an ExecutionPayloadHeader.
func (h *ExecutionPayloadHeader) UnmarshalSSZ(data []byte) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 17, executionPayloadHeaderFixedSizes)
	if err != nil {
		return err
	}
	copy(h.ParentHash[:], fields[0])
	copy(h.FeeRecipient[:], fields[1])
	copy(h.StateRoot[:], fields[2])
	copy(h.ReceiptsRoot[:], fields[3])
	copy(h.LogsBloom[:], fields[4])
	copy(h.PrevRandao[:], fields[5])
	var v uint64
	if v, err = ssz.UnmarshalUint64(fields[6]); err != nil {
		return err
	}
	h.BlockNumber = v
	if v, err = ssz.UnmarshalUint64(fields[7]); err != nil {
		return err
	}
	h.GasLimit = v
	if v, err = ssz.UnmarshalUint64(fields[8]); err != nil {
		return err
	}
	h.GasUsed = v
	if v, err = ssz.UnmarshalUint64(fields[9]); err != nil {
		return err
	}
	h.Timestamp = v
	h.ExtraData = append([]byte(nil), fields[10]...)
	copy(h.BaseFeePerGas[:], fields[11])
	copy(h.BlockHash[:], fields[12])
	copy(h.TransactionsRoot[:], fields[13])
	copy(h.WithdrawalsRoot[:], fields[14])
	if v, err = ssz.UnmarshalUint64(fields[15]); err != nil {
		return err
	}
	h.BlobGasUsed = v
	if v, err = ssz.UnmarshalUint64(fields[16]); err != nil {
		return err
	}
	h.ExcessBlobGas = v
	return nil
}

var executionPayloadFixedSizes = []int{32, 20, 32, 32, 256, 32, 8, 8, 8, 8, 0, 32, 32, 0, 0, 8, 8}

// MarshalSSZ encodes an ExecutionPayload; extra_data, transactions and
// withdrawals are its variable-size fields.
func (p *ExecutionPayload) MarshalSSZ() ([]byte, error) {
	txItems := make([][]byte, len(p.Transactions))
	for i, tx := range p.Transactions {
		txItems[i] = ssz.MarshalByteList(tx)
	}
	txBytes := ssz.MarshalListOfVariableSize(txItems)

	wdItems := make([][]byte, len(p.Withdrawals))
	for i := range p.Withdrawals {
		b, err := p.Withdrawals[i].MarshalSSZ()
		if err != nil {
			return nil, err
		}
		wdItems[i] = b
	}
	wdBytes := ssz.MarshalList(wdItems)

	fixedParts := [][]byte{
		p.ParentHash[:], p.FeeRecipient[:], p.StateRoot[:], p.ReceiptsRoot[:],
		p.LogsBloom[:], p.PrevRandao[:],
		ssz.MarshalUint64(p.BlockNumber), ssz.MarshalUint64(p.GasLimit),
		ssz.MarshalUint64(p.GasUsed), ssz.MarshalUint64(p.Timestamp),
		nil,
		p.BaseFeePerGas[:], p.BlockHash[:],
		nil, nil,
		ssz.MarshalUint64(p.BlobGasUsed), ssz.MarshalUint64(p.ExcessBlobGas),
	}
	variableParts := [][]byte{p.ExtraData, txBytes, wdBytes}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, []int{10, 13, 14}), nil
}

// UnmarshalSSZ decodes an ExecutionPayload.
func (p *ExecutionPayload) UnmarshalSSZ(data []byte) error {
	fields, err := ssz.UnmarshalVariableContainer(data, 17, executionPayloadFixedSizes)
	if err != nil {
		return err
	}
	copy(p.ParentHash[:], fields[0])
	copy(p.FeeRecipient[:], fields[1])
	copy(p.StateRoot[:], fields[2])
	copy(p.ReceiptsRoot[:], fields[3])
	copy(p.LogsBloom[:], fields[4])
	copy(p.PrevRandao[:], fields[5])
	var v uint64
	if v, err = ssz.UnmarshalUint64(fields[6]); err != nil {
		return err
	}
	p.BlockNumber = v
	if v, err = ssz.UnmarshalUint64(fields[7]); err != nil {
		return err
	}
	p.GasLimit = v
	if v, err = ssz.UnmarshalUint64(fields[8]); err != nil {
		return err
	}
	p.GasUsed = v
	if v, err = ssz.UnmarshalUint64(fields[9]); err != nil {
		return err
	}
	p.Timestamp = v
	p.ExtraData = append([]byte(nil), fields[10]...)
	copy(p.BaseFeePerGas[:], fields[11])
	copy(p.BlockHash[:], fields[12])

	txItems, err := ssz.UnmarshalListOfVariableSize(fields[13])
	if err != nil {
		return err
	}
	transactions := make([][]byte, len(txItems))
	for i, tx := range txItems {
		transactions[i] = append([]byte(nil), tx...)
	}
	p.Transactions = transactions

	wdItems, err := ssz.UnmarshalList(fields[14], 44)
	if err != nil {
		return err
	}
	withdrawals := make([]Withdrawal, len(wdItems))
	for i := range wdItems {
		if err := withdrawals[i].UnmarshalSSZ(wdItems[i]); err != nil {
			return err
		}
	}
	p.Withdrawals = withdrawals

	if v, err = ssz.UnmarshalUint64(fields[15]); err != nil {
		return err
	}
	p.BlobGasUsed = v
	if v, err = ssz.UnmarshalUint64(fields[16]); err != nil {
		return err
	}
	p.ExcessBlobGas = v
	return nil
}
