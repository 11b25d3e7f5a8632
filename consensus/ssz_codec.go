package consensus

import (
	"github.com/ethclient/deneb-beacon/ssz"
)

// This file implements the canonical SSZ encode/decode pair (§4.1, §8) for
// every fixed-size container: byte-for-byte the same field order the
// corresponding HashTreeRoot in state_ssz.go / state_ssz_body.go composes,
// so a round-trip through MarshalSSZ/UnmarshalSSZ always hashes to the same
// root as the value it was built from.

// MarshalSSZ encodes a Checkpoint: epoch (8 bytes) || root (32 bytes).
func (c Checkpoint) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 40)
	buf = append(buf, ssz.MarshalUint64(uint64(c.Epoch))...)
	buf = append(buf, c.Root[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes a Checkpoint, rejecting anything but exactly 40 bytes.
func (c *Checkpoint) UnmarshalSSZ(data []byte) error {
	if len(data) != 40 {
		return ssz.ErrSize
	}
	epoch, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	c.Epoch = Epoch(epoch)
	copy(c.Root[:], data[8:40])
	return nil
}

// MarshalSSZ encodes Fork: previous_version || current_version || epoch.
func (f Fork) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 16)
	buf = append(buf, f.PreviousVersion[:]...)
	buf = append(buf, f.CurrentVersion[:]...)
	buf = append(buf, ssz.MarshalUint64(uint64(f.Epoch))...)
	return buf, nil
}

// UnmarshalSSZ decodes Fork.
func (f *Fork) UnmarshalSSZ(data []byte) error {
	if len(data) != 16 {
		return ssz.ErrSize
	}
	copy(f.PreviousVersion[:], data[0:4])
	copy(f.CurrentVersion[:], data[4:8])
	epoch, err := ssz.UnmarshalUint64(data[8:16])
	if err != nil {
		return err
	}
	f.Epoch = Epoch(epoch)
	return nil
}

// MarshalSSZ encodes ForkData: current_version || genesis_validators_root.
func (f ForkData) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 36)
	buf = append(buf, f.CurrentVersion[:]...)
	buf = append(buf, f.GenesisValidatorsRoot[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes ForkData.
func (f *ForkData) UnmarshalSSZ(data []byte) error {
	if len(data) != 36 {
		return ssz.ErrSize
	}
	copy(f.CurrentVersion[:], data[0:4])
	copy(f.GenesisValidatorsRoot[:], data[4:36])
	return nil
}

// MarshalSSZ encodes Eth1Data: deposit_root || deposit_count || block_hash.
func (e Eth1Data) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 72)
	buf = append(buf, e.DepositRoot[:]...)
	buf = append(buf, ssz.MarshalUint64(e.DepositCount)...)
	buf = append(buf, e.BlockHash[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes Eth1Data.
func (e *Eth1Data) UnmarshalSSZ(data []byte) error {
	if len(data) != 72 {
		return ssz.ErrSize
	}
	copy(e.DepositRoot[:], data[0:32])
	count, err := ssz.UnmarshalUint64(data[32:40])
	if err != nil {
		return err
	}
	e.DepositCount = count
	copy(e.BlockHash[:], data[40:72])
	return nil
}

// MarshalSSZ encodes a Validator registry entry (121 bytes fixed).
func (v Validator) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 121)
	buf = append(buf, v.Pubkey[:]...)
	buf = append(buf, v.WithdrawalCredentials[:]...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.EffectiveBalance))...)
	buf = append(buf, ssz.MarshalBool(v.Slashed)...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.ActivationEligibilityEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.ActivationEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.ExitEpoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(v.WithdrawableEpoch))...)
	return buf, nil
}

// UnmarshalSSZ decodes a Validator.
func (v *Validator) UnmarshalSSZ(data []byte) error {
	if len(data) != 121 {
		return ssz.ErrSize
	}
	copy(v.Pubkey[:], data[0:48])
	copy(v.WithdrawalCredentials[:], data[48:80])
	eb, err := ssz.UnmarshalUint64(data[80:88])
	if err != nil {
		return err
	}
	v.EffectiveBalance = Gwei(eb)
	slashed, err := ssz.UnmarshalBool(data[88:89])
	if err != nil {
		return err
	}
	v.Slashed = slashed
	ae, err := ssz.UnmarshalUint64(data[89:97])
	if err != nil {
		return err
	}
	v.ActivationEligibilityEpoch = Epoch(ae)
	aa, err := ssz.UnmarshalUint64(data[97:105])
	if err != nil {
		return err
	}
	v.ActivationEpoch = Epoch(aa)
	ee, err := ssz.UnmarshalUint64(data[105:113])
	if err != nil {
		return err
	}
	v.ExitEpoch = Epoch(ee)
	we, err := ssz.UnmarshalUint64(data[113:121])
	if err != nil {
		return err
	}
	v.WithdrawableEpoch = Epoch(we)
	return nil
}

// MarshalSSZ encodes AttestationData (128 bytes fixed).
func (d *AttestationData) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 128)
	buf = append(buf, ssz.MarshalUint64(uint64(d.Slot))...)
	buf = append(buf, ssz.MarshalUint64(uint64(d.CommitteeIndex))...)
	buf = append(buf, d.BeaconBlockRoot[:]...)
	srcBytes, _ := d.Source.MarshalSSZ()
	buf = append(buf, srcBytes...)
	tgtBytes, _ := d.Target.MarshalSSZ()
	buf = append(buf, tgtBytes...)
	return buf, nil
}

// UnmarshalSSZ decodes AttestationData.
func (d *AttestationData) UnmarshalSSZ(data []byte) error {
	if len(data) != 128 {
		return ssz.ErrSize
	}
	slot, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	ci, err := ssz.UnmarshalUint64(data[8:16])
	if err != nil {
		return err
	}
	copy(d.BeaconBlockRoot[:], data[16:48])
	if err := d.Source.UnmarshalSSZ(data[48:88]); err != nil {
		return err
	}
	if err := d.Target.UnmarshalSSZ(data[88:128]); err != nil {
		return err
	}
	d.Slot = Slot(slot)
	d.CommitteeIndex = CommitteeIndex(ci)
	return nil
}

// MarshalSSZ encodes BeaconBlockHeader (112 bytes fixed).
func (h *BeaconBlockHeader) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 112)
	buf = append(buf, ssz.MarshalUint64(uint64(h.Slot))...)
	buf = append(buf, ssz.MarshalUint64(uint64(h.ProposerIndex))...)
	buf = append(buf, h.ParentRoot[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.BodyRoot[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes BeaconBlockHeader.
func (h *BeaconBlockHeader) UnmarshalSSZ(data []byte) error {
	if len(data) != 112 {
		return ssz.ErrSize
	}
	slot, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	pi, err := ssz.UnmarshalUint64(data[8:16])
	if err != nil {
		return err
	}
	copy(h.ParentRoot[:], data[16:48])
	copy(h.StateRoot[:], data[48:80])
	copy(h.BodyRoot[:], data[80:112])
	h.Slot = Slot(slot)
	h.ProposerIndex = ValidatorIndex(pi)
	return nil
}

// MarshalSSZ encodes SignedBeaconBlockHeader (208 bytes fixed).
func (h *SignedBeaconBlockHeader) MarshalSSZ() ([]byte, error) {
	msg, err := h.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 208)
	buf = append(buf, msg...)
	buf = append(buf, h.Signature[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes SignedBeaconBlockHeader.
func (h *SignedBeaconBlockHeader) UnmarshalSSZ(data []byte) error {
	if len(data) != 208 {
		return ssz.ErrSize
	}
	if err := h.Message.UnmarshalSSZ(data[0:112]); err != nil {
		return err
	}
	copy(h.Signature[:], data[112:208])
	return nil
}

// MarshalSSZ encodes ProposerSlashing (416 bytes fixed: two signed headers).
func (p *ProposerSlashing) MarshalSSZ() ([]byte, error) {
	h1, err := p.SignedHeader1.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	h2, err := p.SignedHeader2.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 416)
	buf = append(buf, h1...)
	buf = append(buf, h2...)
	return buf, nil
}

// UnmarshalSSZ decodes ProposerSlashing.
func (p *ProposerSlashing) UnmarshalSSZ(data []byte) error {
	if len(data) != 416 {
		return ssz.ErrSize
	}
	if err := p.SignedHeader1.UnmarshalSSZ(data[0:208]); err != nil {
		return err
	}
	return p.SignedHeader2.UnmarshalSSZ(data[208:416])
}

// MarshalSSZ encodes Withdrawal (44 bytes fixed).
func (w Withdrawal) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 44)
	buf = append(buf, ssz.MarshalUint64(w.Index)...)
	buf = append(buf, ssz.MarshalUint64(uint64(w.ValidatorIndex))...)
	buf = append(buf, w.Address[:]...)
	buf = append(buf, ssz.MarshalUint64(uint64(w.Amount))...)
	return buf, nil
}

// UnmarshalSSZ decodes a Withdrawal.
func (w *Withdrawal) UnmarshalSSZ(data []byte) error {
	if len(data) != 44 {
		return ssz.ErrSize
	}
	idx, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	vi, err := ssz.UnmarshalUint64(data[8:16])
	if err != nil {
		return err
	}
	copy(w.Address[:], data[16:36])
	amt, err := ssz.UnmarshalUint64(data[36:44])
	if err != nil {
		return err
	}
	w.Index = idx
	w.ValidatorIndex = ValidatorIndex(vi)
	w.Amount = Gwei(amt)
	return nil
}

// MarshalSSZ encodes VoluntaryExit (16 bytes fixed).
func (ve VoluntaryExit) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 16)
	buf = append(buf, ssz.MarshalUint64(uint64(ve.Epoch))...)
	buf = append(buf, ssz.MarshalUint64(uint64(ve.ValidatorIndex))...)
	return buf, nil
}

// UnmarshalSSZ decodes a VoluntaryExit.
func (ve *VoluntaryExit) UnmarshalSSZ(data []byte) error {
	if len(data) != 16 {
		return ssz.ErrSize
	}
	epoch, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	vi, err := ssz.UnmarshalUint64(data[8:16])
	if err != nil {
		return err
	}
	ve.Epoch = Epoch(epoch)
	ve.ValidatorIndex = ValidatorIndex(vi)
	return nil
}

// MarshalSSZ encodes SignedVoluntaryExit (112 bytes fixed).
func (sve *SignedVoluntaryExit) MarshalSSZ() ([]byte, error) {
	msg, err := sve.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 112)
	buf = append(buf, msg...)
	buf = append(buf, sve.Signature[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes SignedVoluntaryExit.
func (sve *SignedVoluntaryExit) UnmarshalSSZ(data []byte) error {
	if len(data) != 112 {
		return ssz.ErrSize
	}
	if err := sve.Message.UnmarshalSSZ(data[0:16]); err != nil {
		return err
	}
	copy(sve.Signature[:], data[16:112])
	return nil
}

// MarshalSSZ encodes BLSToExecutionChange (76 bytes fixed).
func (c *BLSToExecutionChange) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 76)
	buf = append(buf, ssz.MarshalUint64(uint64(c.ValidatorIndex))...)
	buf = append(buf, c.FromBLSPubkey[:]...)
	buf = append(buf, c.ToExecutionAddress[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes BLSToExecutionChange.
func (c *BLSToExecutionChange) UnmarshalSSZ(data []byte) error {
	if len(data) != 76 {
		return ssz.ErrSize
	}
	vi, err := ssz.UnmarshalUint64(data[0:8])
	if err != nil {
		return err
	}
	c.ValidatorIndex = ValidatorIndex(vi)
	copy(c.FromBLSPubkey[:], data[8:56])
	copy(c.ToExecutionAddress[:], data[56:76])
	return nil
}

// MarshalSSZ encodes SignedBLSToExecutionChange (172 bytes fixed).
func (sc *SignedBLSToExecutionChange) MarshalSSZ() ([]byte, error) {
	msg, err := sc.Message.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 172)
	buf = append(buf, msg...)
	buf = append(buf, sc.Signature[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes SignedBLSToExecutionChange.
func (sc *SignedBLSToExecutionChange) UnmarshalSSZ(data []byte) error {
	if len(data) != 172 {
		return ssz.ErrSize
	}
	if err := sc.Message.UnmarshalSSZ(data[0:76]); err != nil {
		return err
	}
	copy(sc.Signature[:], data[76:172])
	return nil
}

// MarshalSSZ encodes HistoricalSummary (64 bytes fixed).
func (hs HistoricalSummary) MarshalSSZ() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, hs.BlockSummaryRoot[:]...)
	buf = append(buf, hs.StateSummaryRoot[:]...)
	return buf, nil
}

// UnmarshalSSZ decodes a HistoricalSummary.
func (hs *HistoricalSummary) UnmarshalSSZ(data []byte) error {
	if len(data) != 64 {
		return ssz.ErrSize
	}
	copy(hs.BlockSummaryRoot[:], data[0:32])
	copy(hs.StateSummaryRoot[:], data[32:64])
	return nil
}
