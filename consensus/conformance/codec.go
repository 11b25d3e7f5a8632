package conformance

import (
	"github.com/ethclient/deneb-beacon/consensus"
	"github.com/ethclient/deneb-beacon/consensus/params"
)

// SSZDecoder implements Decoder on top of consensus's own SSZ codec
// (consensus/ssz_codec*.go). It is the decoder RunDir/Run use once a real
// fixture corpus is vendored; fixture_test.go's stubDecoder exercises the
// ErrNoDecoder/error-propagation paths independently of this type.
type SSZDecoder struct{}

// DecodeState decodes a snappy-decompressed SSZ BeaconState.
func (SSZDecoder) DecodeState(raw []byte, cfg params.Config) (*consensus.BeaconState, error) {
	state := &consensus.BeaconState{}
	if err := state.UnmarshalSSZ(raw, cfg); err != nil {
		return nil, err
	}
	return state, nil
}

// DecodeSignedBlock decodes a snappy-decompressed SSZ SignedBeaconBlock.
func (SSZDecoder) DecodeSignedBlock(raw []byte, cfg params.Config) (*consensus.SignedBeaconBlock, error) {
	block := &consensus.SignedBeaconBlock{}
	if err := block.UnmarshalSSZ(raw, cfg); err != nil {
		return nil, err
	}
	return block, nil
}
