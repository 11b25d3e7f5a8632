package conformance

import (
	"errors"

	"github.com/ethclient/deneb-beacon/consensus"
	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethereum/go-ethereum/common"
)

var errNotImplemented = errors.New("conformance: stubDecoder cannot decode blocks")

func newTestConformanceState(cfg params.Config) *consensus.BeaconState {
	return consensus.NewBeaconState(cfg)
}

func rootToHash(root [32]byte) common.Hash {
	return common.Hash(root)
}
