package consensus

import (
	"crypto/sha256"

	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/ethclient/deneb-beacon/ssz"
)

// signingData is the {object_root, domain} pair tree-hashed to derive a
// signing root, grounded on original_source/misc.rs compute_signing_root.
type signingData struct {
	ObjectRoot Root
	Domain     Domain
}

func (s signingData) hashTreeRoot() [32]byte {
	return ssz.HashTreeRootContainer([][32]byte{[32]byte(s.ObjectRoot), [32]byte(s.Domain)})
}

// ComputeSigningRoot returns tree_hash_root({object_root, domain}) for any
// value whose tree-hash root can be computed.
func ComputeSigningRoot(objectRoot Root, domain Domain) Root {
	return Root(signingData{ObjectRoot: objectRoot, Domain: domain}.hashTreeRoot())
}

// ComputeForkDataRoot returns tree_hash_root(ForkData{version, gvr}).
func ComputeForkDataRoot(version ForkVersion, genesisValidatorsRoot Root) Root {
	fd := ForkData{CurrentVersion: version, GenesisValidatorsRoot: genesisValidatorsRoot}
	r, _ := fd.HashTreeRoot()
	return Root(r)
}

// ComputeForkDigest returns the first 4 bytes of ComputeForkDataRoot.
func ComputeForkDigest(version ForkVersion, genesisValidatorsRoot Root) [4]byte {
	root := ComputeForkDataRoot(version, genesisValidatorsRoot)
	var digest [4]byte
	copy(digest[:], root[:4])
	return digest
}

// ComputeDomain returns domain_type || fork_data_root[:28].
func ComputeDomain(domainType [4]byte, forkVersion ForkVersion, genesisValidatorsRoot Root) Domain {
	root := ComputeForkDataRoot(forkVersion, genesisValidatorsRoot)
	var d Domain
	copy(d[:4], domainType[:])
	copy(d[4:], root[:28])
	return d
}

// ComputeActivationExitEpoch is an alias kept for callers that prefer the
// helpers.go grouping over types.go; see ActivationExitEpoch.
func ComputeActivationExitEpoch(cfg params.Config, epoch Epoch) Epoch {
	return ActivationExitEpoch(cfg, epoch)
}

// hashBytes is a small convenience wrapper around sha256.Sum256 used by the
// seed-derivation helpers (BeaconState.GetSeed, GetBeaconProposerIndex).
func hashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}
