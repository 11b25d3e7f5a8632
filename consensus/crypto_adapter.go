package consensus

import (
	"github.com/ethclient/deneb-beacon/crypto"
)

// EthFastAggregateVerify implements the spec's eth_fast_aggregate_verify
// (§6): true iff pubkeys is empty and signature is the G2 point at
// infinity; otherwise delegates to standard fast-aggregate-verify. The
// teacher's crypto.FastAggregateVerify rejects an empty pubkey list
// outright, which does not satisfy this contract, so the empty-set case is
// special-cased here rather than inside the crypto package.
func EthFastAggregateVerify(pubkeys []BLSPubkey, msg []byte, sig BLSSignature) bool {
	if len(pubkeys) == 0 {
		return sig == BLSSignature(crypto.BLSPointAtInfinityG2)
	}
	raw := make([][48]byte, len(pubkeys))
	for i, pk := range pubkeys {
		raw[i] = [48]byte(pk)
	}
	return crypto.FastAggregateVerify(raw, msg, [96]byte(sig))
}

// VerifyBLS verifies a single BLS12-381 signature.
func VerifyBLS(pubkey BLSPubkey, msg []byte, sig BLSSignature) bool {
	return crypto.BLSVerify([48]byte(pubkey), msg, [96]byte(sig))
}

// blsVerifyRequest is one (pubkey, message, signature) triple to check as
// part of a batch.
type blsVerifyRequest struct {
	Pubkey BLSPubkey
	Msg    []byte
	Sig    BLSSignature
}

// VerifyBLSBatch verifies a set of independent signatures with a single
// random-linear-combination pairing check instead of one pairing per
// signature, via the teacher's crypto.BLSSignatureSet. Used wherever a
// single operation carries more than one signature over distinct messages
// (e.g. a proposer slashing's two conflicting headers).
func VerifyBLSBatch(requests ...blsVerifyRequest) bool {
	set := crypto.NewBLSSignatureSet()
	for _, r := range requests {
		set.Add([48]byte(r.Pubkey), r.Msg, [96]byte(r.Sig))
	}
	return set.Verify()
}

// AggregatePubkeys combines a sync committee's member pubkeys into a single
// aggregate G1 point, returning the zero key for an empty committee.
func AggregatePubkeys(pubkeys []BLSPubkey) BLSPubkey {
	if len(pubkeys) == 0 {
		return BLSPubkey{}
	}
	raw := make([][48]byte, len(pubkeys))
	for i, pk := range pubkeys {
		raw[i] = [48]byte(pk)
	}
	return BLSPubkey(crypto.AggregatePublicKeys(raw))
}

// VerifyIndexedAttestationSignature re-derives the signing root for the
// indexed attestation's data and verifies the aggregate signature against
// the aggregated pubkeys of its attesting indices.
func VerifyIndexedAttestationSignature(pubkeys []BLSPubkey, dataRoot Root, domain Domain, sig BLSSignature) bool {
	signingRoot := ComputeSigningRoot(dataRoot, domain)
	return EthFastAggregateVerify(pubkeys, signingRoot[:], sig)
}
