package consensus

import (
	"testing"

	"github.com/ethclient/deneb-beacon/crypto"
)

// TestEthFastAggregateVerifyEmptySetRequiresInfinitySignature pins the
// eth_fast_aggregate_verify contract: an empty pubkey set verifies iff the
// signature is the G2 point at infinity, not unconditionally true.
func TestEthFastAggregateVerifyEmptySetRequiresInfinitySignature(t *testing.T) {
	infinity := BLSSignature(crypto.BLSPointAtInfinityG2)
	if !EthFastAggregateVerify(nil, []byte("msg"), infinity) {
		t.Fatal("expected empty pubkey set with the G2 infinity signature to verify")
	}

	var notInfinity BLSSignature
	notInfinity[0] = 0x01
	if EthFastAggregateVerify(nil, []byte("msg"), notInfinity) {
		t.Fatal("expected empty pubkey set with a non-infinity signature to fail")
	}
}

func TestAggregatePubkeysEmptyReturnsZeroKey(t *testing.T) {
	got := AggregatePubkeys(nil)
	if got != (BLSPubkey{}) {
		t.Fatalf("AggregatePubkeys(nil) = %x, want zero key", got)
	}
}

func TestVerifyBLSBatchEmptySetFails(t *testing.T) {
	if VerifyBLSBatch() {
		t.Fatal("expected an empty batch to fail verification rather than vacuously succeed")
	}
}

func TestVerifyBLSBatchRejectsGarbageSignature(t *testing.T) {
	req := blsVerifyRequest{Msg: []byte("msg")}
	if VerifyBLSBatch(req, req) {
		t.Fatal("expected a batch of zero-value pubkeys/signatures to fail verification")
	}
}
