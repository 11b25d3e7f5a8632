package conformance

import (
	"testing"

	"github.com/ethclient/deneb-beacon/consensus/params"
)

func TestSSZDecoderRoundTripsState(t *testing.T) {
	cfg := params.QuickConfig()
	state := newTestConformanceState(cfg)

	encoded, err := state.MarshalSSZ()
	if err != nil {
		t.Fatalf("MarshalSSZ: %v", err)
	}

	decoded, err := (SSZDecoder{}).DecodeState(encoded, cfg)
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}

	wantRoot, err := state.HashTreeRoot()
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}
	gotRoot, err := decoded.HashTreeRoot()
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}
	if gotRoot != wantRoot {
		t.Fatalf("decoded state root = %x, want %x", gotRoot, wantRoot)
	}
}

// TestRunWithSSZDecoderAndNoBlocksMatchesPostRoot exercises Run/LoadFixture
// against the real SSZDecoder instead of stubDecoder, proving the
// conformance harness no longer bottoms out at ErrNoDecoder now that the
// consensus package carries its own MarshalSSZ/UnmarshalSSZ pair.
func TestRunWithSSZDecoderAndNoBlocksMatchesPostRoot(t *testing.T) {
	cfg := params.QuickConfig()
	state := newTestConformanceState(cfg)

	preBytes, err := state.MarshalSSZ()
	if err != nil {
		t.Fatalf("MarshalSSZ: %v", err)
	}
	postRoot, err := state.HashTreeRoot()
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}

	f := &Fixture{
		Name:   "empty-state-no-blocks",
		PreSSZ: preBytes,
		Meta:   Meta{PostRoot: rootToHash(postRoot)},
	}

	r := Run(cfg, f, SSZDecoder{})
	if r.Err != nil {
		t.Fatalf("Run: %v", r.Err)
	}
	if !r.Passed {
		t.Fatal("expected Run to pass a no-op transition decoded by SSZDecoder")
	}
}

func TestRunWithSSZDecoderReportsMismatchedPostRoot(t *testing.T) {
	cfg := params.QuickConfig()
	state := newTestConformanceState(cfg)

	preBytes, err := state.MarshalSSZ()
	if err != nil {
		t.Fatalf("MarshalSSZ: %v", err)
	}

	f := &Fixture{Name: "wrong-post-root", PreSSZ: preBytes}

	r := Run(cfg, f, SSZDecoder{})
	if r.Passed {
		t.Fatal("expected Run to fail: Meta.PostRoot is the zero hash, which cannot match a real genesis state root")
	}
	if r.Err == nil {
		t.Fatal("expected Run to report a post-state root mismatch error")
	}
}
