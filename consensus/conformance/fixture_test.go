package conformance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethclient/deneb-beacon/consensus"
	"github.com/ethclient/deneb-beacon/consensus/params"
	"github.com/golang/snappy"
)

func writeSnappyFile(t *testing.T, path string, raw []byte) {
	t.Helper()
	if err := os.WriteFile(path, snappy.Encode(nil, raw), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeFixtureCase(t *testing.T, dir string, pre, block0, block1, post []byte, meta Meta) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	writeSnappyFile(t, filepath.Join(dir, "pre.ssz_snappy"), pre)
	if block0 != nil {
		writeSnappyFile(t, filepath.Join(dir, "blocks_0.ssz_snappy"), block0)
	}
	if block1 != nil {
		writeSnappyFile(t, filepath.Join(dir, "blocks_1.ssz_snappy"), block1)
	}
	if post != nil {
		writeSnappyFile(t, filepath.Join(dir, "post.ssz_snappy"), post)
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), raw, 0o644); err != nil {
		t.Fatalf("write meta.json: %v", err)
	}
}

func TestDiscoverFixturesMissingDirReturnsEmpty(t *testing.T) {
	cases, err := DiscoverFixtures(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("DiscoverFixtures on a missing directory returned an error: %v", err)
	}
	if len(cases) != 0 {
		t.Fatalf("expected no cases, got %v", cases)
	}
}

func TestDiscoverFixturesFindsCaseDirectories(t *testing.T) {
	root := t.TempDir()
	caseA := filepath.Join(root, "case_a")
	caseB := filepath.Join(root, "nested", "case_b")
	writeFixtureCase(t, caseA, []byte("pre-a"), []byte("block-a"), nil, []byte("post-a"), Meta{})
	writeFixtureCase(t, caseB, []byte("pre-b"), nil, nil, []byte("post-b"), Meta{})

	cases, err := DiscoverFixtures(root)
	if err != nil {
		t.Fatalf("DiscoverFixtures error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("DiscoverFixtures found %d cases, want 2: %v", len(cases), cases)
	}
}

func TestLoadFixtureDecompressesAndOrdersBlocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "case")
	meta := Meta{Description: "synthetic round-trip case"}
	writeFixtureCase(t, dir, []byte("pre-bytes"), []byte("block-0"), []byte("block-1"), []byte("post-bytes"), meta)

	f, err := LoadFixture(dir)
	if err != nil {
		t.Fatalf("LoadFixture error: %v", err)
	}
	if string(f.PreSSZ) != "pre-bytes" {
		t.Fatalf("PreSSZ = %q, want %q", f.PreSSZ, "pre-bytes")
	}
	if string(f.PostSSZ) != "post-bytes" {
		t.Fatalf("PostSSZ = %q, want %q", f.PostSSZ, "post-bytes")
	}
	if len(f.Blocks) != 2 || string(f.Blocks[0]) != "block-0" || string(f.Blocks[1]) != "block-1" {
		t.Fatalf("Blocks = %v, want [block-0 block-1] in order", f.Blocks)
	}
	if f.Meta.Description != meta.Description {
		t.Fatalf("Meta.Description = %q, want %q", f.Meta.Description, meta.Description)
	}
}

func TestLoadFixtureWithoutPostStateOrMeta(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "case")
	writeFixtureCase(t, dir, []byte("pre-only"), nil, nil, nil, Meta{})
	if err := os.Remove(filepath.Join(dir, "meta.json")); err != nil {
		t.Fatalf("remove meta.json: %v", err)
	}

	f, err := LoadFixture(dir)
	if err != nil {
		t.Fatalf("LoadFixture error: %v", err)
	}
	if f.PostSSZ != nil {
		t.Fatalf("expected nil PostSSZ for an error-expecting case without post.ssz_snappy, got %v", f.PostSSZ)
	}
}

// stubDecoder satisfies Decoder for tests without a real SSZ decoder: it
// treats the pre-state bytes as a fresh QuickConfig genesis state and
// refuses to decode any block (errNotImplemented), so Run's pass/fail
// bookkeeping can be exercised on block-less cases without a full
// BeaconState/SignedBeaconBlock SSZ decoder.
type stubDecoder struct{}

func (stubDecoder) DecodeState(raw []byte, cfg params.Config) (*consensus.BeaconState, error) {
	return newTestConformanceState(cfg), nil
}

func (stubDecoder) DecodeSignedBlock(raw []byte, cfg params.Config) (*consensus.SignedBeaconBlock, error) {
	return nil, errNotImplemented
}

func TestRunWithoutDecoderReportsErrNoDecoder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "case")
	writeFixtureCase(t, dir, []byte("pre"), nil, nil, nil, Meta{})
	f, err := LoadFixture(dir)
	if err != nil {
		t.Fatalf("LoadFixture error: %v", err)
	}
	r := Run(params.QuickConfig(), f, nil)
	if r.Err != ErrNoDecoder {
		t.Fatalf("Run with a nil Decoder = %v, want ErrNoDecoder", r.Err)
	}
}

func TestRunWithNoBlocksComparesPostRootDirectly(t *testing.T) {
	cfg := params.QuickConfig()
	state := newTestConformanceState(cfg)
	root, err := state.HashTreeRoot()
	if err != nil {
		t.Fatalf("HashTreeRoot error: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "case")
	writeFixtureCase(t, dir, []byte("pre"), nil, nil, nil, Meta{PostRoot: rootToHash(root)})
	f, err := LoadFixture(dir)
	if err != nil {
		t.Fatalf("LoadFixture error: %v", err)
	}

	r := Run(cfg, f, stubDecoder{})
	if r.Err != nil {
		t.Fatalf("Run error: %v", r.Err)
	}
	if !r.Passed {
		t.Fatal("expected Run to pass when the decoded pre-state's own root matches Meta.PostRoot and no blocks apply")
	}
}

func TestRunReportsMismatchedPostRoot(t *testing.T) {
	cfg := params.QuickConfig()
	dir := filepath.Join(t.TempDir(), "case")
	writeFixtureCase(t, dir, []byte("pre"), nil, nil, nil, Meta{})
	f, err := LoadFixture(dir)
	if err != nil {
		t.Fatalf("LoadFixture error: %v", err)
	}

	r := Run(cfg, f, stubDecoder{})
	if r.Passed {
		t.Fatal("expected Run to fail: Meta.PostRoot is the zero hash, which cannot match a real genesis state root")
	}
	if r.Err == nil {
		t.Fatal("expected Run to report a post-state root mismatch error")
	}
}
