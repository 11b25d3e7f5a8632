package conformance

import (
	"errors"
	"fmt"

	"github.com/ethclient/deneb-beacon/consensus"
	"github.com/ethclient/deneb-beacon/consensus/params"
)

// ErrNoDecoder is returned by Run when the fixture's raw SSZ bytes cannot be
// turned into beacon types because the caller supplied no Decoder.
var ErrNoDecoder = errors.New("conformance: no Decoder supplied for raw SSZ fixture bytes")

// Decoder turns a fixture's raw, already snappy-decompressed SSZ bytes into
// the consensus package's in-memory types. SSZDecoder (codec.go) implements
// this on top of consensus's own MarshalSSZ/UnmarshalSSZ pair; tests that
// only want to exercise Run's pass/fail bookkeeping can inject a lighter
// stand-in instead. Run reports ErrNoDecoder if no Decoder is supplied.
type Decoder interface {
	DecodeState(raw []byte, cfg params.Config) (*consensus.BeaconState, error)
	DecodeSignedBlock(raw []byte, cfg params.Config) (*consensus.SignedBeaconBlock, error)
}

// Result is the outcome of running one fixture case.
type Result struct {
	Name   string
	Passed bool
	Err    error
}

// Run decodes and executes a single fixture case against cfg, comparing the
// resulting state's tree-hash root to the fixture's expected post root (or,
// for cases with Meta.ExpectError set, requiring the transition to fail).
func Run(cfg params.Config, f *Fixture, dec Decoder) *Result {
	r := &Result{Name: f.Name}
	if dec == nil {
		r.Err = ErrNoDecoder
		return r
	}

	state, err := dec.DecodeState(f.PreSSZ, cfg)
	if err != nil {
		r.Err = fmt.Errorf("decode pre-state: %w", err)
		return r
	}

	var transitionErr error
	for i, raw := range f.Blocks {
		block, err := dec.DecodeSignedBlock(raw, cfg)
		if err != nil {
			r.Err = fmt.Errorf("decode block %d: %w", i, err)
			return r
		}
		if err := consensus.StateTransition(state, block, true); err != nil {
			transitionErr = err
			break
		}
	}

	if f.Meta.ExpectError {
		r.Passed = transitionErr != nil
		return r
	}
	if transitionErr != nil {
		r.Err = fmt.Errorf("state transition: %w", transitionErr)
		return r
	}

	gotRoot, err := state.HashTreeRoot()
	if err != nil {
		r.Err = fmt.Errorf("hash post-state: %w", err)
		return r
	}
	want := consensus.Root(f.Meta.PostRoot)
	r.Passed = consensus.Root(gotRoot) == want
	if !r.Passed {
		r.Err = fmt.Errorf("post-state root mismatch: got %x, want %x", gotRoot, want)
	}
	return r
}

// RunDir discovers every fixture case under dir and runs it, returning one
// Result per case. An empty or non-existent dir yields an empty slice rather
// than an error, since fixture vectors are large and typically kept out of the
// repository proper.
func RunDir(cfg params.Config, dir string, dec Decoder) ([]*Result, error) {
	cases, err := DiscoverFixtures(dir)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(cases))
	for _, c := range cases {
		f, err := LoadFixture(c)
		if err != nil {
			results = append(results, &Result{Name: c, Err: err})
			continue
		}
		results = append(results, Run(cfg, f, dec))
	}
	return results, nil
}
