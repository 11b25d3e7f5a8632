// Package conformance loads the SSZ-snappy (pre, block(s), post) fixture
// vectors used to check a client's state transition against known-good
// reference output, and drives them through the consensus package's
// StateTransition.
//
// A fixture case lives in its own directory:
//
//	<case>/pre.ssz_snappy     - snappy-compressed (block format) SSZ BeaconState
//	<case>/blocks_0.ssz_snappy, blocks_1.ssz_snappy, ... - snappy-compressed
//	                            SSZ SignedBeaconBlock, applied in order
//	<case>/post.ssz_snappy    - snappy-compressed SSZ BeaconState (omitted
//	                            when the case expects the transition to
//	                            fail)
//	<case>/meta.json          - sidecar metadata naming the expected
//	                            post-state root and a human description
package conformance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/snappy"

	"github.com/ethereum/go-ethereum/common"
)

// Meta is the sidecar description of a fixture case.
type Meta struct {
	Description string      `json:"description,omitempty"`
	PostRoot    common.Hash `json:"post_root"`
	ExpectError bool        `json:"expect_error,omitempty"`
}

// Fixture holds one case's decompressed SSZ payloads, still in their raw
// encoded form: turning them into *consensus.BeaconState and
// []*consensus.SignedBeaconBlock is left to the Decoder passed to Run.
type Fixture struct {
	Dir     string
	Name    string
	PreSSZ  []byte
	Blocks  [][]byte
	PostSSZ []byte
	Meta    Meta
}

// DiscoverFixtures walks dir and returns the subdirectories that look like
// fixture cases (those containing a pre.ssz_snappy file), sorted for
// deterministic iteration.
func DiscoverFixtures(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("conformance: stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("conformance: %s is not a directory", dir)
	}

	var cases []string
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() && fi.Name() == "pre.ssz_snappy" {
			cases = append(cases, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("conformance: walk %s: %w", dir, err)
	}
	sort.Strings(cases)
	return cases, nil
}

// LoadFixture reads and snappy-decompresses every SSZ file in a case
// directory, plus its meta.json sidecar if present.
func LoadFixture(dir string) (*Fixture, error) {
	f := &Fixture{Dir: dir, Name: filepath.Base(dir)}

	pre, err := readSnappyFile(filepath.Join(dir, "pre.ssz_snappy"))
	if err != nil {
		return nil, fmt.Errorf("conformance: %s: pre-state: %w", f.Name, err)
	}
	f.PreSSZ = pre

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("conformance: %s: read dir: %w", f.Name, err)
	}
	var blockFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "blocks_") && strings.HasSuffix(e.Name(), ".ssz_snappy") {
			blockFiles = append(blockFiles, e.Name())
		}
	}
	sort.Strings(blockFiles)
	for _, name := range blockFiles {
		b, err := readSnappyFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("conformance: %s: %s: %w", f.Name, name, err)
		}
		f.Blocks = append(f.Blocks, b)
	}

	if post, err := readSnappyFile(filepath.Join(dir, "post.ssz_snappy")); err == nil {
		f.PostSSZ = post
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("conformance: %s: post-state: %w", f.Name, err)
	}

	if raw, err := os.ReadFile(filepath.Join(dir, "meta.json")); err == nil {
		if err := json.Unmarshal(raw, &f.Meta); err != nil {
			return nil, fmt.Errorf("conformance: %s: meta.json: %w", f.Name, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("conformance: %s: meta.json: %w", f.Name, err)
	}

	return f, nil
}

func readSnappyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return snappy.Decode(nil, raw)
}
