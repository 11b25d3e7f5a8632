package consensus

import "testing"

func TestComputeSigningRootIsDeterministic(t *testing.T) {
	objectRoot := Root{0x01}
	domain := Domain{0x02}
	a := ComputeSigningRoot(objectRoot, domain)
	b := ComputeSigningRoot(objectRoot, domain)
	if a != b {
		t.Fatalf("ComputeSigningRoot is not deterministic: %x != %x", a, b)
	}
}

func TestComputeSigningRootDiffersByDomain(t *testing.T) {
	objectRoot := Root{0x01}
	a := ComputeSigningRoot(objectRoot, Domain{0x02})
	b := ComputeSigningRoot(objectRoot, Domain{0x03})
	if a == b {
		t.Fatal("signing roots for different domains must differ")
	}
}

func TestComputeDomainEmbedsDomainType(t *testing.T) {
	domainType := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	d := ComputeDomain(domainType, ForkVersion{}, Root{})
	if [4]byte(d[:4]) != domainType {
		t.Fatalf("ComputeDomain's first 4 bytes = %x, want domain type %x", d[:4], domainType)
	}
}

func TestComputeDomainDiffersByForkVersion(t *testing.T) {
	domainType := [4]byte{0x01}
	a := ComputeDomain(domainType, ForkVersion{0x01}, Root{})
	b := ComputeDomain(domainType, ForkVersion{0x02}, Root{})
	if a == b {
		t.Fatal("domains computed from different fork versions must differ")
	}
}

func TestComputeForkDigestIsFirstFourBytesOfForkDataRoot(t *testing.T) {
	version := ForkVersion{0x04}
	gvr := Root{0x05}
	root := ComputeForkDataRoot(version, gvr)
	digest := ComputeForkDigest(version, gvr)
	if [4]byte(root[:4]) != digest {
		t.Fatalf("ComputeForkDigest = %x, want first 4 bytes of fork data root %x", digest, root[:4])
	}
}
