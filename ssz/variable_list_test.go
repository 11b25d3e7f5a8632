package ssz

import (
	"bytes"
	"testing"
)

func TestMarshalListOfVariableSizeRoundTrip(t *testing.T) {
	elements := [][]byte{
		{0x01, 0x02, 0x03},
		{},
		{0xAA},
		{0xDE, 0xAD, 0xBE, 0xEF, 0x00},
	}
	encoded := MarshalListOfVariableSize(elements)
	decoded, err := UnmarshalListOfVariableSize(encoded)
	if err != nil {
		t.Fatalf("UnmarshalListOfVariableSize: %v", err)
	}
	if len(decoded) != len(elements) {
		t.Fatalf("got %d elements, want %d", len(decoded), len(elements))
	}
	for i := range elements {
		if !bytes.Equal(decoded[i], elements[i]) {
			t.Fatalf("element %d = %x, want %x", i, decoded[i], elements[i])
		}
	}
}

func TestUnmarshalListOfVariableSizeEmpty(t *testing.T) {
	decoded, err := UnmarshalListOfVariableSize(nil)
	if err != nil {
		t.Fatalf("UnmarshalListOfVariableSize(nil): %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no elements, got %d", len(decoded))
	}
}

func TestUnmarshalListOfVariableSizeRejectsBadOffset(t *testing.T) {
	// Three bytes is too short to hold even a single 4-byte offset.
	if _, err := UnmarshalListOfVariableSize([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected an error decoding a truncated offset table")
	}
}
