package hasher

import "testing"

func TestBcrypt_RoundTrip(t *testing.T) {
	h := NewBcrypt(4) // min cost keeps the test fast

	hash, err := h.Hash("s3cret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if string(hash) == "s3cret" {
		t.Fatal("hash should not equal plaintext")
	}

	if !h.Compare(hash, "s3cret") {
		t.Error("Compare() should accept the original plaintext")
	}
	if h.Compare(hash, "wrong") {
		t.Error("Compare() should reject a different plaintext")
	}
}

func TestBcrypt_InvalidCostFallsBack(t *testing.T) {
	h := NewBcrypt(99)

	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !h.Compare(hash, "pw") {
		t.Error("Compare() should accept plaintext after cost fallback")
	}
}

func TestFake(t *testing.T) {
	var h Fake

	hash, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !h.Compare(hash, "pw") || h.Compare(hash, "other") {
		t.Error("Fake hasher should compare by equality")
	}
}
