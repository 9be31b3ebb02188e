package password

import "testing"

func TestHashVerify_RoundTrip(t *testing.T) {
	h := NewHasher(4) // テストでは最小コストで高速化

	digest, err := h.Hash("P@ss1234")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if digest == "P@ss1234" {
		t.Fatal("digest should not equal the plaintext")
	}

	if !h.Verify("P@ss1234", digest) {
		t.Error("Verify(correct password) = false, want true")
	}
	if h.Verify("wrong-password1!", digest) {
		t.Error("Verify(wrong password) = true, want false")
	}
}

func TestHash_FreshSaltPerCall(t *testing.T) {
	h := NewHasher(4)

	d1, err := h.Hash("Secret#9")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	d2, err := h.Hash("Secret#9")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	// ソルトが毎回生成されるため、同一平文でもダイジェストは異なる
	if d1 == d2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerify_CorruptDigestIsFailureNotPanic(t *testing.T) {
	h := NewHasher(4)

	if h.Verify("anything1!", "not-a-bcrypt-digest") {
		t.Error("Verify against a corrupt digest should return false")
	}
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	h := NewHasher(99)
	if h.cost != DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, DefaultCost)
	}
}

func TestIsHashed(t *testing.T) {
	h := NewHasher(4)
	digest, err := h.Hash("Secret#9")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !IsHashed(digest) {
		t.Error("IsHashed(digest) = false, want true")
	}
	if IsHashed("Secret#9") {
		t.Error("IsHashed(plaintext) = true, want false")
	}
}
