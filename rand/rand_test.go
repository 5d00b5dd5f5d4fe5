package rand

import "testing"

func TestGenerateCryptoSafeRandomData(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	if err := GenerateCryptoSafeRandomData(a); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	if err := GenerateCryptoSafeRandomData(b); err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	if string(a) == string(b) {
		t.Errorf("expected two random buffers to differ")
	}
}

func TestGenerateUuid(t *testing.T) {
	id := GenerateUuid()
	if len(id) != 36 {
		t.Errorf("expected uuid to be 36 characters long, but got %d (%s)", len(id), id)
	}
	if id == GenerateUuid() {
		t.Errorf("expected two uuids to differ")
	}
}

func TestGenerateID(t *testing.T) {
	first, err := GenerateID()
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	second, err := GenerateID()
	if err != nil {
		t.Fatalf("expected no error, but got %v", err)
	}
	if second <= first {
		t.Errorf("expected IDs to increase, but got %d after %d", second, first)
	}
}
