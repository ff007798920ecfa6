package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// All tests use bcrypt.MinCost — the hashing logic is identical at every
// cost, only slower.
func testPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

func TestHashAndVerify(t *testing.T) {
	ps := testPasswordService()

	hash, err := ps.Hash("S3nha!forte")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "S3nha!forte" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "S3nha!forte"); err != nil {
		t.Errorf("Verify() with correct password: %v", err)
	}
	if err := ps.Verify(hash, "S3nha!fortex"); err == nil {
		t.Error("Verify() accepted a wrong password")
	}
}

func TestHashProducesDifferentSalts(t *testing.T) {
	ps := testPasswordService()

	h1, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing?")
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	ps := testPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); err == nil {
		t.Error("Hash() accepted a 73-byte password (bcrypt truncates at 72)")
	}
	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash() rejected a 72-byte password: %v", err)
	}
}

func TestMatches(t *testing.T) {
	ps := testPasswordService()

	hash, err := ps.Hash("P@ss1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if !ps.Matches(hash, "P@ss1") {
		t.Error("Matches() = false for correct password")
	}
	if ps.Matches(hash, "P@ss2") {
		t.Error("Matches() = true for wrong password")
	}
	if ps.Matches("not-a-bcrypt-hash", "P@ss1") {
		t.Error("Matches() = true for garbage hash")
	}
}
