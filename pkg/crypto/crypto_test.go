package crypto

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	box, err := NewBox("a-reasonably-long-secret")
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}

	plain := `{"access_token": "ya29.x", "refresh_token": "1//y"}`
	sealed, err := box.EncryptString(plain)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if sealed == plain || strings.Contains(sealed, "ya29") {
		t.Fatal("ciphertext leaks plaintext")
	}

	got, err := box.DecryptString(sealed)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if got != plain {
		t.Errorf("got %q, want %q", got, plain)
	}
}

func TestNoncesDiffer(t *testing.T) {
	box, _ := NewBox("secret")
	a, _ := box.EncryptString("same input")
	b, _ := box.EncryptString("same input")
	if a == b {
		t.Fatal("two encryptions of the same input must differ")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, _ := NewBox("secret")
	sealed, _ := box.EncryptString("payload")

	tampered := []byte(sealed)
	tampered[len(tampered)-5] ^= 'x'
	if _, err := box.DecryptString(string(tampered)); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	box1, _ := NewBox("secret-one")
	box2, _ := NewBox("secret-two")

	sealed, _ := box1.EncryptString("payload")
	if _, err := box2.DecryptString(sealed); err == nil {
		t.Fatal("expected error for wrong key")
	}
}

func TestBadInputs(t *testing.T) {
	if _, err := NewBox(""); err == nil {
		t.Error("empty secret must be rejected")
	}

	box, _ := NewBox("secret")
	if _, err := box.DecryptString("not base64 at all %%%"); err == nil {
		t.Error("undecodable input must error")
	}
	if _, err := box.DecryptString("AAAA"); err == nil {
		t.Error("too-short ciphertext must error")
	}
}
