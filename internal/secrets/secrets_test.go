package secrets

import (
	"errors"
	"strings"
	"testing"
)

func TestSealOpenRoundtrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	box, err := NewBox(key)
	if err != nil {
		t.Fatalf("new box: %v", err)
	}

	sealed, err := box.Seal("wJalrXUtnFEMI/K7MDENG/bPxRfiCY")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "wJalrXUtnFEMI/K7MDENG/bPxRfiCY" {
		t.Fatal("ciphertext equals plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened != "wJalrXUtnFEMI/K7MDENG/bPxRfiCY" {
		t.Errorf("roundtrip mismatch: %q", opened)
	}
}

func TestSealIsNonDeterministic(t *testing.T) {
	key, _ := GenerateKey()
	box, _ := NewBox(key)

	a, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	b, err := box.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two seals of the same value produced identical ciphertext")
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()
	box1, _ := NewBox(k1)
	box2, _ := NewBox(k2)

	sealed, err := box1.Seal("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := box2.Open(sealed); !errors.Is(err, ErrDecrypt) {
		t.Errorf("got %v, want ErrDecrypt", err)
	}
}

func TestOpenGarbage(t *testing.T) {
	key, _ := GenerateKey()
	box, _ := NewBox(key)

	for _, bad := range []string{"", "not-base64!!", "YWJj"} {
		if _, err := box.Open(bad); !errors.Is(err, ErrDecrypt) {
			t.Errorf("Open(%q) = %v, want ErrDecrypt", bad, err)
		}
	}
}

func TestNewBoxKeyValidation(t *testing.T) {
	if _, err := NewBox("zz"); err == nil {
		t.Error("accepted non-hex key")
	}
	if _, err := NewBox(strings.Repeat("ab", 16)); err == nil {
		t.Error("accepted short key")
	}
	if _, err := NewBox(strings.Repeat("ab", 32)); err != nil {
		t.Errorf("rejected valid key: %v", err)
	}
}
