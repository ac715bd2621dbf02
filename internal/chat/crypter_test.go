package chat

import (
	"strings"
	"testing"
)

const testKeyHex = "6368616368612d6b65792d666f722d756e69742d74657374732d6f6e6c792121"

func newTestCrypter(t *testing.T) *Crypter {
	t.Helper()
	c, err := NewCrypter(testKeyHex)
	if err != nil {
		t.Fatalf("NewCrypter: %v", err)
	}
	return c
}

func TestCrypterRoundTrip(t *testing.T) {
	c := newTestCrypter(t)

	plain := "hello, приватный текст"
	sealed, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plain || strings.Contains(sealed, "hello") {
		t.Fatalf("ciphertext leaks plaintext: %q", sealed)
	}

	got, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plain {
		t.Fatalf("got %q, want %q", got, plain)
	}
}

func TestCrypterNoncesDiffer(t *testing.T) {
	c := newTestCrypter(t)

	a, err := c.Encrypt("same text")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := c.Encrypt("same text")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same text produced identical ciphertext")
	}
}

func TestCrypterRejectsTampering(t *testing.T) {
	c := newTestCrypter(t)

	sealed, err := c.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c.Decrypt(sealed + "AA"); err == nil {
		t.Fatal("tampered ciphertext decrypted without error")
	}
	if _, err := c.Decrypt("not base64 at all!"); err == nil {
		t.Fatal("garbage input decrypted without error")
	}
}

func TestNewCrypterRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "abcd", "zz" + testKeyHex[2:]} {
		if _, err := NewCrypter(key); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}
