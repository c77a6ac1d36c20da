package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, DeriveKey("mypassphrase", salt)) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	original := []byte("SQLite format 3\x00 snapshot contents")

	sealed, err := Encrypt(original, "passphrase-123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, original) {
		t.Error("ciphertext should not contain the plaintext")
	}
	if len(sealed) <= saltSize+nonceSize {
		t.Fatalf("ciphertext length = %d, too short", len(sealed))
	}

	again, _ := Encrypt(original, "passphrase-123")
	if bytes.Equal(sealed[:saltSize], again[:saltSize]) {
		t.Error("each snapshot should use a fresh salt")
	}

	opened, err := Decrypt(sealed, "passphrase-123")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, original) {
		t.Errorf("decrypted = %q, want %q", opened, original)
	}
}

func TestDecryptFailures(t *testing.T) {
	sealed, err := Encrypt([]byte("secret data"), "correct")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(sealed, "wrong"); err == nil {
		t.Error("expected error with wrong passphrase")
	}

	tampered := bytes.Clone(sealed)
	tampered[saltSize+nonceSize+1] ^= 0xFF
	if _, err := Decrypt(tampered, "correct"); err == nil {
		t.Error("expected error with tampered ciphertext")
	}

	if _, err := Decrypt([]byte("too short"), "correct"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestEncryptEmpty(t *testing.T) {
	sealed, err := Encrypt(nil, "password")
	if err != nil {
		t.Fatalf("encrypt empty: %v", err)
	}
	opened, err := Decrypt(sealed, "password")
	if err != nil {
		t.Fatalf("decrypt empty: %v", err)
	}
	if len(opened) != 0 {
		t.Errorf("expected empty plaintext, got %d bytes", len(opened))
	}
}
