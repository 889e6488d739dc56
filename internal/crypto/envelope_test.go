package crypto

import "testing"

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testMasterKey()
	subject := []byte("wallet-alpha")
	plaintext := []byte("super-secret-private-key-bytes")

	ciphertext, err := EncryptEnvelope(key, subject, "wallet-secret", plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := DecryptEnvelope(key, subject, "wallet-secret", ciphertext)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestDecryptWrongSubjectFails(t *testing.T) {
	key := testMasterKey()
	plaintext := []byte("secret")

	ciphertext, err := EncryptEnvelope(key, []byte("wallet-alpha"), "wallet-secret", plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := DecryptEnvelope(key, []byte("wallet-beta"), "wallet-secret", ciphertext); err == nil {
		t.Fatalf("expected decryption to fail with mismatched subject")
	}
}

func TestDecryptWrongInfoFails(t *testing.T) {
	key := testMasterKey()
	plaintext := []byte("secret")
	subject := []byte("wallet-alpha")

	ciphertext, err := EncryptEnvelope(key, subject, "wallet-secret", plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := DecryptEnvelope(key, subject, "other-info", ciphertext); err == nil {
		t.Fatalf("expected decryption to fail with mismatched info")
	}
}

func TestEncryptEmptyPlaintextIsNoop(t *testing.T) {
	key := testMasterKey()
	ciphertext, err := EncryptEnvelope(key, []byte("wallet-alpha"), "wallet-secret", nil)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ciphertext != nil {
		t.Fatalf("expected nil ciphertext for empty plaintext")
	}
}

func TestDeriveKeyRejectsShortMasterKey(t *testing.T) {
	_, err := deriveKey([]byte("too-short"), []byte("wallet-alpha"), "wallet-secret")
	if err == nil {
		t.Fatalf("expected error for short master key")
	}
}

func TestEnvelopeIsASCIIAndVersioned(t *testing.T) {
	key := testMasterKey()
	ciphertext, err := EncryptEnvelope(key, []byte("wallet-alpha"), "wallet-secret", []byte("x"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(ciphertext) < len(envelopeVersionPrefix) || string(ciphertext[:len(envelopeVersionPrefix)]) != envelopeVersionPrefix {
		t.Fatalf("expected envelope to start with version prefix %q, got %q", envelopeVersionPrefix, ciphertext)
	}
	for _, b := range ciphertext {
		if b > 127 {
			t.Fatalf("envelope must be ASCII-safe, found byte %d", b)
		}
	}
}
