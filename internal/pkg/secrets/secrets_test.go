package secrets

import (
	"errors"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	t.Setenv("WEBHOOK_SECRET_KEY", "test-master-key")
	t.Setenv("WEBHOOK_SECRET_SALT", "test-salt")

	s, err := NewService()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestNewService_MissingKey(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET_KEY", "")

	if _, err := NewService(); err == nil {
		t.Fatalf("expected error without master key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	s := newTestService(t)

	encrypted, err := s.Encrypt("whsec_super_secret_value")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if encrypted == "whsec_super_secret_value" {
		t.Fatalf("ciphertext must not equal plaintext")
	}

	plaintext, err := s.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plaintext != "whsec_super_secret_value" {
		t.Fatalf("expected round trip to restore plaintext, got %q", plaintext)
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	s := newTestService(t)

	first, err := s.Encrypt("same input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Encrypt("same input")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected fresh nonce per encryption")
	}
}

func TestDecrypt_InvalidInput(t *testing.T) {
	s := newTestService(t)

	for _, input := range []string{"", "not base64!!", "dG9vc2hvcnQ="} {
		if _, err := s.Decrypt(input); !errors.Is(err, ErrInvalidCiphertext) {
			t.Fatalf("expected ErrInvalidCiphertext for %q, got %v", input, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	s := newTestService(t)
	encrypted, err := s.Encrypt("secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Setenv("WEBHOOK_SECRET_KEY", "different-master-key")
	other, err := NewService()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := other.Decrypt(encrypted); !errors.Is(err, ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext with wrong key, got %v", err)
	}
}
