package signature

import (
	"errors"
	"net/http"
	"testing"
)

func TestSecretVerifier(t *testing.T) {
	body := []byte(`{"ref":"refs/heads/main"}`)
	v := NewSecretVerifier("It's a Secret to Everybody").(*SecretVerifier)

	t.Run("github signature", func(t *testing.T) {
		h := http.Header{}
		h.Set(GitHubHeader, v.Sign(body))
		if err := v.Verify(h, body); err != nil {
			t.Errorf("Verify failed for a valid signature: %v", err)
		}
	})

	t.Run("known github test vector", func(t *testing.T) {
		// Example from GitHub's webhook documentation.
		h := http.Header{}
		h.Set(GitHubHeader, "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17")
		if err := v.Verify(h, []byte("Hello, World!")); err != nil {
			t.Errorf("Verify rejected the documented vector: %v", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		h := http.Header{}
		h.Set(GitHubHeader, v.Sign(body))
		err := v.Verify(h, []byte(`{"ref":"refs/heads/evil"}`))
		if !errors.Is(err, ErrMismatch) {
			t.Errorf("expected ErrMismatch, got %v", err)
		}
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		h := http.Header{}
		h.Set(GitHubHeader, "sha1=0123")
		if err := v.Verify(h, body); !errors.Is(err, ErrMismatch) {
			t.Errorf("expected ErrMismatch, got %v", err)
		}
	})

	t.Run("not hex", func(t *testing.T) {
		h := http.Header{}
		h.Set(GitHubHeader, "sha256=zz")
		if err := v.Verify(h, body); !errors.Is(err, ErrMismatch) {
			t.Errorf("expected ErrMismatch, got %v", err)
		}
	})

	t.Run("gitlab token", func(t *testing.T) {
		h := http.Header{}
		h.Set(GitLabHeader, "It's a Secret to Everybody")
		if err := v.Verify(h, body); err != nil {
			t.Errorf("Verify failed for a valid token: %v", err)
		}
		h.Set(GitLabHeader, "guess")
		if err := v.Verify(h, body); !errors.Is(err, ErrMismatch) {
			t.Errorf("expected ErrMismatch, got %v", err)
		}
	})

	t.Run("unsigned delivery", func(t *testing.T) {
		if err := v.Verify(http.Header{}, body); !errors.Is(err, ErrMissing) {
			t.Errorf("expected ErrMissing, got %v", err)
		}
	})
}

func TestNewSecretVerifier_EmptySecret(t *testing.T) {
	v := NewSecretVerifier("")
	if _, ok := v.(NopVerifier); !ok {
		t.Fatalf("expected NopVerifier, got %T", v)
	}
	if err := v.Verify(http.Header{}, []byte("anything")); err != nil {
		t.Errorf("NopVerifier rejected a delivery: %v", err)
	}
}
