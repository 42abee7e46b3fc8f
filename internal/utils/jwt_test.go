package utils

import "testing"

func TestSessionTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateSessionToken("session-1", "alice", secret)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}

	userID, err := VerifySessionToken(token, "session-1", secret)
	if err != nil {
		t.Fatalf("VerifySessionToken returned error: %v", err)
	}
	if userID != "alice" {
		t.Fatalf("expected userId alice, got %q", userID)
	}
}

func TestVerifySessionToken_Rejections(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateSessionToken("session-1", "alice", secret)
	if err != nil {
		t.Fatalf("GenerateSessionToken returned error: %v", err)
	}

	t.Run("wrong session", func(t *testing.T) {
		if _, err := VerifySessionToken(token, "session-2", secret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := VerifySessionToken(token, "session-1", []byte("other")); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		if _, err := VerifySessionToken("not-a-token", "session-1", secret); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken, got %v", err)
		}
	})
}
