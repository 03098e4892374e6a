package token

import (
	"strings"
	"testing"
	"time"

	"github.com/mallucodewizard/videoverse/internal/apperr"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	svc := New(testKey)

	signed, err := svc.Issue("video-123", 5*time.Minute)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if signed == "" {
		t.Fatal("Issue() returned an empty token")
	}

	id, err := svc.Verify(signed)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if id != "video-123" {
		t.Errorf("Verify() = %q, want %q", id, "video-123")
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	t.Parallel()

	svc := New(testKey)

	tests := []struct {
		name    string
		videoID string
		ttl     time.Duration
	}{
		{"Zero ttl", "video-123", 0},
		{"Negative ttl", "video-123", -time.Second},
		{"Empty video id", "", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Issue(tt.videoID, tt.ttl)
			if err == nil {
				t.Fatal("Issue() should have failed")
			}
			if !apperr.IsKind(err, apperr.KindInvalidInput) {
				t.Errorf("error kind = %v, want invalid input", apperr.KindOf(err))
			}
		})
	}
}

func TestExpiryBoundary(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 3 * time.Second

	tests := []struct {
		name      string
		verifyAt  time.Time
		wantKind  apperr.Kind
		wantValid bool
	}{
		{
			name:      "Immediately after issuance",
			verifyAt:  issuedAt,
			wantValid: true,
		},
		{
			name:      "One second before expiry",
			verifyAt:  issuedAt.Add(ttl - time.Second),
			wantValid: true,
		},
		{
			name:     "One second past expiry",
			verifyAt: issuedAt.Add(ttl + time.Second),
			wantKind: apperr.KindTokenExpired,
		},
		{
			name:     "Long past expiry",
			verifyAt: issuedAt.Add(time.Hour),
			wantKind: apperr.KindTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := issuedAt
			svc := NewWithClock(testKey, func() time.Time { return now })

			signed, err := svc.Issue("video-xyz", ttl)
			if err != nil {
				t.Fatalf("Issue() error: %v", err)
			}

			now = tt.verifyAt
			id, err := svc.Verify(signed)

			if tt.wantValid {
				if err != nil {
					t.Fatalf("Verify() error: %v", err)
				}
				if id != "video-xyz" {
					t.Errorf("Verify() = %q, want %q", id, "video-xyz")
				}
				return
			}

			if err == nil {
				t.Fatal("Verify() should have failed")
			}
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Errorf("error kind = %v, want %v", got, tt.wantKind)
			}
		})
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := New(testKey)
	signed, err := svc.Issue("video-123", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Re-verification before expiry must keep succeeding; tokens have no
	// single-use semantics.
	for i := 0; i < 5; i++ {
		id, err := svc.Verify(signed)
		if err != nil {
			t.Fatalf("Verify() #%d error: %v", i+1, err)
		}
		if id != "video-123" {
			t.Errorf("Verify() #%d = %q, want %q", i+1, id, "video-123")
		}
	}
}

func TestTamperDetection(t *testing.T) {
	t.Parallel()

	svc := New(testKey)
	signed, err := svc.Issue("video-123", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Flip one character at a time across the whole token. Every mutation
	// must be rejected as tampered, never verified.
	for i := 0; i < len(signed); i++ {
		mutated := []byte(signed)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == signed {
			continue
		}

		id, err := svc.Verify(string(mutated))
		if err == nil {
			t.Fatalf("Verify() accepted a token mutated at position %d (got id %q)", i, id)
		}
		if kind := apperr.KindOf(err); kind != apperr.KindTokenTampered {
			t.Errorf("mutation at %d: error kind = %v, want tampered", i, kind)
		}
	}
}

func TestTamperedBeatsExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewWithClock(testKey, func() time.Time { return now })

	signed, err := svc.Issue("video-123", time.Second)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Let the token expire, then corrupt its signature. The signature
	// check runs first, so the result must be tampered, not expired.
	now = now.Add(time.Hour)
	tampered := signed[:len(signed)-2] + "xx"

	_, err = svc.Verify(tampered)
	if err == nil {
		t.Fatal("Verify() should have failed")
	}
	if kind := apperr.KindOf(err); kind != apperr.KindTokenTampered {
		t.Errorf("error kind = %v, want tampered", kind)
	}
}

func TestWrongKeyRejected(t *testing.T) {
	t.Parallel()

	issuer := New(testKey)
	verifier := New([]byte("ffffffffffffffffffffffffffffffff"))

	signed, err := issuer.Issue("video-123", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	_, err = verifier.Verify(signed)
	if err == nil {
		t.Fatal("Verify() with a different key should fail")
	}
	if kind := apperr.KindOf(err); kind != apperr.KindTokenTampered {
		t.Errorf("error kind = %v, want tampered", kind)
	}
}

func TestGarbageTokens(t *testing.T) {
	t.Parallel()

	svc := New(testKey)

	tests := []string{
		"",
		"not-a-token",
		"a.b",
		strings.Repeat("x", 500),
		"eyJhbGciOiJub25lIn0.eyJzdWIiOiJ2aWRlby0xMjMifQ.",
	}

	for _, raw := range tests {
		_, err := svc.Verify(raw)
		if err == nil {
			t.Errorf("Verify(%q) should have failed", raw)
			continue
		}
		if kind := apperr.KindOf(err); kind != apperr.KindTokenTampered {
			t.Errorf("Verify(%q): error kind = %v, want tampered", raw, kind)
		}
	}
}
