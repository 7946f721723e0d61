package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"taskdesk/internal/domain"
)

var testPrincipal = domain.Principal{
	ID:    "u-1",
	Name:  "Admin User",
	Email: "admin@example.com",
	Role:  domain.RoleAdmin,
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := NewCodec([]byte("secret"))
	raw, err := c.Issue(testPrincipal, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := c.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != testPrincipal.ID {
		t.Errorf("subject %q, want %q", claims.Subject, testPrincipal.ID)
	}
	if claims.Email != testPrincipal.Email {
		t.Errorf("email %q, want %q", claims.Email, testPrincipal.Email)
	}
	if claims.Role != domain.RoleAdmin {
		t.Errorf("role %q, want admin", claims.Role)
	}
	if !claims.ExpiresAt.After(time.Now()) {
		t.Errorf("expiry %v not in the future", claims.ExpiresAt)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	raw, err := NewCodec([]byte("secret")).Issue(testPrincipal, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewCodec([]byte("other")).Verify(raw); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

const b64url = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// flipHighBits swaps a base64url character for one whose decoded value
// differs in the top two bits. Low bits of a trailing character are
// padding and can decode identically, which would not be a tamper.
func flipHighBits(c byte) byte {
	idx := strings.IndexByte(b64url, c)
	if idx < 0 {
		return 'A'
	}
	return b64url[(idx+16)%64]
}

func TestVerifyTamperedSegments(t *testing.T) {
	c := NewCodec([]byte("secret"))
	raw, err := c.Issue(testPrincipal, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	for i := range segments {
		for pos := 0; pos < len(segments[i]); pos++ {
			mutated := make([]string, 3)
			copy(mutated, segments)
			seg := []byte(mutated[i])
			seg[pos] = flipHighBits(seg[pos])
			mutated[i] = string(seg)
			tampered := strings.Join(mutated, ".")
			if tampered == raw {
				continue
			}
			_, err := c.Verify(tampered)
			if err == nil {
				t.Fatalf("tampered token accepted (segment %d byte %d)", i, pos)
			}
			if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformedToken) {
				t.Fatalf("segment %d byte %d: unexpected error %v", i, pos, err)
			}
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Now().Add(-48 * time.Hour)
	c := NewCodec([]byte("secret"), WithNow(func() time.Time { return issued }))
	raw, err := c.Issue(testPrincipal, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewCodec([]byte("secret")).Verify(raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifySegmentCount(t *testing.T) {
	c := NewCodec([]byte("secret"))
	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d"} {
		if _, err := c.Verify(raw); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Verify(%q) = %v, want ErrMalformedToken", raw, err)
		}
	}
}

func TestDecodeWithoutTrust(t *testing.T) {
	c := NewCodec([]byte("secret"))
	raw, err := c.Issue(testPrincipal, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	// Break the signature; Decode still parses, Verify refuses.
	broken := raw[:len(raw)-4] + "AAAA"
	claims, err := Decode(broken)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != testPrincipal.ID {
		t.Errorf("subject %q, want %q", claims.Subject, testPrincipal.ID)
	}
	if _, err := c.Verify(broken); err == nil {
		t.Fatal("verify accepted broken signature")
	}
}

func TestDecodeRejectsUnknownShape(t *testing.T) {
	c := NewCodec([]byte("secret"))
	// A principal with an invalid role produces claims that must be
	// rejected at decode time.
	raw, err := c.Issue(domain.Principal{ID: "u-2", Role: domain.Role("superuser")}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := Decode(raw); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if _, err := c.Verify(raw); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken from Verify, got %v", err)
	}
}
