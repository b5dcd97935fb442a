package ids

import "testing"

func TestIdentifierShortIsStablePrefix(t *testing.T) {
	id := New()
	long := id.String()
	short := id.Short()

	if len(short) != shortLen {
		t.Fatalf("expected short form of length %d, got %d (%q)", shortLen, len(short), short)
	}
	if long[:shortLen] != short {
		t.Fatalf("short form %q is not a prefix of long form %q", short, long)
	}
	// Calling Short again must return the same value (no hidden state mutation).
	if id.Short() != short {
		t.Fatalf("Short() is not stable across calls")
	}
}

func TestParseRoundTrip(t *testing.T) {
	id := New()
	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.String() != id.String() {
		t.Fatalf("round trip mismatch: %q != %q", parsed.String(), id.String())
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid uuid")
	}
}

func TestIsZero(t *testing.T) {
	var id Identifier
	if !id.IsZero() {
		t.Fatal("zero-value Identifier should report IsZero")
	}
	if New().IsZero() {
		t.Fatal("freshly generated Identifier should not be zero")
	}
}
