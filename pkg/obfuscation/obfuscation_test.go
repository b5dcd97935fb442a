package obfuscation

import "testing"

func TestObfuscateWithRegexMetacharacters(t *testing.T) {
	secrets := []string{"/1234-a/bcd", "with"}
	text := "a log with my password: /1234-a/bcd"

	got := Obfuscate(text, secrets)
	want := "a log xxx my password: xxx"
	if got != want {
		t.Fatalf("Obfuscate() = %q, want %q", got, want)
	}
}

func TestObfuscateDropsEmptyAndBlankSecrets(t *testing.T) {
	secrets := []string{"", "   ", "\n", "realsecret"}
	text := "token=realsecret"

	got := Obfuscate(text, secrets)
	want := "token=xxx"
	if got != want {
		t.Fatalf("Obfuscate() = %q, want %q", got, want)
	}
}

func TestObfuscateNoSecretsIsNoOp(t *testing.T) {
	text := "nothing to see here"
	if got := Obfuscate(text, nil); got != text {
		t.Fatalf("Obfuscate() with no secrets changed the text: %q", got)
	}
}

func TestObfuscateIsIdempotent(t *testing.T) {
	secrets := []string{"hunter2"}
	text := "password: hunter2"

	once := Obfuscate(text, secrets)
	twice := New(secrets).Obfuscate(once)
	if once != twice {
		t.Fatalf("obfuscation is not idempotent: %q != %q", once, twice)
	}
}

func TestServiceReplacesEveryOccurrence(t *testing.T) {
	svc := New([]string{"abc"})
	if got := svc.Obfuscate("abcabc"); got != "xxxxxx" {
		t.Fatalf("Obfuscate() = %q, want %q", got, "xxxxxx")
	}
}
