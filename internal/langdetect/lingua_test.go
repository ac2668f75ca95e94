package langdetect

import "testing"

func TestDetectISO6391_English(t *testing.T) {
	t.Parallel()

	got := DetectISO6391("Should I pay off my mortgage early or keep investing in my pension? Looking for advice on the best approach.")
	if got != "en" {
		t.Fatalf("expected en, got %q", got)
	}
}

func TestDetectISO6391_ShortSampleIsUndetermined(t *testing.T) {
	t.Parallel()

	if got := DetectISO6391("ISA help"); got != "" {
		t.Fatalf("expected empty code for short sample, got %q", got)
	}
	if got := DetectISO6391("   "); got != "" {
		t.Fatalf("expected empty code for blank sample, got %q", got)
	}
}
