package lumengo

import (
	"testing"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestFingerprintDeterministic(t *testing.T) {
	req1 := &Request{
		Model:      "test/model",
		Messages:   []Message{{Role: "user", Content: "softbox key light"}},
		Modalities: []string{"image", "text"},
	}
	req2 := &Request{
		Model:      "test/model",
		Messages:   []Message{{Role: "user", Content: "softbox key light"}},
		Modalities: []string{"image", "text"},
	}

	if Fingerprint(req1) != Fingerprint(req2) {
		t.Error("identical requests should produce identical fingerprints")
	}
}

func TestFingerprintDistinguishesRequests(t *testing.T) {
	base := &Request{
		Model:    "test/model",
		Messages: []Message{{Role: "user", Content: "rim light"}},
	}

	variants := []*Request{
		{Model: "other/model", Messages: []Message{{Role: "user", Content: "rim light"}}},
		{Model: "test/model", Messages: []Message{{Role: "user", Content: "fill light"}}},
		{Model: "test/model", Messages: []Message{{Role: "system", Content: "rim light"}}},
		{Model: "test/model", Messages: []Message{{Role: "user", Content: "rim light"}}, MaxTokens: 100},
		{Model: "test/model", Messages: []Message{{Role: "user", Content: "rim light"}}, Temperature: floatPtr(0.7)},
	}

	baseFP := Fingerprint(base)
	for i, v := range variants {
		if Fingerprint(v) == baseFP {
			t.Errorf("variant %d should produce a different fingerprint", i)
		}
	}
}

func TestFingerprintMessageOrderSignificant(t *testing.T) {
	req1 := &Request{
		Model: "test/model",
		Messages: []Message{
			{Role: "system", Content: "a"},
			{Role: "user", Content: "b"},
		},
	}
	req2 := &Request{
		Model: "test/model",
		Messages: []Message{
			{Role: "user", Content: "b"},
			{Role: "system", Content: "a"},
		},
	}

	if Fingerprint(req1) == Fingerprint(req2) {
		t.Error("message order is semantically significant and must change the fingerprint")
	}
}

func TestFingerprintExtraKeyOrderInsignificant(t *testing.T) {
	// Populate semantically identical Extra maps in different insertion
	// orders; canonicalization must make the fingerprints equal.
	extra1 := map[string]any{}
	extra1["seed"] = 42
	extra1["quality"] = "high"
	extra1["nested"] = map[string]any{"b": 2, "a": 1}

	extra2 := map[string]any{}
	extra2["nested"] = map[string]any{"a": 1, "b": 2}
	extra2["quality"] = "high"
	extra2["seed"] = 42

	req1 := &Request{Model: "test/model", Extra: extra1}
	req2 := &Request{Model: "test/model", Extra: extra2}

	if Fingerprint(req1) != Fingerprint(req2) {
		t.Error("Extra key order should not affect the fingerprint")
	}
}

func TestFingerprintNilVersusEmpty(t *testing.T) {
	req1 := &Request{Model: "test/model"}
	req2 := &Request{Model: "test/model", Messages: []Message{}}

	// Both serialize the messages field differently (absent vs []); the
	// fingerprint only has to be stable, not canonical across the two, so
	// just assert both are non-empty and self-consistent.
	fp1 := Fingerprint(req1)
	fp2 := Fingerprint(req2)
	if fp1 == "" || fp2 == "" {
		t.Fatal("fingerprints must never be empty")
	}
	if fp1 != Fingerprint(req1) || fp2 != Fingerprint(req2) {
		t.Error("fingerprints must be stable across calls")
	}
}
