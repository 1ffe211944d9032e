package catalog

import "testing"

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Chrono   Trigger ":          "chrono trigger",
		"chrono  trigger":              "chrono trigger",
		"Final Fantasy VII: Remake!":   "final fantasy vii remake",
		"Pokémon Snap":                 "pokemon snap",
		"Half-Life 2":                  "half life 2",
		"???":                          "",
		"":                             "",
		"The Legend of Zelda™ — Links": "the legend of zelda links",
	}
	for input, want := range cases {
		if got := NormalizeText(input); got != want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDeterministicKeyIgnoresCasePunctuationAndWhitespace(t *testing.T) {
	t.Parallel()

	a := DeterministicKey("Chrono Trigger", "SNES")
	b := DeterministicKey("chrono  trigger", "snes")
	c := DeterministicKey("CHRONO-TRIGGER!", " S.N.E.S ")

	if a != b {
		t.Fatalf("expected identical keys, got %q and %q", a, b)
	}
	if a != "chrono trigger___snes" {
		t.Fatalf("unexpected key: %q", a)
	}
	// "S.N.E.S" folds to "s n e s", a different platform token.
	if c == a {
		t.Fatalf("did not expect dotted platform to collapse into snes")
	}
	if DeterministicKey("Chrono Trigger", "SNES") != a {
		t.Fatalf("key builder is not stable across calls")
	}
}

func TestDeterministicKeyResolvesPlatformAliases(t *testing.T) {
	t.Parallel()

	if got, want := DeterministicKey("Chrono Trigger", "Super Famicom"), DeterministicKey("Chrono Trigger", "SNES"); got != want {
		t.Fatalf("expected alias to share key: %q vs %q", got, want)
	}
	if got := NormalizePlatform("PlayStation 2"); got != "ps2" {
		t.Fatalf("unexpected platform: %q", got)
	}
	if got := NormalizePlatform("Atari Jaguar"); got != "atari jaguar" {
		t.Fatalf("unknown platforms must pass through normalized, got %q", got)
	}
}

func TestKeyForFallsBackToSlug(t *testing.T) {
	t.Parallel()

	rec := Record{Title: "Chrono Trigger", PlatformSlug: "snes"}
	if got := KeyFor(rec); got != "chrono trigger___snes" {
		t.Fatalf("unexpected key: %q", got)
	}
}
